// internal/status/encode.go
package status

// Encode lays a snapshot and the packed device name out as one full block.
// No IO.
func Encode(s Snapshot, name []uint16) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError

	for i := 0; i < SlotDeviceNameSlots && i < len(name); i++ {
		regs[SlotDeviceNameStart+i] = name[i]
	}
	return regs
}

// EncodeName packs up to DeviceNameMaxChars characters into big-endian
// register pairs. Bytes outside printable ASCII become '?'.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > DeviceNameMaxChars {
		b = b[:DeviceNameMaxChars]
	}
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}
	return out
}
