// internal/status/constants.go
package status

// Status block layout. The mirror writes one block per device; the layout
// is shared with the PLC side and must not be configurable.

// SlotsPerDevice is the size of one device block in registers.
const SlotsPerDevice = 20

// SlotHealthCode holds the health code.
const SlotHealthCode = 0

// SlotLastErrorCode holds the fault code of the most recent failed cycle.
const SlotLastErrorCode = 1

// SlotSecondsInError holds how long the device has been failing.
const SlotSecondsInError = 2

// Slots 3–10 are reserved.
const (
	SlotReservedStart = 3
	SlotReservedEnd   = 10
)

// SlotDeviceNameStart is the first register of the packed device name.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots registers hold two ASCII characters each.
const SlotDeviceNameSlots = 8

const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// DeviceNameMaxChars is the longest device name the block can carry.
const DeviceNameMaxChars = 2 * SlotDeviceNameSlots

// MaxSecondsInError is where the seconds counter saturates.
const MaxSecondsInError = 65535

// Health codes.
const (
	HealthUnknown uint16 = 0 // starting, no cycle finished yet
	HealthOK      uint16 = 1
	HealthError   uint16 = 2
)

// HealthName is the label used in /healthz and on the health gauge.
func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	default:
		return "unknown"
	}
}
