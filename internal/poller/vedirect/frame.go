// internal/poller/vedirect/frame.go
package vedirect

// Packet is one checksummed block of label/value records.
type Packet map[string]string

type state uint8

const (
	waitHeader state = iota
	inKey
	inValue
	inChecksum
	inHex
)

const (
	header1   = '\r'
	header2   = '\n'
	hexMarker = ':'
	delimiter = '\t'

	checksumLabel = "Checksum"
)

// Decoder reassembles text-protocol blocks from an arbitrary byte stream.
// A block is accepted when the byte sum from its first header through the
// checksum byte is 0 mod 256. Asynchronous HEX frames (":...\n") are
// skipped and invalidate the block they interrupt.
type Decoder struct {
	state    state
	key      []byte
	value    []byte
	sum      byte
	fields   Packet
	rejected int
}

func NewDecoder() *Decoder {
	return &Decoder{fields: Packet{}}
}

// Rejected counts blocks dropped on a checksum mismatch.
func (d *Decoder) Rejected() int { return d.rejected }

// Write feeds p through the decoder and calls emit for every complete
// block. Decoding stops at the first emit error.
func (d *Decoder) Write(p []byte, emit func(Packet) error) error {
	for _, b := range p {
		pkt, ok := d.feed(b)
		if !ok {
			continue
		}
		if err := emit(pkt); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) feed(b byte) (Packet, bool) {
	if b == hexMarker && d.state != inChecksum {
		d.state = inHex
	}

	switch d.state {
	case waitHeader:
		d.sum += b
		if b == header2 {
			d.state = inKey
		}

	case inKey:
		d.sum += b
		if b != delimiter {
			d.key = append(d.key, b)
			break
		}
		if string(d.key) == checksumLabel {
			d.state = inChecksum
		} else {
			d.state = inValue
		}

	case inValue:
		d.sum += b
		if b != header1 {
			d.value = append(d.value, b)
			break
		}
		d.fields[string(d.key)] = string(d.value)
		d.key, d.value = d.key[:0], d.value[:0]
		d.state = waitHeader

	case inChecksum:
		d.sum += b
		d.key, d.value = d.key[:0], d.value[:0]
		d.state = waitHeader

		pkt, ok := d.fields, d.sum == 0
		d.fields, d.sum = Packet{}, 0
		if !ok {
			d.rejected++
			return nil, false
		}
		return pkt, true

	case inHex:
		d.sum = 0
		if b == header2 {
			d.state = waitHeader
		}
	}
	return nil, false
}
