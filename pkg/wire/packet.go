package wire

import (
	"errors"
	"fmt"
)

// Framing constants.
const (
	// SOP1 is the first start-of-packet marker, identical on every frame.
	SOP1 byte = 0xFF

	// SOP2Answer marks a frame that participates in request/response
	// correlation: a command expecting an answer, or the answer itself.
	SOP2Answer byte = 0xFF

	// SOP2NoAnswer marks a fire-and-forget command or an unsolicited
	// async notification.
	SOP2NoAnswer byte = 0xFE

	// AsyncSequence is the reserved sequence value carried by async
	// notifications. It never tags a correlated command.
	AsyncSequence byte = 0xFF

	// MaxPayloadSize is the largest payload that fits the one-byte
	// length field (LEN = len(payload)+1 must not exceed 255).
	MaxPayloadSize = 254

	// headerSize is SOP1 through LEN.
	headerSize = 6
)

// Packet errors.
var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum frame size")
	ErrNeedMoreData    = errors.New("need more data")
)

// DeviceID selects the firmware subsystem a command is addressed to.
type DeviceID byte

const (
	// DeviceCore is the core subsystem (ping, versioning, power, sleep).
	DeviceCore DeviceID = 0x00

	// DeviceSphero is the control subsystem (drive, LEDs, sensors).
	DeviceSphero DeviceID = 0x02
)

// String returns the device ID name.
func (d DeviceID) String() string {
	switch d {
	case DeviceCore:
		return "CORE"
	case DeviceSphero:
		return "SPHERO"
	default:
		return fmt.Sprintf("DEVICE_%02X", byte(d))
	}
}

// Packet is one decoded frame. It is a plain value; the checksum and
// length fields are derived during encode and verified during decode,
// never stored.
type Packet struct {
	// Device is the firmware subsystem (HDR1).
	Device DeviceID

	// Command is the command ID on send, and the response status or
	// async event code on receive (HDR2).
	Command byte

	// Sequence correlates a command with its response. Async
	// notifications carry AsyncSequence.
	Sequence byte

	// Payload is the frame body, excluding the checksum byte.
	Payload []byte

	// NoAnswer reports that the frame was marked SOP2NoAnswer:
	// a fire-and-forget send or an async notification.
	NoAnswer bool
}

// IsAsync reports whether the packet is an unsolicited notification
// rather than a correlated response.
func (p *Packet) IsAsync() bool {
	return p.NoAnswer && p.Sequence == AsyncSequence
}

// Status interprets HDR2 as a response status code. Only meaningful
// for non-async received packets.
func (p *Packet) Status() Status {
	return Status(p.Command)
}

// AsyncID interprets HDR2 as an async event code. Only meaningful
// when IsAsync reports true.
func (p *Packet) AsyncID() AsyncID {
	return AsyncID(p.Command)
}

// Checksum computes the frame checksum: the one's complement of the
// modulo-256 sum of the four header bytes after SOP2 and the payload.
func Checksum(device, command, seq, length byte, payload []byte) byte {
	sum := int(device) + int(command) + int(seq) + int(length)
	for _, b := range payload {
		sum += int(b)
	}
	return byte(sum%256) ^ 0xFF
}

// Encode serializes the packet into a complete frame.
// It fails only when the payload cannot fit the one-byte length field.
func Encode(p *Packet) ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(p.Payload))
	}

	sop2 := SOP2Answer
	if p.NoAnswer {
		sop2 = SOP2NoAnswer
	}
	length := byte(len(p.Payload) + 1)

	frame := make([]byte, 0, headerSize+len(p.Payload)+1)
	frame = append(frame, SOP1, sop2, byte(p.Device), p.Command, p.Sequence, length)
	frame = append(frame, p.Payload...)
	frame = append(frame, Checksum(byte(p.Device), p.Command, p.Sequence, length, p.Payload))

	return frame, nil
}
