package wire

import "fmt"

// ChecksumError reports a frame whose checksum byte does not match the
// checksum computed over its contents. The frame is dropped and the
// decoder resynchronizes; the error is diagnostic, not fatal.
type ChecksumError struct {
	// Computed is the checksum derived from the frame contents.
	Computed byte

	// Received is the checksum byte the frame carried.
	Received byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: computed 0x%02X, frame carries 0x%02X",
		e.Computed, e.Received)
}

// ProtocolError reports a structurally invalid frame: impossible
// header values or lengths. Like ChecksumError it is recoverable at
// the frame level.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}
