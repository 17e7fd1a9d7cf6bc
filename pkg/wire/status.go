package wire

// Status is the response code (MRSP) a robot returns in HDR2 of a
// correlated response. Values are taken from the Sphero API docs.
type Status uint8

const (
	// StatusOK indicates the command succeeded.
	StatusOK Status = 0x00

	// StatusGeneralError indicates a non-specific failure.
	StatusGeneralError Status = 0x01

	// StatusChecksumFailure indicates the robot received a bad checksum.
	StatusChecksumFailure Status = 0x02

	// StatusFragmented indicates a fragmented command was received.
	StatusFragmented Status = 0x03

	// StatusUnknownCommand indicates an unrecognized command ID.
	StatusUnknownCommand Status = 0x04

	// StatusUnsupported indicates the command is not supported.
	StatusUnsupported Status = 0x05

	// StatusBadMessageFormat indicates a malformed command body.
	StatusBadMessageFormat Status = 0x06

	// StatusInvalidParameter indicates a parameter value out of range.
	StatusInvalidParameter Status = 0x07

	// StatusExecutionFailed indicates the command could not execute.
	StatusExecutionFailed Status = 0x08

	// StatusUnknownDevice indicates an unrecognized device ID.
	StatusUnknownDevice Status = 0x09

	// StatusRAMBusy indicates RAM access was needed but busy.
	StatusRAMBusy Status = 0x0A

	// StatusBadPassword indicates an incorrect password.
	StatusBadPassword Status = 0x0B

	// StatusVoltageTooLow indicates insufficient voltage for reflash.
	StatusVoltageTooLow Status = 0x31

	// StatusIllegalPage indicates an illegal flash page number.
	StatusIllegalPage Status = 0x32

	// StatusFlashFailed indicates a flash page failed to reprogram.
	StatusFlashFailed Status = 0x33

	// StatusMainAppCorrupt indicates the main application is corrupt.
	StatusMainAppCorrupt Status = 0x34

	// StatusMessageTimeout indicates the message state machine timed out.
	StatusMessageTimeout Status = 0x35
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusGeneralError:
		return "GENERAL_ERROR"
	case StatusChecksumFailure:
		return "CHECKSUM_FAILURE"
	case StatusFragmented:
		return "FRAGMENTED_COMMAND"
	case StatusUnknownCommand:
		return "UNKNOWN_COMMAND"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusBadMessageFormat:
		return "BAD_MESSAGE_FORMAT"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusExecutionFailed:
		return "EXECUTION_FAILED"
	case StatusUnknownDevice:
		return "UNKNOWN_DEVICE"
	case StatusRAMBusy:
		return "RAM_BUSY"
	case StatusBadPassword:
		return "BAD_PASSWORD"
	case StatusVoltageTooLow:
		return "VOLTAGE_TOO_LOW"
	case StatusIllegalPage:
		return "ILLEGAL_PAGE"
	case StatusFlashFailed:
		return "FLASH_FAILED"
	case StatusMainAppCorrupt:
		return "MAIN_APP_CORRUPT"
	case StatusMessageTimeout:
		return "MESSAGE_TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusOK
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusOK
}

// IsRetryable reports statuses worth a retransmission: the robot saw
// a corrupt or incomplete frame rather than rejecting the command.
func (s Status) IsRetryable() bool {
	switch s {
	case StatusChecksumFailure, StatusFragmented, StatusRAMBusy, StatusMessageTimeout:
		return true
	default:
		return false
	}
}
