package log

import "time"

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates traffic flow relative to this client.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RobotName is the advertised name of the robot, when known.
	RobotName string `cbor:"6,keyasint,omitempty"`

	// Address is the transport address (serial device or host:port).
	Address string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"8,keyasint,omitempty"`  // Raw bytes
	Packet      *PacketEvent      `cbor:"9,keyasint,omitempty"`  // Decoded packet
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Connection lifecycle
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of traffic flow.
type Direction uint8

const (
	// DirectionIn indicates traffic from the robot.
	DirectionIn Direction = 0
	// DirectionOut indicates traffic to the robot.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerFrame is the raw byte layer (undecoded frames).
	LayerFrame Layer = 0
	// LayerPacket is the decoded packet layer.
	LayerPacket Layer = 1
	// LayerConnection is the connection lifecycle layer.
	LayerConnection Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerFrame:
		return "FRAME"
	case LayerPacket:
		return "PACKET"
	case LayerConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand indicates an outgoing command packet.
	CategoryCommand Category = 0
	// CategoryResponse indicates a correlated response packet.
	CategoryResponse Category = 1
	// CategoryAsync indicates an unsolicited notification packet.
	CategoryAsync Category = 2
	// CategoryState indicates a connection state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryResponse:
		return "RESPONSE"
	case CategoryAsync:
		return "ASYNC"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxLogFrameDataSize caps the raw bytes stored per frame event.
// Sphero frames top out at 261 bytes, so truncation only bites on
// garbage runs captured during resynchronization.
const MaxLogFrameDataSize = 261

// FrameEvent captures raw frame bytes at the transport layer.
type FrameEvent struct {
	// Size is the full frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// PacketEvent captures a decoded packet.
type PacketEvent struct {
	// Device is the firmware subsystem (HDR1).
	Device uint8 `cbor:"1,keyasint"`

	// Code is HDR2: the command ID on send, the response status or
	// async event code on receive.
	Code uint8 `cbor:"2,keyasint"`

	// Sequence is the correlation tag (0xFF for async packets).
	Sequence uint8 `cbor:"3,keyasint"`

	// PayloadSize is the payload length in bytes.
	PayloadSize int `cbor:"4,keyasint"`

	// NoAnswer marks fire-and-forget sends and async notifications.
	NoAnswer bool `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures connection lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state.
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
