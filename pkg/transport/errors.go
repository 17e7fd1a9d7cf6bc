package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a write or disconnect is attempted
	// while no transport is established.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by Connect when the connection is
	// not in the disconnected state.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnectionClosed is returned when the connection was torn down
	// while an operation was in flight.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrCloseTimeout is returned by Close when the read loop does not
	// exit within the configured close timeout.
	ErrCloseTimeout = errors.New("timeout waiting for connection shutdown")
)

// TransportError wraps a failure of the underlying byte stream. Op names
// the operation that failed: "dial", "read" or "write".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DisconnectError reports that the connection was lost. Cause is nil for a
// deliberate local disconnect and carries the transport failure otherwise.
type DisconnectError struct {
	Cause error
}

func (e *DisconnectError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection lost: %v", e.Cause)
	}
	return "connection closed"
}

func (e *DisconnectError) Unwrap() error {
	return e.Cause
}
