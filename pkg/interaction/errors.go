package interaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

var (
	// ErrClientClosed is returned by Send and Wait when the client has
	// been closed.
	ErrClientClosed = errors.New("interaction client closed")

	// ErrPending is returned by Handle.Result while the request has not
	// resolved yet.
	ErrPending = errors.New("request still pending")
)

// TimeoutError reports that a command received no response within its
// deadline. The connection remains usable; only this request failed.
type TimeoutError struct {
	Sequence byte
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %#02x timed out after %s", e.Sequence, e.Timeout)
}

// CommandError reports that the robot answered a command with a non-OK
// status code.
type CommandError struct {
	Status wire.Status
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command rejected: %s", e.Status)
}
