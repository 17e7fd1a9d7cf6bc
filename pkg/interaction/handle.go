package interaction

import (
	"context"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// Handle is the caller's view of one in-flight command. It resolves
// exactly once: with the response packet, a TimeoutError, a CommandError,
// a cancellation or a disconnect error. A Handle is safe for concurrent
// use.
type Handle struct {
	client    *Client
	sequence  byte
	submitted time.Time
	timer     *time.Timer

	// done is closed after resp and err are set. Waiters synchronize on
	// the close.
	done chan struct{}
	resp *wire.Packet
	err  error
}

// Sequence returns the sequence number assigned to the command.
func (h *Handle) Sequence() byte {
	return h.sequence
}

// SubmittedAt returns the time the command was handed to the transport.
func (h *Handle) SubmittedAt() time.Time {
	return h.submitted
}

// Done returns a channel that is closed once the request has resolved.
// Use it to register a continuation instead of blocking in Wait.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome. Before Done is closed it returns
// ErrPending.
func (h *Handle) Result() (*wire.Packet, error) {
	select {
	case <-h.done:
		return h.resp, h.err
	default:
		return nil, ErrPending
	}
}

// Wait blocks until the request resolves or the context ends. A context
// end cancels the request: it is removed from the pending set and fails
// with the context's error. Cancellation after resolution is a no-op and
// Wait returns the actual outcome.
func (h *Handle) Wait(ctx context.Context) (*wire.Packet, error) {
	select {
	case <-h.done:
		return h.resp, h.err
	case <-ctx.Done():
		if h.client.cancel(h, ctx.Err()) {
			return nil, h.err
		}
		// Lost the race against a resolution already in flight.
		<-h.done
		return h.resp, h.err
	}
}

// resolve stores the outcome and wakes all waiters. Callers must hold
// ownership of the handle by having removed it from the pending set;
// that removal guarantees resolve runs at most once.
func (h *Handle) resolve(resp *wire.Packet, err error) {
	h.resp = resp
	h.err = err
	if h.timer != nil {
		h.timer.Stop()
	}
	close(h.done)
}
