package sphero

import (
	"context"
	"fmt"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/commands"
	"github.com/sphero-protocol/sphero-go/pkg/transport"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// diagWindowFactor scales the response timeout into the window allowed
// for the asynchronous report. The firmware acknowledges the command
// immediately but runs its self test for several seconds before the
// report arrives.
const diagWindowFactor = 10

// RunL1Diagnostics runs the level 1 self test and returns the ASCII
// report the robot sends back as a notification. Only one run may be
// in flight at a time.
func (c *Client) RunL1Diagnostics(ctx context.Context) (string, error) {
	ch := make(chan *wire.Packet, 1)

	c.mu.Lock()
	if c.diagCh != nil {
		c.mu.Unlock()
		return "", ErrDiagnosticsBusy
	}
	c.diagCh = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.diagCh = nil
		c.mu.Unlock()
	}()

	if _, err := c.Execute(ctx, commands.RunL1Diagnostics()); err != nil {
		return "", err
	}

	window := diagWindowFactor * c.config.ResponseTimeout
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case pkt := <-ch:
		if pkt == nil {
			return "", &transport.DisconnectError{}
		}
		return string(pkt.Payload), nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("%w within %s", ErrDiagnosticsTimeout, window)
	}
}

// deliverDiagnostics hands a level 1 report to the waiter armed by
// RunL1Diagnostics, reporting whether one consumed it.
func (c *Client) deliverDiagnostics(pkt *wire.Packet) bool {
	c.mu.RLock()
	ch := c.diagCh
	c.mu.RUnlock()

	if ch == nil {
		return false
	}
	select {
	case ch <- pkt:
		return true
	default:
		return false
	}
}

// failDiagnostics wakes a waiting RunL1Diagnostics on teardown so it
// does not sit out its full report window.
func (c *Client) failDiagnostics() {
	c.mu.RLock()
	ch := c.diagCh
	c.mu.RUnlock()

	if ch == nil {
		return
	}
	select {
	case ch <- nil:
	default:
	}
}
