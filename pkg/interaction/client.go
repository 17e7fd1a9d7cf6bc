package interaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// MaxInFlight is the number of commands that can await responses at the
// same time: one per usable sequence number (0x00..0xFE).
const MaxInFlight = 255

// DefaultResponseTimeout is applied when a Send passes no timeout.
const DefaultResponseTimeout = time.Second

// PacketWriter hands encoded packets to the transport. Implemented by
// transport.Connection.
type PacketWriter interface {
	WritePacket(pkt *wire.Packet) error
}

// Config holds the settings of a Client.
type Config struct {
	// Writer delivers outbound packets. Required.
	Writer PacketWriter

	// DefaultTimeout applies to sends that pass no timeout. Defaults to
	// DefaultResponseTimeout.
	DefaultTimeout time.Duration

	// ConnectionID and RobotName label diagnostic log events. Optional.
	ConnectionID string
	RobotName    string

	// Logger records unmatched responses. Optional.
	Logger log.Logger
}

// Client is the sequence allocator and response correlator. It owns the
// pending request set; callers hold only Handles.
type Client struct {
	config Config

	// slots holds one token per free sequence number. Acquiring a token
	// before allocation bounds the in-flight count and makes "all
	// sequences outstanding" a blocking condition instead of an error.
	slots chan struct{}

	mu      sync.Mutex
	pending map[byte]*Handle
	next    byte
	closed  bool

	closeCh chan struct{}
}

// NewClient creates a correlator that writes through config.Writer.
func NewClient(config Config) *Client {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultResponseTimeout
	}
	slots := make(chan struct{}, MaxInFlight)
	for i := 0; i < MaxInFlight; i++ {
		slots <- struct{}{}
	}
	return &Client{
		config:  config,
		slots:   slots,
		pending: make(map[byte]*Handle),
		closeCh: make(chan struct{}),
	}
}

// Send allocates a sequence number, registers a pending request, writes
// the command and returns a handle the caller can wait on. When all
// sequence numbers are outstanding, Send blocks until one frees or the
// context ends. A timeout of zero selects the configured default; the
// deadline runs from registration, so a stalled write counts against it.
func (c *Client) Send(ctx context.Context, device wire.DeviceID, command byte, payload []byte, timeout time.Duration) (*Handle, error) {
	if timeout <= 0 {
		timeout = c.config.DefaultTimeout
	}

	select {
	case <-c.slots:
	case <-c.closeCh:
		return nil, ErrClientClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.releaseSlot()
		return nil, ErrClientClosed
	}
	seq := c.allocateLocked()
	h := &Handle{
		client:    c,
		sequence:  seq,
		submitted: time.Now(),
		done:      make(chan struct{}),
	}
	// The timer is armed before the map insert publishes the handle, since
	// resolve reads it on whichever goroutine settles the request.
	h.timer = time.AfterFunc(timeout, func() { c.expire(h, timeout) })
	c.pending[seq] = h
	c.mu.Unlock()

	pkt := &wire.Packet{
		Device:   device,
		Command:  command,
		Sequence: seq,
		Payload:  payload,
	}
	if err := c.config.Writer.WritePacket(pkt); err != nil {
		// FailAll or expiry may have settled the request while the write
		// was in flight. Only the removal winner releases the slot.
		if c.remove(seq, h) {
			h.resolve(nil, err)
			c.releaseSlot()
		}
		return nil, err
	}
	return h, nil
}

// Execute sends the command and waits for its response.
func (c *Client) Execute(ctx context.Context, device wire.DeviceID, command byte, payload []byte, timeout time.Duration) (*wire.Packet, error) {
	h, err := c.Send(ctx, device, command, payload, timeout)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// SendNoAnswer writes a fire-and-forget command. It consumes no sequence
// slot and produces no handle; the robot will not answer it.
func (c *Client) SendNoAnswer(device wire.DeviceID, command byte, payload []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}
	return c.config.Writer.WritePacket(&wire.Packet{
		Device:   device,
		Command:  command,
		Sequence: 0x00,
		Payload:  payload,
		NoAnswer: true,
	})
}

// HandleResponse matches an inbound response packet to its pending
// request and resolves the handle. It reports whether a match was found;
// unmatched responses are logged and dropped.
func (c *Client) HandleResponse(pkt *wire.Packet) bool {
	if pkt.IsAsync() {
		return false
	}

	c.mu.Lock()
	h, ok := c.pending[pkt.Sequence]
	if ok {
		delete(c.pending, pkt.Sequence)
	}
	c.mu.Unlock()

	if !ok {
		c.logUnmatched(pkt)
		return false
	}

	var err error
	if pkt.Status() != wire.StatusOK {
		err = &CommandError{Status: pkt.Status()}
	}
	h.resolve(pkt, err)
	c.releaseSlot()
	return true
}

// FailAll resolves every pending request with the given error and clears
// the pending set. The transport owner calls it when the connection is
// lost. It returns the number of requests failed.
func (c *Client) FailAll(cause error) int {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.pending))
	for seq, h := range c.pending {
		delete(c.pending, seq)
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		h.resolve(nil, cause)
		c.releaseSlot()
	}
	return len(handles)
}

// Pending returns the number of requests currently awaiting responses.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close fails all pending requests with ErrClientClosed and rejects
// subsequent sends. Closing twice is a no-op.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.closeCh)
	c.FailAll(ErrClientClosed)
}

// allocateLocked returns the next free sequence number. The caller holds
// c.mu and a slot token, so a free number is guaranteed to exist. The
// counter wraps before reaching wire.AsyncSequence, which is reserved.
func (c *Client) allocateLocked() byte {
	for {
		seq := c.next
		c.next++
		if c.next == wire.AsyncSequence {
			c.next = 0
		}
		if _, inUse := c.pending[seq]; !inUse {
			return seq
		}
	}
}

// expire fails the request with a TimeoutError unless it has already
// resolved. Pointer identity guards against the sequence number having
// been reused by a later request.
func (c *Client) expire(h *Handle, timeout time.Duration) {
	if !c.remove(h.sequence, h) {
		return
	}
	h.resolve(nil, &TimeoutError{Sequence: h.sequence, Timeout: timeout})
	c.releaseSlot()
}

// cancel removes the request from the pending set and resolves it with
// the given cause. It reports false when the request had already
// resolved.
func (c *Client) cancel(h *Handle, cause error) bool {
	if !c.remove(h.sequence, h) {
		return false
	}
	h.resolve(nil, cause)
	c.releaseSlot()
	return true
}

// remove deletes the pending entry if it still belongs to h. Whoever
// removes the entry owns the resolution.
func (c *Client) remove(seq byte, h *Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.pending[seq]
	if !ok || cur != h {
		return false
	}
	delete(c.pending, seq)
	return true
}

func (c *Client) releaseSlot() {
	c.slots <- struct{}{}
}

func (c *Client) logUnmatched(pkt *wire.Packet) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.config.ConnectionID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerPacket,
		Category:     log.CategoryError,
		RobotName:    c.config.RobotName,
		Error: &log.ErrorEventData{
			Layer:   log.LayerPacket,
			Message: "unmatched response",
			Context: fmt.Sprintf("sequence %#02x", pkt.Sequence),
		},
		Packet: &log.PacketEvent{
			Device:      uint8(pkt.Device),
			Code:        pkt.Command,
			Sequence:    pkt.Sequence,
			PayloadSize: len(pkt.Payload),
			NoAnswer:    pkt.NoAnswer,
		},
	})
}
