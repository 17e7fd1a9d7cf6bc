package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// ConnectionState tracks the lifecycle of a Connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Handler receives decoded traffic and lifecycle notifications from a
// Connection. All callbacks are invoked from the connection's internal
// goroutines and must not block for long.
type Handler interface {
	// OnResponse is called for every inbound packet that answers a
	// command, in RFCOMM arrival order.
	OnResponse(pkt *wire.Packet)

	// OnAsync is called for every inbound asynchronous notification,
	// in RFCOMM arrival order.
	OnAsync(pkt *wire.Packet)

	// OnStateChange is called after every connection state transition.
	OnStateChange(oldState, newState ConnectionState)

	// OnError is called for transport failures and corrupt frames. A
	// corrupt frame does not terminate the connection; a transport
	// failure is followed by teardown.
	OnError(err error)
}

// Config holds the settings of a Connection.
type Config struct {
	// Dialer opens the underlying transport. Required.
	Dialer Dialer

	// ReadBufferSize is the size of the read loop's buffer in bytes.
	// Defaults to 256, comfortably above the largest legal frame.
	ReadBufferSize int

	// CloseTimeout bounds how long Close waits for the read loop to
	// exit. Defaults to 2 seconds.
	CloseTimeout time.Duration

	// StopPacket, when set, is written to the transport on a best effort
	// basis at the start of every teardown of an established connection.
	// Callers use it to halt the robot before the link drops.
	StopPacket *wire.Packet

	// ConnectionID labels log events. A random UUID is generated when
	// empty.
	ConnectionID string

	// RobotName labels log events. Optional.
	RobotName string

	// Logger receives frame, packet, state and error events. Optional.
	Logger log.Logger
}

// Connection manages a single transport to a robot: it dials, runs the
// read loop, decodes inbound frames, serializes outbound writes and
// drives the connection state machine. A Connection is reusable; after a
// disconnect it returns to StateDisconnected and may be connected again.
type Connection struct {
	config  Config
	handler Handler
	connID  string

	state atomic.Int32

	mu        sync.RWMutex
	transport Transport
	decoder   *wire.Decoder
	closeDone chan struct{}
	address   string

	// writeMu serializes outbound frames so they are never interleaved.
	writeMu sync.Mutex
}

// NewConnection creates a connection manager with the given configuration
// and handler. The handler is required.
func NewConnection(config Config, handler Handler) *Connection {
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 256
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = 2 * time.Second
	}
	connID := config.ConnectionID
	if connID == "" {
		connID = uuid.New().String()
	}
	return &Connection{
		config:  config,
		handler: handler,
		connID:  connID,
	}
}

// ID returns the connection identifier used in log events.
func (c *Connection) ID() string {
	return c.connID
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Address returns the address of the current or most recent transport.
func (c *Connection) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// Connect dials the address and starts the read loop. It returns
// ErrAlreadyConnected unless the connection is in StateDisconnected.
func (c *Connection) Connect(ctx context.Context, address string) error {
	if c.config.Dialer == nil {
		return errors.New("transport: connection has no dialer")
	}
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}
	c.notifyStateChange(StateDisconnected, StateConnecting, "")

	tr, err := c.config.Dialer.Dial(ctx, address)
	if err != nil {
		terr := &TransportError{Op: "dial", Err: err}
		c.logError(terr, log.LayerConnection, "dial")
		c.state.Store(int32(StateDisconnected))
		c.notifyStateChange(StateConnecting, StateDisconnected, terr.Error())
		return terr
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.transport = tr
	c.decoder = wire.NewDecoder()
	c.closeDone = done
	c.address = address
	c.mu.Unlock()

	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		// Torn down while the dial was in flight.
		c.mu.Lock()
		c.transport = nil
		c.mu.Unlock()
		tr.Close()
		close(done)
		return ErrConnectionClosed
	}
	c.notifyStateChange(StateConnecting, StateConnected, "")

	go c.readLoop(tr, done)
	return nil
}

// WritePacket encodes the packet and writes the frame to the transport.
// It returns ErrNotConnected unless the connection is established.
func (c *Connection) WritePacket(pkt *wire.Packet) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	frame, err := wire.Encode(pkt)
	if err != nil {
		return err
	}
	if err := c.writeFrame(frame); err != nil {
		return err
	}
	c.logPacket(pkt, log.DirectionOut)
	return nil
}

// writeFrame writes raw frame bytes without a state check so that the
// stop packet can still go out during teardown.
func (c *Connection) writeFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	tr := c.transport
	c.mu.RUnlock()
	if tr == nil {
		return ErrNotConnected
	}
	if _, err := tr.Write(frame); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	c.logFrame(frame, log.DirectionOut)
	return nil
}

// Close tears the connection down and waits for the read loop to exit.
// Closing a disconnected connection is a no-op.
func (c *Connection) Close() error {
	if c.State() == StateDisconnected {
		return nil
	}
	c.mu.RLock()
	done := c.closeDone
	c.mu.RUnlock()

	c.teardown(nil)

	if done != nil {
		select {
		case <-done:
		case <-time.After(c.config.CloseTimeout):
			return ErrCloseTimeout
		}
	}
	return nil
}

// teardown drives the DISCONNECTING sequence exactly once per established
// session: announce the transition, write the stop packet on a best
// effort basis, close the transport, and settle in StateDisconnected.
func (c *Connection) teardown(cause error) {
	for {
		s := c.State()
		if s == StateDisconnected || s == StateDisconnecting {
			return
		}
		if !c.state.CompareAndSwap(int32(s), int32(StateDisconnecting)) {
			continue
		}
		reason := ""
		if cause != nil {
			reason = cause.Error()
		}
		c.notifyStateChange(s, StateDisconnecting, reason)

		if s == StateConnected && c.config.StopPacket != nil {
			if frame, err := wire.Encode(c.config.StopPacket); err == nil {
				_ = c.writeFrame(frame)
			}
		}
		break
	}

	c.mu.Lock()
	tr := c.transport
	c.transport = nil
	c.mu.Unlock()
	if tr != nil {
		tr.Close()
	}

	c.state.Store(int32(StateDisconnected))
	c.notifyStateChange(StateDisconnecting, StateDisconnected, "")
}

// readLoop pulls bytes off the transport, feeds the frame decoder and
// dispatches decoded packets until the transport fails or is closed.
func (c *Connection) readLoop(tr Transport, done chan struct{}) {
	defer close(done)

	buf := make([]byte, c.config.ReadBufferSize)
	c.mu.RLock()
	dec := c.decoder
	c.mu.RUnlock()

	for {
		n, err := tr.Read(buf)
		if n > 0 {
			c.logFrame(buf[:n], log.DirectionIn)
			dec.Feed(buf[:n])
			c.drainPackets(dec)
		}
		if err != nil {
			if c.State() != StateConnected {
				// Expected during teardown.
				return
			}
			terr := &TransportError{Op: "read", Err: err}
			c.logError(terr, log.LayerConnection, "read loop")
			c.handler.OnError(terr)
			c.teardown(&DisconnectError{Cause: terr})
			return
		}
	}
}

// drainPackets decodes every complete frame currently buffered and routes
// each packet to the async or response callback.
func (c *Connection) drainPackets(dec *wire.Decoder) {
	for {
		pkt, err := dec.Next()
		if err != nil {
			if errors.Is(err, wire.ErrNeedMoreData) {
				return
			}
			// Corrupt frame. The decoder has already resynchronized;
			// report it and keep reading.
			c.logError(err, log.LayerFrame, "frame decode")
			c.handler.OnError(err)
			continue
		}
		c.logPacket(pkt, log.DirectionIn)
		if pkt.IsAsync() {
			c.handler.OnAsync(pkt)
		} else {
			c.handler.OnResponse(pkt)
		}
	}
}

func (c *Connection) notifyStateChange(oldState, newState ConnectionState, reason string) {
	c.logStateChange(oldState, newState, reason)
	c.handler.OnStateChange(oldState, newState)
}

func (c *Connection) logFrame(data []byte, dir log.Direction) {
	if c.config.Logger == nil {
		return
	}
	frame := &log.FrameEvent{Size: len(data)}
	if len(data) > log.MaxLogFrameDataSize {
		frame.Data = append([]byte(nil), data[:log.MaxLogFrameDataSize]...)
		frame.Truncated = true
	} else {
		frame.Data = append([]byte(nil), data...)
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        log.LayerFrame,
		Category:     categoryFor(dir, false),
		RobotName:    c.config.RobotName,
		Address:      c.Address(),
		Frame:        frame,
	})
}

func (c *Connection) logPacket(pkt *wire.Packet, dir log.Direction) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        log.LayerPacket,
		Category:     categoryFor(dir, pkt.IsAsync()),
		RobotName:    c.config.RobotName,
		Address:      c.Address(),
		Packet: &log.PacketEvent{
			Device:      uint8(pkt.Device),
			Code:        pkt.Command,
			Sequence:    pkt.Sequence,
			PayloadSize: len(pkt.Payload),
			NoAnswer:    pkt.NoAnswer,
		},
	})
}

func (c *Connection) logStateChange(oldState, newState ConnectionState, reason string) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerConnection,
		Category:     log.CategoryState,
		RobotName:    c.config.RobotName,
		Address:      c.Address(),
		StateChange: &log.StateChangeEvent{
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

func (c *Connection) logError(err error, layer log.Layer, context string) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    log.DirectionIn,
		Layer:        layer,
		Category:     log.CategoryError,
		RobotName:    c.config.RobotName,
		Address:      c.Address(),
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}

func categoryFor(dir log.Direction, async bool) log.Category {
	if dir == log.DirectionOut {
		return log.CategoryCommand
	}
	if async {
		return log.CategoryAsync
	}
	return log.CategoryResponse
}
