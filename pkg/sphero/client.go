package sphero

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sphero-protocol/sphero-go/pkg/async"
	"github.com/sphero-protocol/sphero-go/pkg/commands"
	"github.com/sphero-protocol/sphero-go/pkg/connection"
	"github.com/sphero-protocol/sphero-go/pkg/interaction"
	"github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/transport"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

const (
	// DefaultResponseTimeout bounds each command round trip.
	DefaultResponseTimeout = time.Second

	// DefaultConnectAttempts is how many dials Connect makes before
	// giving up.
	DefaultConnectAttempts = 5

	// DefaultSendRetries bounds the attempts of queries sent on the
	// retrying path, such as GetPowerState.
	DefaultSendRetries = 5
)

var (
	// ErrNoAddress is returned by Connect when the config carries no
	// robot address.
	ErrNoAddress = errors.New("no robot address configured")

	// ErrDiagnosticsBusy is returned by RunL1Diagnostics while an
	// earlier run is still waiting for its report.
	ErrDiagnosticsBusy = errors.New("level 1 diagnostics already running")

	// ErrDiagnosticsTimeout is returned by RunL1Diagnostics when the
	// robot acknowledged the command but never sent the report.
	ErrDiagnosticsTimeout = errors.New("no diagnostics report received")
)

// Config captures everything needed to talk to one robot. Only Address
// is required.
type Config struct {
	// Address is the robot's serial device path, or host:port when
	// dialing through a TCP bridge.
	Address string

	// Name labels the robot in log events. Optional.
	Name string

	// ResponseTimeout bounds each command round trip. Defaults to
	// DefaultResponseTimeout.
	ResponseTimeout time.Duration

	// ConnectAttempts is the number of dial attempts Connect makes
	// before giving up. Defaults to DefaultConnectAttempts.
	ConnectAttempts int

	// SendRetries bounds the attempts of queries sent on the retrying
	// path. Defaults to DefaultSendRetries.
	SendRetries int

	// DisableAutoStop leaves the robot rolling when the link drops. By
	// default the client arms the robot's own stop-on-disconnect flag
	// after connecting and writes a stop command during teardown.
	DisableAutoStop bool

	// Dialer opens the transport. Defaults to a serial dialer; use
	// transport.TCPDialer to reach a bridged robot.
	Dialer transport.Dialer

	// Logger receives protocol events from every layer. Optional.
	Logger log.Logger

	// ConnectionID labels log events across layers. Generated when
	// empty.
	ConnectionID string
}

// Client is the high level robot API. It owns one transport connection,
// the sequence correlator and the notification router. All methods are
// safe for concurrent use.
type Client struct {
	config Config

	conn   *transport.Connection
	calls  *interaction.Client
	router *async.Router

	mu        sync.RWMutex
	onState   []func(oldState, newState transport.ConnectionState)
	onError   []func(err error)
	streamSub *async.Subscription
	diagCh    chan *wire.Packet

	// newRetrier builds the dial retrier; swapped in tests to skip the
	// backoff waits.
	newRetrier func() *connection.Retrier
}

// New creates a client for one robot. Nothing is dialed until Connect.
func New(config Config) *Client {
	if config.ResponseTimeout <= 0 {
		config.ResponseTimeout = DefaultResponseTimeout
	}
	if config.ConnectAttempts <= 0 {
		config.ConnectAttempts = DefaultConnectAttempts
	}
	if config.SendRetries <= 0 {
		config.SendRetries = DefaultSendRetries
	}
	if config.Dialer == nil {
		config.Dialer = &transport.SerialDialer{}
	}
	if config.ConnectionID == "" {
		config.ConnectionID = uuid.New().String()
	}

	c := &Client{config: config}
	c.newRetrier = func() *connection.Retrier {
		return connection.NewRetrier(config.ConnectAttempts, 0)
	}

	// The stop packet is written on a best effort basis at the start of
	// every teardown, so a dropped link leaves the robot stationary.
	var stopPacket *wire.Packet
	if !config.DisableAutoStop {
		stop := commands.Stop()
		stopPacket = &wire.Packet{
			Device:   stop.Device,
			Command:  stop.ID,
			Payload:  stop.Payload,
			NoAnswer: true,
		}
	}

	c.conn = transport.NewConnection(transport.Config{
		Dialer:       config.Dialer,
		StopPacket:   stopPacket,
		ConnectionID: config.ConnectionID,
		RobotName:    config.Name,
		Logger:       config.Logger,
	}, &connHandler{c})

	c.calls = interaction.NewClient(interaction.Config{
		Writer:         c.conn,
		DefaultTimeout: config.ResponseTimeout,
		ConnectionID:   config.ConnectionID,
		RobotName:      config.Name,
		Logger:         config.Logger,
	})

	c.router = async.NewRouter(async.Config{
		ConnectionID: config.ConnectionID,
		RobotName:    config.Name,
		Logger:       config.Logger,
	})

	return c
}

// Connect dials the robot, retrying failed attempts with exponential
// backoff up to ConnectAttempts. On success the read loop is running
// and, unless disabled, the robot's stop-on-disconnect flag is armed.
func (c *Client) Connect(ctx context.Context) error {
	if c.config.Address == "" {
		return ErrNoAddress
	}
	if c.conn.State() != transport.StateDisconnected {
		return transport.ErrAlreadyConnected
	}

	retrier := c.newRetrier()
	err := retrier.Do(ctx, func(ctx context.Context) error {
		return c.conn.Connect(ctx, c.config.Address)
	})
	if err != nil {
		return err
	}

	if !c.config.DisableAutoStop {
		arm := commands.SetStopOnDisconnect(true)
		if err := c.calls.SendNoAnswer(arm.Device, arm.ID, arm.Payload); err != nil {
			return fmt.Errorf("arming stop on disconnect: %w", err)
		}
	}
	return nil
}

// Close halts the robot on a best effort basis, tears down the
// connection and shuts down the correlator and router. The client
// cannot be reused afterwards.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.calls.Close()
	c.router.Close()
	return err
}

// State returns the connection state.
func (c *Client) State() transport.ConnectionState {
	return c.conn.State()
}

// Connected reports whether commands can currently be sent.
func (c *Client) Connected() bool {
	return c.conn.State() == transport.StateConnected
}

// Address returns the configured robot address.
func (c *Client) Address() string {
	return c.config.Address
}

// Name returns the configured robot name.
func (c *Client) Name() string {
	return c.config.Name
}

// ID returns the connection identifier carried by this client's log
// events.
func (c *Client) ID() string {
	return c.conn.ID()
}

// Pending reports how many commands are awaiting responses.
func (c *Client) Pending() int {
	return c.calls.Pending()
}

// OnStateChange registers fn to run on every connection state
// transition. Callbacks run on the connection's goroutine and must not
// block.
func (c *Client) OnStateChange(fn func(oldState, newState transport.ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = append(c.onState, fn)
}

// OnError registers fn to run on transport and frame errors that are
// not tied to a specific command, such as checksum failures.
func (c *Client) OnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = append(c.onError, fn)
}

// Execute sends one prebuilt command and waits for its response. Most
// callers use the typed wrappers instead; this is the escape hatch for
// commands the API does not cover.
func (c *Client) Execute(ctx context.Context, cmd commands.Command) (*wire.Packet, error) {
	return c.calls.Execute(ctx, cmd.Device, cmd.ID, cmd.Payload, 0)
}

// ExecuteNoAnswer sends one prebuilt command without requesting an
// answer. Delivery is not confirmed.
func (c *Client) ExecuteNoAnswer(cmd commands.Command) error {
	return c.calls.SendNoAnswer(cmd.Device, cmd.ID, cmd.Payload)
}

// executeStable is the retrying send path for queries the firmware is
// known to drop under load. Timeouts and retryable response statuses
// are retried up to SendRetries; everything else fails immediately.
func (c *Client) executeStable(ctx context.Context, cmd commands.Command) (*wire.Packet, error) {
	var lastErr error
	for attempt := 0; attempt < c.config.SendRetries; attempt++ {
		resp, err := c.Execute(ctx, cmd)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryableSendError(err) {
			break
		}
	}
	return nil, lastErr
}

func retryableSendError(err error) bool {
	var timeout *interaction.TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	var cmdErr *interaction.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Status.IsRetryable()
}

// connHandler adapts transport callbacks onto the client: responses
// feed the correlator, notifications feed the router, and teardown
// fails everything still in flight.
type connHandler struct {
	c *Client
}

func (h *connHandler) OnResponse(pkt *wire.Packet) {
	h.c.calls.HandleResponse(pkt)
}

func (h *connHandler) OnAsync(pkt *wire.Packet) {
	if pkt.AsyncID() == wire.AsyncLevel1Diagnostics && h.c.deliverDiagnostics(pkt) {
		return
	}
	h.c.router.Dispatch(pkt)
}

func (h *connHandler) OnStateChange(oldState, newState transport.ConnectionState) {
	if newState == transport.StateDisconnecting {
		h.c.calls.FailAll(&transport.DisconnectError{})
		h.c.router.DropPending()
		h.c.failDiagnostics()
	}

	h.c.mu.RLock()
	fns := make([]func(oldState, newState transport.ConnectionState), len(h.c.onState))
	copy(fns, h.c.onState)
	h.c.mu.RUnlock()

	for _, fn := range fns {
		fn(oldState, newState)
	}
}

func (h *connHandler) OnError(err error) {
	h.c.mu.RLock()
	fns := make([]func(error), len(h.c.onError))
	copy(fns, h.c.onError)
	h.c.mu.RUnlock()

	for _, fn := range fns {
		fn(err)
	}
}
