package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	protolog "github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/transport"
)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// SerialPath is the serial device of the robot to expose.
	SerialPath string

	// ListenAddr is the TCP listen address, for example ":4521".
	ListenAddr string

	// RobotName is the robot's advertised name, used in log events.
	RobotName string

	// Dialer opens the serial side. Nil selects a SerialDialer.
	Dialer transport.Dialer

	// Logger receives connect/disconnect events.
	Logger protolog.Logger
}

// Bridge exposes one serial robot to one TCP client at a time. Bytes
// pass through unmodified in both directions; the protocol stays
// end to end between the client and the robot.
type Bridge struct {
	config   BridgeConfig
	listener net.Listener
	logger   protolog.Logger

	mu     sync.Mutex
	busy   bool
	client net.Conn
	closed bool

	wg sync.WaitGroup
}

// NewBridge starts listening on the configured address. Call Serve to
// accept clients.
func NewBridge(config BridgeConfig) (*Bridge, error) {
	if config.SerialPath == "" {
		return nil, errors.New("no serial device configured")
	}
	if config.Dialer == nil {
		config.Dialer = &transport.SerialDialer{}
	}
	if config.Logger == nil {
		config.Logger = protolog.NoopLogger{}
	}

	ln, err := net.Listen("tcp", config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", config.ListenAddr, err)
	}

	return &Bridge{
		config:   config,
		listener: ln,
		logger:   config.Logger,
	}, nil
}

// Addr returns the bound listen address.
func (b *Bridge) Addr() net.Addr {
	return b.listener.Addr()
}

// Serve accepts clients until the bridge is closed. One client holds
// the robot at a time; concurrent connection attempts are turned away.
func (b *Bridge) Serve(ctx context.Context) error {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			conn.Close()
			return nil
		}
		if b.busy {
			b.mu.Unlock()
			b.reject(conn)
			continue
		}
		b.busy = true
		b.client = conn
		b.mu.Unlock()

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.serveClient(ctx, conn)
		}()
	}
}

// Close stops accepting, drops the active client and waits for the
// pump to drain.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	client := b.client
	b.mu.Unlock()

	err := b.listener.Close()
	if client != nil {
		client.Close()
	}
	b.wg.Wait()
	return err
}

// reject turns away a client while another one holds the robot.
func (b *Bridge) reject(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	conn.Close()
	b.logger.Log(protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: uuid.New().String(),
		Direction:    protolog.DirectionIn,
		Layer:        protolog.LayerConnection,
		Category:     protolog.CategoryError,
		RobotName:    b.config.RobotName,
		Address:      remote,
		Error: &protolog.ErrorEventData{
			Layer:   protolog.LayerConnection,
			Message: "client rejected, bridge busy",
			Context: remote,
		},
	})
}

// serveClient opens the serial side and pumps bytes both ways until
// either side drops.
func (b *Bridge) serveClient(ctx context.Context, conn net.Conn) {
	connID := uuid.New().String()
	remote := conn.RemoteAddr().String()

	defer func() {
		conn.Close()
		b.mu.Lock()
		b.busy = false
		b.client = nil
		b.mu.Unlock()
	}()

	serial, err := b.config.Dialer.Dial(ctx, b.config.SerialPath)
	if err != nil {
		b.logger.Log(protolog.Event{
			Timestamp:    time.Now(),
			ConnectionID: connID,
			Direction:    protolog.DirectionOut,
			Layer:        protolog.LayerConnection,
			Category:     protolog.CategoryError,
			RobotName:    b.config.RobotName,
			Address:      b.config.SerialPath,
			Error: &protolog.ErrorEventData{
				Layer:   protolog.LayerConnection,
				Message: "serial open failed",
				Context: err.Error(),
			},
		})
		return
	}

	b.logState(connID, remote, "idle", "bridging", "client "+remote)

	// Byte-level pass-through. The first side to fail or close tears
	// down the other so both copies return.
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(serial, conn)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(conn, serial)
		done <- struct{}{}
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	conn.Close()
	serial.Close()
	<-done

	b.logState(connID, remote, "bridging", "idle", "client gone")
}

func (b *Bridge) logState(connID, remote, oldState, newState, reason string) {
	b.logger.Log(protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    protolog.DirectionIn,
		Layer:        protolog.LayerConnection,
		Category:     protolog.CategoryState,
		RobotName:    b.config.RobotName,
		Address:      remote,
		StateChange: &protolog.StateChangeEvent{
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
