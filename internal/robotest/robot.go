// Package robotest provides a scripted in-memory robot for exercising
// the client stack end to end without hardware. A Robot sits on the far
// side of a net.Pipe, decodes command frames, answers them from
// registered handlers and can inject asynchronous notifications.
package robotest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/transport"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// ErrRobotClosed is returned by dials and injections after Close.
var ErrRobotClosed = errors.New("robotest: robot closed")

// ErrNoLink is returned by SendAsync when no dial is active.
var ErrNoLink = errors.New("robotest: no active link")

// writeTimeout bounds robot-side writes so a test that stops reading
// fails instead of hanging.
const writeTimeout = 2 * time.Second

// Handler produces the response for one received command. Returning nil
// suppresses the answer. The robot stamps the device and sequence echo
// before sending, so handlers only fill in status and payload.
type Handler func(cmd *wire.Packet) *wire.Packet

type handlerKey struct {
	device  wire.DeviceID
	command byte
}

// Robot emulates the robot side of a link. Every dial opens a fresh
// in-memory pipe served by a decode loop; answered commands with no
// registered handler get an empty OK response.
type Robot struct {
	mu        sync.Mutex
	handlers  map[handlerKey]Handler
	fallback  Handler
	received  []wire.Packet
	current   *session
	dialFails int
	closed    bool
}

// New creates a robot with no scripted handlers.
func New() *Robot {
	return &Robot{handlers: make(map[handlerKey]Handler)}
}

// Dialer returns a transport dialer that connects to this robot. A new
// dial terminates any previous link, as a serial port would.
func (r *Robot) Dialer() transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context, address string) (transport.Transport, error) {
		return r.dial(address)
	})
}

func (r *Robot) dial(address string) (transport.Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRobotClosed
	}
	if r.dialFails > 0 {
		r.dialFails--
		return nil, fmt.Errorf("robotest: scripted dial failure")
	}
	if r.current != nil {
		r.current.close()
	}

	client, server := net.Pipe()
	s := &session{robot: r, conn: server, dec: wire.NewDecoder()}
	r.current = s
	go s.serve()

	return transport.NetTransport(client, address), nil
}

// FailDials makes the next n dials fail before one succeeds.
func (r *Robot) FailDials(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialFails = n
}

// Handle registers fn as the responder for one command.
func (r *Robot) Handle(device wire.DeviceID, command byte, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handlerKey{device, command}] = fn
}

// HandleAny registers fn as the responder for commands with no
// dedicated handler.
func (r *Robot) HandleAny(fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// Respond registers a fixed response for one command.
func (r *Robot) Respond(device wire.DeviceID, command byte, status wire.Status, payload []byte) {
	r.Handle(device, command, func(*wire.Packet) *wire.Packet {
		return Reply(status, payload)
	})
}

// Reply builds a correlated response carrying the given status and
// payload. Device and sequence echo are stamped by the robot.
func Reply(status wire.Status, payload []byte) *wire.Packet {
	return &wire.Packet{Command: byte(status), Payload: payload}
}

// SendAsync injects an unsolicited notification into the active link.
func (r *Robot) SendAsync(id wire.AsyncID, payload []byte) error {
	r.mu.Lock()
	s := r.current
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return ErrRobotClosed
	}
	if s == nil {
		return ErrNoLink
	}
	return s.write(&wire.Packet{
		Device:   wire.DeviceCore,
		Command:  byte(id),
		Sequence: wire.AsyncSequence,
		Payload:  payload,
		NoAnswer: true,
	})
}

// SendRaw writes bytes to the active link verbatim, bypassing the
// encoder. Tests use it to put corrupt or truncated frames on the wire.
func (r *Robot) SendRaw(frame []byte) error {
	r.mu.Lock()
	s := r.current
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return ErrRobotClosed
	}
	if s == nil {
		return ErrNoLink
	}
	return s.writeRaw(frame)
}

// DropLink severs the active link without closing the robot, as a
// powered-off robot or an out-of-range radio would.
func (r *Robot) DropLink() {
	r.mu.Lock()
	s := r.current
	r.current = nil
	r.mu.Unlock()

	if s != nil {
		s.close()
	}
}

// Received returns a copy of every command decoded so far, across all
// links.
func (r *Robot) Received() []wire.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.Packet, len(r.received))
	copy(out, r.received)
	return out
}

// CommandCount reports how many times one command was received.
func (r *Robot) CommandCount(device wire.DeviceID, command byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, pkt := range r.received {
		if pkt.Device == device && pkt.Command == command {
			n++
		}
	}
	return n
}

// Close severs the active link and rejects further dials.
func (r *Robot) Close() {
	r.mu.Lock()
	r.closed = true
	s := r.current
	r.current = nil
	r.mu.Unlock()

	if s != nil {
		s.close()
	}
}

func (r *Robot) record(pkt *wire.Packet) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *pkt
	cp.Payload = append([]byte(nil), pkt.Payload...)
	r.received = append(r.received, cp)

	if fn, ok := r.handlers[handlerKey{pkt.Device, pkt.Command}]; ok {
		return fn, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// session serves one link: it decodes inbound command frames and writes
// back scripted responses.
type session struct {
	robot *Robot
	conn  net.Conn
	dec   *wire.Decoder

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *session) serve() {
	buf := make([]byte, 256)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.dec.Feed(buf[:n])
			s.drain()
		}
		if err != nil {
			s.close()
			return
		}
	}
}

func (s *session) drain() {
	for {
		pkt, err := s.dec.Next()
		if err != nil {
			// Corrupt frames are skipped; the decoder resynchronizes.
			if errors.Is(err, wire.ErrNeedMoreData) {
				return
			}
			continue
		}
		s.handle(pkt)
	}
}

func (s *session) handle(cmd *wire.Packet) {
	fn, ok := s.robot.record(cmd)

	if cmd.NoAnswer {
		// Fire and forget. Handlers still run for their side effects,
		// but any returned response is discarded.
		if ok {
			fn(cmd)
		}
		return
	}

	var resp *wire.Packet
	if ok {
		resp = fn(cmd)
	} else {
		resp = Reply(wire.StatusOK, nil)
	}
	if resp == nil {
		return
	}

	resp.Device = cmd.Device
	resp.Sequence = cmd.Sequence
	resp.NoAnswer = false
	_ = s.write(resp)
}

func (s *session) write(pkt *wire.Packet) error {
	frame, err := wire.Encode(pkt)
	if err != nil {
		return err
	}
	return s.writeRaw(frame)
}

func (s *session) writeRaw(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.conn.Write(frame); err != nil {
		return err
	}
	return nil
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}
