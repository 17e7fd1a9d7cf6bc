package interaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// captureWriter records written packets and can simulate write failures.
type captureWriter struct {
	mu      sync.Mutex
	packets []*wire.Packet
	err     error
}

func (w *captureWriter) WritePacket(pkt *wire.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.packets = append(w.packets, pkt)
	return nil
}

func (w *captureWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.packets)
}

func (w *captureWriter) packet(i int) *wire.Packet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.packets[i]
}

func okResponse(seq byte, payload []byte) *wire.Packet {
	return &wire.Packet{
		Device:   wire.DeviceCore,
		Command:  byte(wire.StatusOK),
		Sequence: seq,
		Payload:  payload,
	}
}

// gateWriter blocks inside WritePacket until the test supplies the write
// result, so requests can be settled while their write is in flight.
type gateWriter struct {
	entered chan struct{}
	release chan error

	mu   sync.Mutex
	open bool
}

func newGateWriter() *gateWriter {
	return &gateWriter{
		entered: make(chan struct{}, 1),
		release: make(chan error),
	}
}

func (w *gateWriter) WritePacket(*wire.Packet) error {
	w.mu.Lock()
	open := w.open
	w.mu.Unlock()
	if open {
		return nil
	}
	w.entered <- struct{}{}
	return <-w.release
}

// passAll lets subsequent writes succeed without gating.
func (w *gateWriter) passAll() {
	w.mu.Lock()
	w.open = true
	w.mu.Unlock()
}

func TestClientSendAndResolve(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Second)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if writer.count() != 1 {
		t.Fatalf("writer got %d packets, want 1", writer.count())
	}
	sent := writer.packet(0)
	if sent.Sequence != h.Sequence() {
		t.Errorf("sent sequence = %#02x, want %#02x", sent.Sequence, h.Sequence())
	}
	if sent.NoAnswer {
		t.Error("answered command written with NoAnswer set")
	}

	if !c.HandleResponse(okResponse(h.Sequence(), []byte{0xAA})) {
		t.Fatal("HandleResponse() = false, want match")
	}

	resp, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(resp.Payload) != 1 || resp.Payload[0] != 0xAA {
		t.Errorf("response payload = % X, want AA", resp.Payload)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestClientCorrelatesInterleavedResponses(t *testing.T) {
	const n = 32
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	handles := make([]*Handle, n)
	for i := 0; i < n; i++ {
		h, err := c.Send(context.Background(), wire.DeviceSphero, 0x22, nil, time.Second)
		if err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
		handles[i] = h
	}

	// Answer in reverse order, each response carrying its own sequence
	// in the payload.
	for i := n - 1; i >= 0; i-- {
		seq := handles[i].Sequence()
		if !c.HandleResponse(okResponse(seq, []byte{seq})) {
			t.Fatalf("HandleResponse(seq=%#02x) found no match", seq)
		}
	}

	for i, h := range handles {
		resp, err := h.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait(%d) error = %v", i, err)
		}
		if resp.Payload[0] != h.Sequence() {
			t.Errorf("handle %d resolved with payload %#02x, want own sequence %#02x",
				i, resp.Payload[0], h.Sequence())
		}
	}
}

func TestClientSequenceUniqueness(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	seen := make(map[byte]bool)
	for i := 0; i < MaxInFlight; i++ {
		h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Minute)
		if err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
		if seen[h.Sequence()] {
			t.Fatalf("sequence %#02x allocated twice while outstanding", h.Sequence())
		}
		if h.Sequence() == wire.AsyncSequence {
			t.Fatal("allocator handed out the async sentinel sequence")
		}
		seen[h.Sequence()] = true
	}
	if c.Pending() != MaxInFlight {
		t.Fatalf("Pending() = %d, want %d", c.Pending(), MaxInFlight)
	}
}

func TestClientBlocksWhenExhausted(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	handles := make([]*Handle, MaxInFlight)
	for i := range handles {
		h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Minute)
		if err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
		handles[i] = h
	}

	unblocked := make(chan *Handle, 1)
	go func() {
		h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Minute)
		if err != nil {
			return
		}
		unblocked <- h
	}()

	select {
	case <-unblocked:
		t.Fatal("Send() beyond MaxInFlight returned without a free slot")
	case <-time.After(50 * time.Millisecond):
	}

	// Resolving one request frees its slot and unblocks the waiter.
	freed := handles[7]
	c.HandleResponse(okResponse(freed.Sequence(), nil))

	select {
	case h := <-unblocked:
		if h.Sequence() == wire.AsyncSequence {
			t.Error("unblocked send got the async sentinel sequence")
		}
	case <-time.After(time.Second):
		t.Fatal("Send() stayed blocked after a slot freed")
	}
}

func TestClientSendContextCancelledWhileBlocked(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	for i := 0; i < MaxInFlight; i++ {
		if _, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Minute); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, wire.DeviceCore, 0x01, nil, time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestClientTimeout(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	const timeout = 50 * time.Millisecond
	start := time.Now()
	h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, timeout)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	_, err = h.Wait(context.Background())
	elapsed := time.Since(start)

	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("Wait() error = %#v, want *TimeoutError", err)
	}
	if terr.Sequence != h.Sequence() {
		t.Errorf("TimeoutError.Sequence = %#02x, want %#02x", terr.Sequence, h.Sequence())
	}
	if elapsed < timeout {
		t.Errorf("timed out after %s, before the %s deadline", elapsed, timeout)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after timeout, want 0", c.Pending())
	}

	// A late response for the expired sequence is unmatched.
	if c.HandleResponse(okResponse(h.Sequence(), nil)) {
		t.Error("late response matched an expired request")
	}
}

func TestClientResolutionBeatsTimer(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Hour)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	c.HandleResponse(okResponse(h.Sequence(), nil))

	if _, err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v, want nil", err)
	}
}

func TestClientCommandError(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Second)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	c.HandleResponse(&wire.Packet{
		Device:   wire.DeviceCore,
		Command:  byte(wire.StatusUnsupported),
		Sequence: h.Sequence(),
	})

	resp, err := h.Wait(context.Background())
	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("Wait() error = %#v, want *CommandError", err)
	}
	if cerr.Status != wire.StatusUnsupported {
		t.Errorf("CommandError.Status = %v, want %v", cerr.Status, wire.StatusUnsupported)
	}
	if resp == nil {
		t.Error("Wait() response = nil, want rejected packet for inspection")
	}
}

func TestClientCancelViaContext(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Hour)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, werr := h.Wait(ctx)
		done <- werr
	}()
	cancel()

	select {
	case werr := <-done:
		if !errors.Is(werr, context.Canceled) {
			t.Fatalf("Wait() error = %v, want %v", werr, context.Canceled)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for cancelled Wait to return")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after cancel, want 0", c.Pending())
	}
}

func TestClientFailAll(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	const n = 5
	handles := make([]*Handle, n)
	for i := range handles {
		h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Hour)
		if err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
		handles[i] = h
	}

	cause := errors.New("link lost")
	if failed := c.FailAll(cause); failed != n {
		t.Fatalf("FailAll() = %d, want %d", failed, n)
	}

	for i, h := range handles {
		_, err := h.Wait(context.Background())
		if !errors.Is(err, cause) {
			t.Errorf("handle %d error = %v, want %v", i, err, cause)
		}
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}

	// Slots freed by FailAll are usable again.
	if _, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Second); err != nil {
		t.Fatalf("Send() after FailAll error = %v", err)
	}
}

func TestClientWriteFailureReleasesSlot(t *testing.T) {
	writeErr := errors.New("pipe broken")
	writer := &captureWriter{err: writeErr}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	_, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Second)
	if !errors.Is(err, writeErr) {
		t.Fatalf("Send() error = %v, want %v", err, writeErr)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after write failure, want 0", c.Pending())
	}

	// The failed send must not leak its slot.
	writer.mu.Lock()
	writer.err = nil
	writer.mu.Unlock()
	for i := 0; i < MaxInFlight; i++ {
		if _, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Minute); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}
}

func TestClientWriteFailureAfterFailAll(t *testing.T) {
	writer := newGateWriter()
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	sent := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Minute)
		sent <- err
	}()

	select {
	case <-writer.entered:
	case <-time.After(time.Second):
		t.Fatal("Send never reached the writer")
	}

	// Link loss settles the request while its write is still in flight,
	// freeing the slot.
	cause := errors.New("link lost")
	if failed := c.FailAll(cause); failed != 1 {
		t.Fatalf("FailAll() = %d, want 1", failed)
	}

	writeErr := errors.New("pipe broken")
	writer.release <- writeErr

	select {
	case err := <-sent:
		if !errors.Is(err, writeErr) {
			t.Fatalf("Send() error = %v, want %v", err, writeErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after the failed write")
	}

	// The slot freed by FailAll was not handed back a second time: the
	// full in-flight window is still usable.
	writer.passAll()
	for i := 0; i < MaxInFlight; i++ {
		if _, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Minute); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}
}

func TestClientTimeoutDuringStalledWrite(t *testing.T) {
	writer := newGateWriter()
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	const timeout = 50 * time.Millisecond
	type result struct {
		h   *Handle
		err error
	}
	sent := make(chan result, 1)
	go func() {
		h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, timeout)
		sent <- result{h, err}
	}()

	select {
	case <-writer.entered:
	case <-time.After(time.Second):
		t.Fatal("Send never reached the writer")
	}

	// The deadline elapses while the write is stalled; the request must
	// expire without waiting on the writer.
	waitBound := time.Now().Add(time.Second)
	for c.Pending() != 0 {
		if time.Now().After(waitBound) {
			t.Fatal("request did not expire during the stalled write")
		}
		time.Sleep(time.Millisecond)
	}

	writer.release <- nil
	select {
	case r := <-sent:
		if r.err != nil {
			t.Fatalf("Send() error = %v", r.err)
		}
		_, err := r.h.Result()
		var terr *TimeoutError
		if !errors.As(err, &terr) {
			t.Fatalf("Result() error = %#v, want *TimeoutError", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not return after the write completed")
	}
}

func TestClientSendNoAnswer(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	if err := c.SendNoAnswer(wire.DeviceSphero, 0x20, []byte{0xFF, 0x00, 0x00, 0x00}); err != nil {
		t.Fatalf("SendNoAnswer() error = %v", err)
	}
	sent := writer.packet(0)
	if !sent.NoAnswer {
		t.Error("SendNoAnswer() wrote packet without NoAnswer set")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 for fire-and-forget", c.Pending())
	}
}

func TestClientClose(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})

	h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Hour)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	c.Close()
	c.Close() // idempotent

	if _, err := h.Wait(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Wait() error = %v, want %v", err, ErrClientClosed)
	}
	if _, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Second); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Send() after Close error = %v, want %v", err, ErrClientClosed)
	}
	if err := c.SendNoAnswer(wire.DeviceCore, 0x01, nil); !errors.Is(err, ErrClientClosed) {
		t.Errorf("SendNoAnswer() after Close error = %v, want %v", err, ErrClientClosed)
	}
}

func TestHandleResult(t *testing.T) {
	writer := &captureWriter{}
	c := NewClient(Config{Writer: writer})
	defer c.Close()

	h, err := c.Send(context.Background(), wire.DeviceCore, 0x01, nil, time.Hour)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if _, err := h.Result(); !errors.Is(err, ErrPending) {
		t.Fatalf("Result() before resolution = %v, want %v", err, ErrPending)
	}

	c.HandleResponse(okResponse(h.Sequence(), []byte{0x01}))
	<-h.Done()

	resp, err := h.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if resp.Payload[0] != 0x01 {
		t.Errorf("Result() payload = % X, want 01", resp.Payload)
	}
}
