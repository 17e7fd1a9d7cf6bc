package robotest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/transport"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

func dialRobot(t *testing.T, r *Robot) transport.Transport {
	t.Helper()
	tr, err := r.Dialer().Dial(context.Background(), "test")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return tr
}

func readPacket(t *testing.T, r transport.Transport) *wire.Packet {
	t.Helper()
	dec := wire.NewDecoder()
	buf := make([]byte, 256)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := r.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			pkt, err := dec.Next()
			if err == nil {
				return pkt
			}
			if !errors.Is(err, wire.ErrNeedMoreData) {
				t.Fatalf("decode: %v", err)
			}
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	t.Fatal("no packet before deadline")
	return nil
}

func writeCommand(t *testing.T, w transport.Transport, pkt *wire.Packet) {
	t.Helper()
	frame, err := wire.Encode(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := w.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRobotAnswersWithDefaultOK(t *testing.T) {
	robot := New()
	defer robot.Close()
	tr := dialRobot(t, robot)

	writeCommand(t, tr, &wire.Packet{Device: wire.DeviceCore, Command: 0x01, Sequence: 7})
	resp := readPacket(t, tr)

	if resp.Sequence != 7 {
		t.Errorf("sequence echo = %d, want 7", resp.Sequence)
	}
	if resp.Status() != wire.StatusOK {
		t.Errorf("status = %s, want OK", resp.Status())
	}
	if resp.IsAsync() {
		t.Error("response flagged async")
	}
	if got := robot.CommandCount(wire.DeviceCore, 0x01); got != 1 {
		t.Errorf("command count = %d, want 1", got)
	}
}

func TestRobotScriptedResponse(t *testing.T) {
	robot := New()
	defer robot.Close()
	robot.Respond(wire.DeviceSphero, 0x22, wire.StatusOK, []byte{0xFF, 0x00, 0x80})
	tr := dialRobot(t, robot)

	writeCommand(t, tr, &wire.Packet{Device: wire.DeviceSphero, Command: 0x22, Sequence: 1})
	resp := readPacket(t, tr)

	if len(resp.Payload) != 3 || resp.Payload[0] != 0xFF || resp.Payload[2] != 0x80 {
		t.Errorf("payload = %#v", resp.Payload)
	}
}

func TestRobotSuppressedAnswer(t *testing.T) {
	robot := New()
	defer robot.Close()
	robot.Handle(wire.DeviceCore, 0x01, func(*wire.Packet) *wire.Packet { return nil })
	tr := dialRobot(t, robot)

	writeCommand(t, tr, &wire.Packet{Device: wire.DeviceCore, Command: 0x01, Sequence: 2})
	// A follow-up command with a scripted answer proves the first one
	// was swallowed rather than delayed.
	writeCommand(t, tr, &wire.Packet{Device: wire.DeviceCore, Command: 0x02, Sequence: 3})

	resp := readPacket(t, tr)
	if resp.Sequence != 3 {
		t.Errorf("sequence = %d, want 3 (answer to second command)", resp.Sequence)
	}
}

func TestRobotSendAsync(t *testing.T) {
	robot := New()
	defer robot.Close()
	tr := dialRobot(t, robot)

	// Pipe writes block until read, so inject from a second goroutine.
	sent := make(chan error, 1)
	go func() { sent <- robot.SendAsync(wire.AsyncPowerNotification, []byte{0x02}) }()

	pkt := readPacket(t, tr)
	if err := <-sent; err != nil {
		t.Fatalf("send async: %v", err)
	}
	if !pkt.IsAsync() {
		t.Fatal("packet not flagged async")
	}
	if pkt.AsyncID() != wire.AsyncPowerNotification {
		t.Errorf("async ID = %s", pkt.AsyncID())
	}
}

func TestRobotSendRaw(t *testing.T) {
	robot := New()
	defer robot.Close()
	tr := dialRobot(t, robot)

	garbage := []byte{0xFF, 0xFF, 0x00, 0x01, 0x05, 0x01, 0x00}
	sent := make(chan error, 1)
	go func() { sent <- robot.SendRaw(garbage) }()

	got := make([]byte, len(garbage))
	if _, err := io.ReadFull(tr, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := <-sent; err != nil {
		t.Fatalf("send raw: %v", err)
	}
	if !bytes.Equal(got, garbage) {
		t.Errorf("link bytes = % X, want % X", got, garbage)
	}
}

func TestRobotSendRawWithoutLink(t *testing.T) {
	robot := New()
	defer robot.Close()

	if err := robot.SendRaw([]byte{0xFF}); !errors.Is(err, ErrNoLink) {
		t.Errorf("err = %v, want ErrNoLink", err)
	}
}

func TestRobotSendAsyncWithoutLink(t *testing.T) {
	robot := New()
	defer robot.Close()

	if err := robot.SendAsync(wire.AsyncPowerNotification, nil); !errors.Is(err, ErrNoLink) {
		t.Errorf("err = %v, want ErrNoLink", err)
	}
}

func TestRobotDropLink(t *testing.T) {
	robot := New()
	defer robot.Close()
	tr := dialRobot(t, robot)

	robot.DropLink()

	buf := make([]byte, 16)
	if _, err := tr.Read(buf); err == nil {
		t.Error("read succeeded after link drop")
	}
}

func TestRobotFailDials(t *testing.T) {
	robot := New()
	defer robot.Close()
	robot.FailDials(1)

	if _, err := robot.Dialer().Dial(context.Background(), "test"); err == nil {
		t.Fatal("first dial succeeded, want scripted failure")
	}
	if _, err := robot.Dialer().Dial(context.Background(), "test"); err != nil {
		t.Fatalf("second dial: %v", err)
	}
}

func TestRobotClosedRejectsDials(t *testing.T) {
	robot := New()
	robot.Close()

	if _, err := robot.Dialer().Dial(context.Background(), "test"); !errors.Is(err, ErrRobotClosed) {
		t.Errorf("err = %v, want ErrRobotClosed", err)
	}
}
