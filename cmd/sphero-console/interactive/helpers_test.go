package interactive

import (
	"strings"
	"testing"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/commands"
	"github.com/sphero-protocol/sphero-go/pkg/discovery"
	protolog "github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/sensors"
)

func TestParseRGB(t *testing.T) {
	tests := []struct {
		in      string
		want    commands.RGB
		wantErr bool
	}{
		{in: "FF8800", want: commands.RGB{R: 0xFF, G: 0x88, B: 0x00}},
		{in: "#00ff00", want: commands.RGB{G: 0xFF}},
		{in: "000000", want: commands.RGB{}},
		{in: "FFF", wantErr: true},
		{in: "GGHHII", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseRGB(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseRGB(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRGB(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRGB(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseMotor(t *testing.T) {
	got, err := parseMotor("reverse", "200")
	if err != nil {
		t.Fatalf("parseMotor: %v", err)
	}
	want := commands.MotorPower{Mode: commands.MotorReverse, Power: 200}
	if got != want {
		t.Errorf("parseMotor = %v, want %v", got, want)
	}

	if _, err := parseMotor("sideways", "10"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := parseMotor("forward", "300"); err == nil {
		t.Error("expected error for power > 255")
	}
}

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		args    []string
		enabled bool
		ok      bool
	}{
		{args: []string{"on"}, enabled: true, ok: true},
		{args: []string{"OFF"}, enabled: false, ok: true},
		{args: []string{"1"}, enabled: true, ok: true},
		{args: []string{"maybe"}, ok: false},
		{args: nil, ok: false},
		{args: []string{"on", "off"}, ok: false},
	}

	for _, tt := range tests {
		enabled, ok := parseOnOff(tt.args)
		if enabled != tt.enabled || ok != tt.ok {
			t.Errorf("parseOnOff(%v) = (%v, %v), want (%v, %v)",
				tt.args, enabled, ok, tt.enabled, tt.ok)
		}
	}
}

func TestGuessKind(t *testing.T) {
	tests := []struct {
		address string
		want    discovery.Kind
	}{
		{address: "/dev/rfcomm0", want: discovery.KindSerial},
		{address: "/dev/tty.Sphero-RGB-AMP-SPP", want: discovery.KindSerial},
		{address: "192.168.1.50:4560", want: discovery.KindBridge},
		{address: "bridge.local:4560", want: discovery.KindBridge},
		{address: "COM7", want: discovery.KindSerial},
	}

	for _, tt := range tests {
		if got := guessKind(tt.address); got != tt.want {
			t.Errorf("guessKind(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}

func TestGenerationFromName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "Sphero-RGB", want: "sphero"},
		{name: "SPRK-YYP", want: "sprk"},
		{name: "2B-1234", want: "ollie"},
		{name: "BB-ABC", want: "bb8"},
		{name: "mystery", want: ""},
	}

	for _, tt := range tests {
		if got := generationFromName(tt.name); got != tt.want {
			t.Errorf("generationFromName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFormatFrame(t *testing.T) {
	frame := sensors.Frame{Groups: []sensors.GroupSample{
		{Name: "odometer", Values: []float64{1.25, -0.5}},
		{Name: "accel", Values: []float64{0, 0, 1}},
	}}

	got := formatFrame(frame)
	want := "odometer=(1.250, -0.500)  accel=(0.000, 0.000, 1.000)"
	if got != want {
		t.Errorf("formatFrame = %q, want %q", got, want)
	}
}

func TestSummarizeEvent(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	packet := protolog.Event{
		Timestamp: ts,
		Direction: protolog.DirectionOut,
		Category:  protolog.CategoryCommand,
		Packet:    &protolog.PacketEvent{Device: 0x02, Code: 0x30, Sequence: 9, PayloadSize: 4},
	}
	got := summarizeEvent(packet)
	for _, piece := range []string{"OUT", "COMMAND", "dev 0x02", "code 0x30", "seq 9", "4 byte"} {
		if !strings.Contains(got, piece) {
			t.Errorf("packet summary %q missing %q", got, piece)
		}
	}

	state := protolog.Event{
		Timestamp:   ts,
		Category:    protolog.CategoryState,
		StateChange: &protolog.StateChangeEvent{OldState: "connecting", NewState: "connected"},
	}
	got = summarizeEvent(state)
	if !strings.Contains(got, "connecting -> connected") {
		t.Errorf("state summary %q missing transition", got)
	}
}
