package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

func TestCoreSimpleBuilders(t *testing.T) {
	tests := []struct {
		name        string
		cmd         Command
		wantID      byte
		wantPayload []byte
	}{
		{name: "ping", cmd: Ping(), wantID: CoreCmdPing},
		{name: "get versioning", cmd: GetVersioning(), wantID: CoreCmdGetVersioning},
		{name: "get bluetooth info", cmd: GetBluetoothInfo(), wantID: CoreCmdGetBluetoothInfo},
		{name: "get power state", cmd: GetPowerState(), wantID: CoreCmdGetPowerState},
		{name: "get voltage trip", cmd: GetVoltageTripPoints(), wantID: CoreCmdGetVoltageTrip},
		{name: "l1 diagnostics", cmd: RunL1Diagnostics(), wantID: CoreCmdRunL1Diagnostics},
		{name: "l2 diagnostics", cmd: RunL2Diagnostics(), wantID: CoreCmdRunL2Diagnostics},
		{name: "power notification on", cmd: SetPowerNotification(true), wantID: CoreCmdSetPowerNotification, wantPayload: []byte{0x01}},
		{name: "power notification off", cmd: SetPowerNotification(false), wantID: CoreCmdSetPowerNotification, wantPayload: []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cmd.Device != wire.DeviceCore {
				t.Errorf("Device = %v, want CORE", tt.cmd.Device)
			}
			if tt.cmd.ID != tt.wantID {
				t.Errorf("ID = 0x%02X, want 0x%02X", tt.cmd.ID, tt.wantID)
			}
			if !bytes.Equal(tt.cmd.Payload, tt.wantPayload) {
				t.Errorf("Payload = % X, want % X", tt.cmd.Payload, tt.wantPayload)
			}
		})
	}
}

func TestParseVersionInfo(t *testing.T) {
	info, err := ParseVersionInfo([]byte{0x02, 0x0F, 0x03, 0x01, 0x28, 0x04, 0x0A, 0x05})
	if err != nil {
		t.Fatalf("ParseVersionInfo failed: %v", err)
	}

	want := VersionInfo{
		RecordVersion:   0x02,
		ModelNumber:     0x0F,
		HardwareVersion: 0x03,
		MainAppMajor:    0x01,
		MainAppMinor:    0x28,
		Bootloader:      0x04,
		OrbBasic:        0x0A,
		MacroVersion:    0x05,
	}
	if info != want {
		t.Errorf("info = %+v, want %+v", info, want)
	}
	if got := info.String(); got != "model 15 firmware 1.40" {
		t.Errorf("String() = %q", got)
	}

	if _, err := ParseVersionInfo([]byte{0x02}); err == nil {
		t.Error("short payload: expected error")
	}
}

func TestSetDeviceName(t *testing.T) {
	cmd := SetDeviceName("Sphero-RGB")
	if cmd.ID != CoreCmdSetDeviceName {
		t.Errorf("ID = 0x%02X", cmd.ID)
	}
	if string(cmd.Payload) != "Sphero-RGB" {
		t.Errorf("Payload = %q", cmd.Payload)
	}

	long := strings.Repeat("x", MaxDeviceNameLen+9)
	cmd = SetDeviceName(long)
	if len(cmd.Payload) != MaxDeviceNameLen {
		t.Errorf("clipped payload is %d bytes, want %d", len(cmd.Payload), MaxDeviceNameLen)
	}
	if string(cmd.Payload) != long[:MaxDeviceNameLen] {
		t.Errorf("clipped payload = %q", cmd.Payload)
	}
}

func TestParseBluetoothInfo(t *testing.T) {
	payload := make([]byte, 0, bluetoothInfoSize)
	payload = append(payload, []byte("Sphero-RGB")...)
	payload = append(payload, make([]byte, 16-len("Sphero-RGB"))...) // NUL padding
	payload = append(payload, []byte("68864B1621CF")...)
	payload = append(payload, 0x00) // separator
	payload = append(payload, 'R', 'G', 'B')

	info, err := ParseBluetoothInfo(payload)
	if err != nil {
		t.Fatalf("ParseBluetoothInfo failed: %v", err)
	}
	if info.Name != "Sphero-RGB" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Address != "68864B1621CF" {
		t.Errorf("Address = %q", info.Address)
	}
	if info.IDColors != [3]byte{'R', 'G', 'B'} {
		t.Errorf("IDColors = %q", info.IDColors)
	}

	if _, err := ParseBluetoothInfo(payload[:20]); err == nil {
		t.Error("short payload: expected error")
	}
}

func TestSleep(t *testing.T) {
	cmd := Sleep(0x0102)
	if cmd.ID != CoreCmdSleep {
		t.Errorf("ID = 0x%02X", cmd.ID)
	}
	want := []byte{0x01, 0x02, 0x00, 0x00, 0x00}
	if !bytes.Equal(cmd.Payload, want) {
		t.Errorf("Payload = % X, want % X", cmd.Payload, want)
	}

	if got := Sleep(0).Payload; !bytes.Equal(got, []byte{0x00, 0x00, 0x00, 0x00, 0x00}) {
		t.Errorf("Sleep(0) payload = % X", got)
	}
}

func TestSetVoltageTripPoints(t *testing.T) {
	cmd, err := SetVoltageTripPoints(700, 650)
	if err != nil {
		t.Fatalf("SetVoltageTripPoints failed: %v", err)
	}
	want := []byte{0x02, 0xBC, 0x02, 0x8A}
	if !bytes.Equal(cmd.Payload, want) {
		t.Errorf("Payload = % X, want % X", cmd.Payload, want)
	}

	bad := []struct {
		name          string
		low, critical uint16
	}{
		{name: "low under floor", low: 674, critical: 640},
		{name: "low over ceiling", low: 726, critical: 650},
		{name: "critical under floor", low: 700, critical: 624},
		{name: "critical over ceiling", low: 725, critical: 676},
		{name: "too close", low: 676, critical: 675},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SetVoltageTripPoints(tt.low, tt.critical); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("error = %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestParseVoltageTripPoints(t *testing.T) {
	low, critical, err := ParseVoltageTripPoints([]byte{0x02, 0xBC, 0x02, 0x8A})
	if err != nil {
		t.Fatalf("ParseVoltageTripPoints failed: %v", err)
	}
	if low != 700 || critical != 650 {
		t.Errorf("trip points = %d, %d, want 700, 650", low, critical)
	}

	if _, _, err := ParseVoltageTripPoints([]byte{0x02}); err == nil {
		t.Error("short payload: expected error")
	}
}

func TestSetInactivityTimeout(t *testing.T) {
	cmd, err := SetInactivityTimeout(5 * time.Minute)
	if err != nil {
		t.Fatalf("SetInactivityTimeout failed: %v", err)
	}
	want := []byte{0x01, 0x2C}
	if !bytes.Equal(cmd.Payload, want) {
		t.Errorf("Payload = % X, want % X", cmd.Payload, want)
	}

	if _, err := SetInactivityTimeout(59 * time.Second); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("sub-minute timeout: error = %v, want ErrOutOfRange", err)
	}
	if _, err := SetInactivityTimeout(20 * time.Hour); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("oversized timeout: error = %v, want ErrOutOfRange", err)
	}
}

func TestPollPacketTimes(t *testing.T) {
	cmd := PollPacketTimes(0x01020304)
	if cmd.ID != CoreCmdPollPacketTimes {
		t.Errorf("ID = 0x%02X", cmd.ID)
	}
	if !bytes.Equal(cmd.Payload, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("Payload = % X", cmd.Payload)
	}
}

func TestParsePacketTimes(t *testing.T) {
	// Client sends at t1=100 and receives at t4=120; the robot stamps
	// rx=150 and tx=160 on its own clock.
	payload := make([]byte, 0, 12)
	payload = append(payload, 0x00, 0x00, 0x00, 100)
	payload = append(payload, 0x00, 0x00, 0x00, 150)
	payload = append(payload, 0x00, 0x00, 0x00, 160)

	times, err := ParsePacketTimes(payload, 120)
	if err != nil {
		t.Fatalf("ParsePacketTimes failed: %v", err)
	}
	if times.Offset != 45*time.Millisecond {
		t.Errorf("Offset = %s, want 45ms", times.Offset)
	}
	if times.Delay != 10*time.Millisecond {
		t.Errorf("Delay = %s, want 10ms", times.Delay)
	}

	if _, err := ParsePacketTimes(payload[:8], 120); err == nil {
		t.Error("short payload: expected error")
	}
}
