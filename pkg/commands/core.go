package commands

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// MaxDeviceNameLen is the longest name SET DEVICE NAME stores; longer
// input is clipped, matching firmware behavior.
const MaxDeviceNameLen = 48

// Ping verifies the data link and that the robot is dispatching
// commands.
func Ping() Command {
	return Command{Device: wire.DeviceCore, ID: CoreCmdPing}
}

// GetVersioning requests the firmware version record.
func GetVersioning() Command {
	return Command{Device: wire.DeviceCore, ID: CoreCmdGetVersioning}
}

// VersionInfo is the parsed GET VERSIONING response.
type VersionInfo struct {
	RecordVersion   byte
	ModelNumber     byte
	HardwareVersion byte
	MainAppMajor    byte
	MainAppMinor    byte
	Bootloader      byte
	OrbBasic        byte
	MacroVersion    byte
}

// String renders the main application version, the part humans ask for.
func (v VersionInfo) String() string {
	return fmt.Sprintf("model %d firmware %d.%d", v.ModelNumber, v.MainAppMajor, v.MainAppMinor)
}

// ParseVersionInfo decodes a GET VERSIONING response payload.
func ParseVersionInfo(payload []byte) (VersionInfo, error) {
	if len(payload) != 8 {
		return VersionInfo{}, fmt.Errorf("versioning payload is %d bytes, want 8", len(payload))
	}
	return VersionInfo{
		RecordVersion:   payload[0],
		ModelNumber:     payload[1],
		HardwareVersion: payload[2],
		MainAppMajor:    payload[3],
		MainAppMinor:    payload[4],
		Bootloader:      payload[5],
		OrbBasic:        payload[6],
		MacroVersion:    payload[7],
	}, nil
}

// SetDeviceName assigns the name reported by GET BLUETOOTH INFO. Names
// longer than MaxDeviceNameLen bytes are clipped.
func SetDeviceName(name string) Command {
	b := []byte(name)
	if len(b) > MaxDeviceNameLen {
		b = b[:MaxDeviceNameLen]
	}
	return Command{Device: wire.DeviceCore, ID: CoreCmdSetDeviceName, Payload: b}
}

// GetBluetoothInfo requests the robot's name, address and ID colors.
func GetBluetoothInfo() Command {
	return Command{Device: wire.DeviceCore, ID: CoreCmdGetBluetoothInfo}
}

// BluetoothInfo is the parsed GET BLUETOOTH INFO response.
type BluetoothInfo struct {
	// Name is the textual robot name, NUL padding trimmed.
	Name string

	// Address is the Bluetooth address as twelve ASCII hex digits.
	Address string

	// IDColors are the three color letters the robot blinks while not
	// connected, for example "RGB" or "YYP".
	IDColors [3]byte
}

const bluetoothInfoSize = 32

// ParseBluetoothInfo decodes a GET BLUETOOTH INFO response payload:
// 16 name bytes, 12 address bytes, one pad byte and 3 ID color bytes.
func ParseBluetoothInfo(payload []byte) (BluetoothInfo, error) {
	if len(payload) != bluetoothInfoSize {
		return BluetoothInfo{}, fmt.Errorf("bluetooth info payload is %d bytes, want %d", len(payload), bluetoothInfoSize)
	}
	name := payload[:16]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	info := BluetoothInfo{
		Name:    string(name),
		Address: string(payload[16:28]),
	}
	copy(info.IDColors[:], payload[29:32])
	return info, nil
}

// GetPowerState requests power telemetry; parse the response with
// sensors.ParsePowerState.
func GetPowerState() Command {
	return Command{Device: wire.DeviceCore, ID: CoreCmdGetPowerState}
}

// SetPowerNotification enables or disables power notification async
// packets, sent every 10 seconds and on state changes.
func SetPowerNotification(enabled bool) Command {
	return Command{Device: wire.DeviceCore, ID: CoreCmdSetPowerNotification, Payload: []byte{flag(enabled)}}
}

// Sleep puts the robot to sleep immediately and breaks the connection.
// A nonzero wakeup reawakens the robot after that many seconds; zero
// sleeps until touched.
func Sleep(wakeupSeconds uint16) Command {
	payload := make([]byte, 0, 5)
	payload = binary.BigEndian.AppendUint16(payload, wakeupSeconds)
	payload = append(payload, 0x00, 0x00, 0x00)
	return Command{Device: wire.DeviceCore, ID: CoreCmdSleep, Payload: payload}
}

// GetVoltageTripPoints requests the low and critical battery thresholds.
func GetVoltageTripPoints() Command {
	return Command{Device: wire.DeviceCore, ID: CoreCmdGetVoltageTrip}
}

// ParseVoltageTripPoints decodes the GET VOLTAGE TRIP POINTS response:
// the low and critical thresholds in hundredths of a volt.
func ParseVoltageTripPoints(payload []byte) (low, critical uint16, err error) {
	if len(payload) != 4 {
		return 0, 0, fmt.Errorf("voltage trip payload is %d bytes, want 4", len(payload))
	}
	return binary.BigEndian.Uint16(payload[0:2]), binary.BigEndian.Uint16(payload[2:4]), nil
}

// Voltage trip point limits, in hundredths of a volt.
const (
	VoltageTripLowMin      = 675
	VoltageTripLowMax      = 725
	VoltageTripCriticalMin = 625
	VoltageTripCriticalMax = 675
	VoltageTripSeparation  = 25
)

// SetVoltageTripPoints adjusts the low and critical battery thresholds,
// in hundredths of a volt. The firmware constrains low to 675..725,
// critical to 625..675, with at least 0.25 V separation.
func SetVoltageTripPoints(low, critical uint16) (Command, error) {
	if low < VoltageTripLowMin || low > VoltageTripLowMax {
		return Command{}, fmt.Errorf("%w: low trip point %d", ErrOutOfRange, low)
	}
	if critical < VoltageTripCriticalMin || critical > VoltageTripCriticalMax {
		return Command{}, fmt.Errorf("%w: critical trip point %d", ErrOutOfRange, critical)
	}
	if low-critical < VoltageTripSeparation {
		return Command{}, fmt.Errorf("%w: trip points %d and %d closer than %d", ErrOutOfRange, low, critical, VoltageTripSeparation)
	}
	payload := make([]byte, 0, 4)
	payload = binary.BigEndian.AppendUint16(payload, low)
	payload = binary.BigEndian.AppendUint16(payload, critical)
	return Command{Device: wire.DeviceCore, ID: CoreCmdSetVoltageTrip, Payload: payload}, nil
}

// MinInactivityTimeout is the shortest inactivity timeout the firmware
// accepts.
const MinInactivityTimeout = 60 * time.Second

// SetInactivityTimeout reprograms the sleep-on-inactivity timer. The
// firmware floor is one minute; the setting persists across power
// cycles.
func SetInactivityTimeout(d time.Duration) (Command, error) {
	seconds := int64(d / time.Second)
	if seconds < int64(MinInactivityTimeout/time.Second) || seconds > 0xFFFF {
		return Command{}, fmt.Errorf("%w: inactivity timeout %s", ErrOutOfRange, d)
	}
	payload := binary.BigEndian.AppendUint16(nil, uint16(seconds))
	return Command{Device: wire.DeviceCore, ID: CoreCmdSetInactivityTimeout, Payload: payload}, nil
}

// RunL1Diagnostics asks the firmware for its level 1 diagnostic report.
// The answer does not come back as a response packet: the robot first
// acks the command, then ships the ASCII report in a level 1
// diagnostics async packet.
func RunL1Diagnostics() Command {
	return Command{Device: wire.DeviceCore, ID: CoreCmdRunL1Diagnostics}
}

// RunL2Diagnostics requests the binary level 2 diagnostic record.
func RunL2Diagnostics() Command {
	return Command{Device: wire.DeviceCore, ID: CoreCmdRunL2Diagnostics}
}

// PollPacketTimes starts a clock synchronization exchange. clientTx is
// the client's transmit timestamp in milliseconds, echoed back by the
// robot alongside its own receive and transmit times.
func PollPacketTimes(clientTx uint32) Command {
	return Command{
		Device:  wire.DeviceCore,
		ID:      CoreCmdPollPacketTimes,
		Payload: binary.BigEndian.AppendUint32(nil, clientTx),
	}
}

// PacketTimes is the outcome of a POLL PACKET TIMES exchange.
type PacketTimes struct {
	// Offset is the maximum-likelihood offset of the client clock to
	// the robot's system clock.
	Offset time.Duration

	// Delay is the network round-trip delay.
	Delay time.Duration
}

// ParsePacketTimes computes clock offset and round-trip delay from the
// POLL PACKET TIMES response. clientRx is the client's receive timestamp
// in milliseconds, on the same clock as the clientTx passed to
// PollPacketTimes.
func ParsePacketTimes(payload []byte, clientRx uint32) (PacketTimes, error) {
	if len(payload) != 12 {
		return PacketTimes{}, fmt.Errorf("packet times payload is %d bytes, want 12", len(payload))
	}
	t1 := int64(binary.BigEndian.Uint32(payload[0:4]))  // client TX, echoed
	t2 := int64(binary.BigEndian.Uint32(payload[4:8]))  // robot RX
	t3 := int64(binary.BigEndian.Uint32(payload[8:12])) // robot TX
	t4 := int64(clientRx)

	offset := ((t2 - t1) + (t3 - t4)) / 2
	delay := (t4 - t1) - (t3 - t2)
	return PacketTimes{
		Offset: time.Duration(offset) * time.Millisecond,
		Delay:  time.Duration(delay) * time.Millisecond,
	}, nil
}

func flag(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}
