package commands

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/sensors"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// MaxHeading is the largest heading in degrees; headings wrap at 360.
const MaxHeading = 359

// SetHeading rotates the robot's zero-heading reference to the given
// absolute heading in degrees.
func SetHeading(degrees uint16) (Command, error) {
	if degrees > MaxHeading {
		return Command{}, fmt.Errorf("%w: heading %d", ErrOutOfRange, degrees)
	}
	return Command{
		Device:  wire.DeviceSphero,
		ID:      SpheroCmdSetHeading,
		Payload: binary.BigEndian.AppendUint16(nil, degrees),
	}, nil
}

// SetStabilization turns the IMU-driven stabilization system on or off.
// With stabilization off the robot no longer holds heading; raw motor
// commands require it off.
func SetStabilization(enabled bool) Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdSetStabilization, Payload: []byte{flag(enabled)}}
}

// rotationRateStep is the raw-unit granularity of the rotation rate
// register, in degrees per second.
const rotationRateStep = 0.784

// SetRotationRate limits how fast the robot turns to reach a new
// heading, in degrees per second. Rates above 199 saturate to the
// register maximum.
func SetRotationRate(dps float64) (Command, error) {
	if dps < 0 {
		return Command{}, fmt.Errorf("%w: rotation rate %g", ErrOutOfRange, dps)
	}
	raw := byte(0xFF)
	if dps <= 199 {
		raw = byte(dps / rotationRateStep)
	}
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdSetRotationRate, Payload: []byte{raw}}, nil
}

// GetChassisID requests the factory-assigned chassis serial number.
func GetChassisID() Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdGetChassisID}
}

// ParseChassisID decodes a GET CHASSIS ID response payload.
func ParseChassisID(payload []byte) (uint16, error) {
	if len(payload) != 2 {
		return 0, fmt.Errorf("chassis id payload is %d bytes, want 2", len(payload))
	}
	return binary.BigEndian.Uint16(payload), nil
}

// SetDataStreaming configures sensor streaming at the given frequency
// in Hz. Samples arrive as sensor data async packets; decode them with
// the same StreamConfig.
func SetDataStreaming(cfg sensors.StreamConfig, frequencyHz int) (Command, error) {
	payload, err := cfg.EncodeRequest(frequencyHz)
	if err != nil {
		return Command{}, err
	}
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdSetDataStreaming, Payload: payload}, nil
}

// StopDataStreaming halts an active sensor stream.
func StopDataStreaming() Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdSetDataStreaming, Payload: sensors.EncodeStopRequest()}
}

// RGB is an LED color.
type RGB struct {
	R, G, B byte
}

// String renders the color as a hex triplet.
func (c RGB) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// SetRGBLED changes the main LED color. With persist set the color
// survives power cycles as the new connection color.
func SetRGBLED(c RGB, persist bool) Command {
	return Command{
		Device:  wire.DeviceSphero,
		ID:      SpheroCmdSetRGBLED,
		Payload: []byte{c.R, c.G, c.B, flag(persist)},
	}
}

// SetBackLED sets the brightness of the blue tail light that marks the
// robot's back. It is not persistent.
func SetBackLED(brightness byte) Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdSetBackLED, Payload: []byte{brightness}}
}

// GetRGBLED requests the persisted main LED color. While a transient
// color is showing, the response still reports the persisted one.
func GetRGBLED() Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdGetRGBLED}
}

// ParseRGBLED decodes a GET RGB LED response payload.
func ParseRGBLED(payload []byte) (RGB, error) {
	if len(payload) != 3 {
		return RGB{}, fmt.Errorf("rgb led payload is %d bytes, want 3", len(payload))
	}
	return RGB{R: payload[0], G: payload[1], B: payload[2]}, nil
}

// Roll drives the robot at the given speed toward the given heading in
// degrees. With fastRotate the robot turns to the new heading as fast
// as it can instead of at the configured rotation rate.
func Roll(speed byte, heading uint16, fastRotate bool) (Command, error) {
	if heading > MaxHeading {
		return Command{}, fmt.Errorf("%w: heading %d", ErrOutOfRange, heading)
	}
	state := byte(0x01)
	if fastRotate {
		state = 0x02
	}
	payload := make([]byte, 0, 4)
	payload = append(payload, speed)
	payload = binary.BigEndian.AppendUint16(payload, heading)
	payload = append(payload, state)
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdRoll, Payload: payload}, nil
}

// Stop commands an immediate halt.
func Stop() Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdRoll, Payload: []byte{0x00, 0x00, 0x00, 0x00}}
}

// Boost engages or releases the boost macro.
func Boost(enabled bool) Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdBoost, Payload: []byte{flag(enabled)}}
}

// MotorMode selects how one drive motor is driven by SetRawMotors.
type MotorMode byte

const (
	MotorOff     MotorMode = 0x00
	MotorForward MotorMode = 0x01
	MotorReverse MotorMode = 0x02
	MotorBrake   MotorMode = 0x03
	MotorIgnore  MotorMode = 0x04
)

// String returns the motor mode name.
func (m MotorMode) String() string {
	switch m {
	case MotorOff:
		return "OFF"
	case MotorForward:
		return "FORWARD"
	case MotorReverse:
		return "REVERSE"
	case MotorBrake:
		return "BRAKE"
	case MotorIgnore:
		return "IGNORE"
	default:
		return fmt.Sprintf("MODE_%02X", byte(m))
	}
}

// MotorPower is one motor's drive mode and power.
type MotorPower struct {
	Mode  MotorMode
	Power byte
}

// SetRawMotors drives the two motors directly, bypassing the
// stabilization system. Turn stabilization off first or the control
// system fights the command; turn it back on to restore normal driving.
func SetRawMotors(left, right MotorPower) (Command, error) {
	if left.Mode > MotorIgnore {
		return Command{}, fmt.Errorf("%w: left motor mode %#02x", ErrOutOfRange, byte(left.Mode))
	}
	if right.Mode > MotorIgnore {
		return Command{}, fmt.Errorf("%w: right motor mode %#02x", ErrOutOfRange, byte(right.Mode))
	}
	return Command{
		Device:  wire.DeviceSphero,
		ID:      SpheroCmdSetRawMotors,
		Payload: []byte{byte(left.Mode), left.Power, byte(right.Mode), right.Power},
	}, nil
}

// SetMotionTimeout sets how long the last drive command stays in effect
// before the robot coasts to a stop. It only applies while the motion
// timeout option is enabled in the permanent options.
func SetMotionTimeout(d time.Duration) (Command, error) {
	millis := int64(d / time.Millisecond)
	if millis < 0 || millis > 0xFFFF {
		return Command{}, fmt.Errorf("%w: motion timeout %s", ErrOutOfRange, d)
	}
	return Command{
		Device:  wire.DeviceSphero,
		ID:      SpheroCmdSetMotionTimeout,
		Payload: binary.BigEndian.AppendUint16(nil, uint16(millis)),
	}, nil
}

// SetPermanentOptions writes the non-volatile option flags.
func SetPermanentOptions(opts PermanentOptions) Command {
	return Command{
		Device:  wire.DeviceSphero,
		ID:      SpheroCmdSetPermanentOptions,
		Payload: binary.BigEndian.AppendUint64(nil, uint64(opts)),
	}
}

// GetPermanentOptions requests the non-volatile option flags; decode
// the response with ParsePermanentOptions.
func GetPermanentOptions() Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdGetPermanentOptions}
}

// SetStopOnDisconnect arms a one-shot stop the next time the connection
// drops. The flag clears itself after firing and on every power cycle.
func SetStopOnDisconnect(enabled bool) Command {
	return Command{
		Device:  wire.DeviceSphero,
		ID:      SpheroCmdSetTemporaryOptions,
		Payload: []byte{0x00, 0x00, 0x00, flag(enabled)},
	}
}

// GetTemporaryOptions requests the volatile option flags; decode the
// response with ParseStopOnDisconnect.
func GetTemporaryOptions() Command {
	return Command{Device: wire.DeviceSphero, ID: SpheroCmdGetTemporaryOptions}
}

// ParseStopOnDisconnect decodes a GET TEMPORARY OPTIONS response and
// reports whether the stop-on-disconnect flag is armed.
func ParseStopOnDisconnect(payload []byte) (bool, error) {
	if len(payload) != 4 {
		return false, fmt.Errorf("temporary options payload is %d bytes, want 4", len(payload))
	}
	return binary.BigEndian.Uint32(payload)&0x01 != 0, nil
}
