package sphero

import (
	"context"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/commands"
	"github.com/sphero-protocol/sphero-go/pkg/sensors"
)

// MaxSleepWakeup is the longest wake delay the sleep command can carry.
const MaxSleepWakeup = 65535 * time.Second

// Ping verifies the robot is awake and responding.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Execute(ctx, commands.Ping())
	return err
}

// GetVersioning returns the firmware version record.
func (c *Client) GetVersioning(ctx context.Context) (commands.VersionInfo, error) {
	resp, err := c.Execute(ctx, commands.GetVersioning())
	if err != nil {
		return commands.VersionInfo{}, err
	}
	return commands.ParseVersionInfo(resp.Payload)
}

// SetDeviceName stores a new advertised name in the robot's flash.
// Names longer than 48 bytes are clipped.
func (c *Client) SetDeviceName(ctx context.Context, name string) error {
	_, err := c.Execute(ctx, commands.SetDeviceName(name))
	return err
}

// GetBluetoothInfo returns the advertised name, the Bluetooth address
// and the ID color broadcast by the robot.
func (c *Client) GetBluetoothInfo(ctx context.Context) (commands.BluetoothInfo, error) {
	resp, err := c.Execute(ctx, commands.GetBluetoothInfo())
	if err != nil {
		return commands.BluetoothInfo{}, err
	}
	return commands.ParseBluetoothInfo(resp.Payload)
}

// GetPowerState returns the battery state record. The firmware drops
// this query under load now and then, so it is sent on the retrying
// path.
func (c *Client) GetPowerState(ctx context.Context) (sensors.PowerState, error) {
	resp, err := c.executeStable(ctx, commands.GetPowerState())
	if err != nil {
		return sensors.PowerState{}, err
	}
	return sensors.ParsePowerState(resp.Payload)
}

// SetPowerNotification enables or disables asynchronous battery state
// notifications. Subscribe with OnPowerState to receive them.
func (c *Client) SetPowerNotification(ctx context.Context, enabled bool) error {
	_, err := c.Execute(ctx, commands.SetPowerNotification(enabled))
	return err
}

// Sleep puts the robot into deep sleep. A non-zero wakeAfter makes it
// rewake on its own; zero means it sleeps until double-shaken. The
// robot drops the link once it acknowledges, so expect a disconnect.
func (c *Client) Sleep(ctx context.Context, wakeAfter time.Duration) error {
	if wakeAfter < 0 || wakeAfter > MaxSleepWakeup {
		return commands.ErrOutOfRange
	}
	_, err := c.Execute(ctx, commands.Sleep(uint16(wakeAfter/time.Second)))
	return err
}

// GetVoltageTripPoints returns the low and critical battery thresholds
// in hundredths of a volt.
func (c *Client) GetVoltageTripPoints(ctx context.Context) (low, critical uint16, err error) {
	resp, err := c.Execute(ctx, commands.GetVoltageTripPoints())
	if err != nil {
		return 0, 0, err
	}
	return commands.ParseVoltageTripPoints(resp.Payload)
}

// SetVoltageTripPoints reconfigures the battery thresholds. Both values
// are in hundredths of a volt and bounded by the firmware's limits.
func (c *Client) SetVoltageTripPoints(ctx context.Context, low, critical uint16) error {
	cmd, err := commands.SetVoltageTripPoints(low, critical)
	if err != nil {
		return err
	}
	_, err = c.Execute(ctx, cmd)
	return err
}

// SetInactivityTimeout reconfigures how long the robot stays awake
// without commands. The firmware enforces a one minute floor.
func (c *Client) SetInactivityTimeout(ctx context.Context, d time.Duration) error {
	cmd, err := commands.SetInactivityTimeout(d)
	if err != nil {
		return err
	}
	_, err = c.Execute(ctx, cmd)
	return err
}

// RunL2Diagnostics returns the raw receiver statistics record the
// firmware keeps since the last power cycle.
func (c *Client) RunL2Diagnostics(ctx context.Context) ([]byte, error) {
	resp, err := c.Execute(ctx, commands.RunL2Diagnostics())
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// PollPacketTimes measures the clock offset and network delay between
// this client and the robot, in the style of a one-shot NTP exchange.
// Sent on the retrying path.
func (c *Client) PollPacketTimes(ctx context.Context) (commands.PacketTimes, error) {
	tx := uint32(time.Now().UnixMilli())
	resp, err := c.executeStable(ctx, commands.PollPacketTimes(tx))
	if err != nil {
		return commands.PacketTimes{}, err
	}
	rx := uint32(time.Now().UnixMilli())
	return commands.ParsePacketTimes(resp.Payload, rx)
}

// SetHeading rotates the robot's zero heading to the given absolute
// heading in degrees, 0 to 359.
func (c *Client) SetHeading(ctx context.Context, degrees uint16) error {
	cmd, err := commands.SetHeading(degrees)
	if err != nil {
		return err
	}
	_, err = c.Execute(ctx, cmd)
	return err
}

// SetStabilization turns the IMU control loop on or off. With it off
// the motors obey SetRawMotors directly.
func (c *Client) SetStabilization(ctx context.Context, enabled bool) error {
	_, err := c.Execute(ctx, commands.SetStabilization(enabled))
	return err
}

// SetRotationRate caps how fast the robot turns when a roll command
// changes its heading, in degrees per second.
func (c *Client) SetRotationRate(ctx context.Context, dps float64) error {
	cmd, err := commands.SetRotationRate(dps)
	if err != nil {
		return err
	}
	_, err = c.Execute(ctx, cmd)
	return err
}

// GetChassisID returns the chassis serial number.
func (c *Client) GetChassisID(ctx context.Context) (uint16, error) {
	resp, err := c.Execute(ctx, commands.GetChassisID())
	if err != nil {
		return 0, err
	}
	return commands.ParseChassisID(resp.Payload)
}

// SetRGB changes the body LED color. With persist set the color
// survives power cycles as the robot's identity color.
func (c *Client) SetRGB(ctx context.Context, color commands.RGB, persist bool) error {
	_, err := c.Execute(ctx, commands.SetRGBLED(color, persist))
	return err
}

// GetRGB returns the persisted body LED color.
func (c *Client) GetRGB(ctx context.Context) (commands.RGB, error) {
	resp, err := c.Execute(ctx, commands.GetRGBLED())
	if err != nil {
		return commands.RGB{}, err
	}
	return commands.ParseRGBLED(resp.Payload)
}

// SetBackLED sets the brightness of the blue aiming LED on the back of
// the robot. It is not addressable by color.
func (c *Client) SetBackLED(ctx context.Context, brightness byte) error {
	_, err := c.Execute(ctx, commands.SetBackLED(brightness))
	return err
}

// Roll drives the robot at the given speed toward an absolute heading
// in degrees, 0 to 359. Speed zero rotates in place to the heading.
func (c *Client) Roll(ctx context.Context, speed byte, heading uint16) error {
	cmd, err := commands.Roll(speed, heading, false)
	if err != nil {
		return err
	}
	_, err = c.Execute(ctx, cmd)
	return err
}

// Stop halts the drive motors.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.Execute(ctx, commands.Stop())
	return err
}

// Boost engages or releases the temporary speed boost.
func (c *Client) Boost(ctx context.Context, enabled bool) error {
	_, err := c.Execute(ctx, commands.Boost(enabled))
	return err
}

// SetRawMotors drives the two motors independently, bypassing the
// stabilization loop. Pair it with SetStabilization(false); the robot
// restores stabilization on its own after a reboot.
func (c *Client) SetRawMotors(ctx context.Context, left, right commands.MotorPower) error {
	cmd, err := commands.SetRawMotors(left, right)
	if err != nil {
		return err
	}
	_, err = c.Execute(ctx, cmd)
	return err
}

// SetMotionTimeout bounds how long the last roll command keeps driving
// the motors without a follow-up. Requires the motion timeout option
// flag to be set.
func (c *Client) SetMotionTimeout(ctx context.Context, d time.Duration) error {
	cmd, err := commands.SetMotionTimeout(d)
	if err != nil {
		return err
	}
	_, err = c.Execute(ctx, cmd)
	return err
}

// SetPermanentOptions writes the option flags that survive power
// cycles.
func (c *Client) SetPermanentOptions(ctx context.Context, opts commands.PermanentOptions) error {
	_, err := c.Execute(ctx, commands.SetPermanentOptions(opts))
	return err
}

// GetPermanentOptions returns the option flags that survive power
// cycles.
func (c *Client) GetPermanentOptions(ctx context.Context) (commands.PermanentOptions, error) {
	resp, err := c.Execute(ctx, commands.GetPermanentOptions())
	if err != nil {
		return 0, err
	}
	return commands.ParsePermanentOptions(resp.Payload)
}

// SetStopOnDisconnect arms or disarms the robot-side safety that halts
// the motors when the link drops. The flag resets when the robot
// sleeps. Connect arms it automatically unless DisableAutoStop is set.
func (c *Client) SetStopOnDisconnect(ctx context.Context, enabled bool) error {
	_, err := c.Execute(ctx, commands.SetStopOnDisconnect(enabled))
	return err
}

// GetStopOnDisconnect reports whether the robot-side stop safety is
// currently armed.
func (c *Client) GetStopOnDisconnect(ctx context.Context) (bool, error) {
	resp, err := c.Execute(ctx, commands.GetTemporaryOptions())
	if err != nil {
		return false, err
	}
	return commands.ParseStopOnDisconnect(resp.Payload)
}
