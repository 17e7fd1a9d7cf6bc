package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/commands"
	protolog "github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/sensors"
	"github.com/sphero-protocol/sphero-go/pkg/sphero"
	"github.com/sphero-protocol/sphero-go/pkg/version"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// commandContext returns the deadline for one console-driven robot
// command. Background is deliberate: commands outlive a canceled
// console context just long enough to fail cleanly.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func (c *Console) cmdPing() {
	client := c.requireClient()
	if client == nil {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Ping failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Pong in %v\n", time.Since(start).Round(time.Millisecond))
}

func (c *Console) cmdVersion() {
	client := c.requireClient()
	if client == nil {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	info, err := client.GetVersioning(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Versioning failed: %v\n", err)
		return
	}

	fw := version.FromParts(info.MainAppMajor, info.MainAppMinor)
	fmt.Fprintf(c.rl.Stdout(), "Model:      %d\n", info.ModelNumber)
	fmt.Fprintf(c.rl.Stdout(), "Hardware:   %d\n", info.HardwareVersion)
	fmt.Fprintf(c.rl.Stdout(), "Firmware:   %s\n", fw)
	fmt.Fprintf(c.rl.Stdout(), "Bootloader: %d.%d\n", info.Bootloader>>4, info.Bootloader&0x0F)
	fmt.Fprintf(c.rl.Stdout(), "OrbBasic:   %d.%d\n", info.OrbBasic>>4, info.OrbBasic&0x0F)
	fmt.Fprintf(c.rl.Stdout(), "Macros:     %d.%d\n", info.MacroVersion>>4, info.MacroVersion&0x0F)
}

func (c *Console) cmdName(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: name <new-name>")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	newName := strings.Join(args, " ")
	if err := client.SetDeviceName(ctx, newName); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Rename failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Renamed to %q ('bt' to verify)\n", newName)
}

func (c *Console) cmdBluetoothInfo() {
	client := c.requireClient()
	if client == nil {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	info, err := client.GetBluetoothInfo(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Bluetooth info failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Name:      %s\n", info.Name)
	fmt.Fprintf(c.rl.Stdout(), "Address:   %s\n", info.Address)
	fmt.Fprintf(c.rl.Stdout(), "ID colors: %s\n", info.IDColors[:])
}

func (c *Console) cmdPower() {
	client := c.requireClient()
	if client == nil {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	state, err := client.GetPowerState(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Power state failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Battery: %s at %.2f V (%d charges, awake %ds)\n",
		state.BatteryState, state.Voltage(), state.ChargeCount, state.SecondsAwake)
}

func (c *Console) cmdPowerNotify(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	enabled, ok := parseOnOff(args)
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "Usage: powernotify on|off")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.SetPowerNotification(ctx, enabled); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Power notification failed: %v\n", err)
		return
	}
	if enabled {
		fmt.Fprintln(c.rl.Stdout(), "Power notifications on ('watch' to see them)")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Power notifications off")
	}
}

func (c *Console) cmdSleep(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}

	var wake time.Duration
	if len(args) > 0 {
		seconds, err := strconv.Atoi(args[0])
		if err != nil || seconds < 0 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: sleep [seconds]")
			return
		}
		wake = time.Duration(seconds) * time.Second
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.Sleep(ctx, wake); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Sleep failed: %v\n", err)
		return
	}
	if wake > 0 {
		fmt.Fprintf(c.rl.Stdout(), "Sleeping, self-wake in %v. The link will drop.\n", wake)
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Sleeping. The link will drop.")
	}
}

func (c *Console) cmdHeading(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	degrees, err := parseUint(args, 0, commands.MaxHeading)
	if err != nil {
		fmt.Fprintln(c.rl.Stdout(), "Usage: heading <degrees 0-359>")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.SetHeading(ctx, uint16(degrees)); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Heading failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Heading re-zeroed")
}

func (c *Console) cmdStabilization(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	enabled, ok := parseOnOff(args)
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "Usage: stab on|off")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.SetStabilization(ctx, enabled); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Stabilization failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Stabilization %s\n", onOff(enabled))
}

func (c *Console) cmdRotationRate(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: rate <degrees-per-second>")
		return
	}
	dps, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintln(c.rl.Stdout(), "Usage: rate <degrees-per-second>")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.SetRotationRate(ctx, dps); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Rotation rate failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Rotation rate capped at %.0f deg/s\n", dps)
}

func (c *Console) cmdChassisID() {
	client := c.requireClient()
	if client == nil {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	id, err := client.GetChassisID(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Chassis ID failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Chassis ID: %d (0x%04X)\n", id, id)
}

func (c *Console) cmdColor(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: color <rrggbb> [persist]")
		return
	}
	color, err := parseRGB(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Bad color %q: %v\n", args[0], err)
		return
	}
	persist := len(args) > 1 && strings.EqualFold(args[1], "persist")

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.SetRGB(ctx, color, persist); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Color failed: %v\n", err)
		return
	}
	if persist {
		fmt.Fprintf(c.rl.Stdout(), "Color set to %s (persisted)\n", color)
	} else {
		fmt.Fprintf(c.rl.Stdout(), "Color set to %s\n", color)
	}
}

func (c *Console) cmdGetColor() {
	client := c.requireClient()
	if client == nil {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	color, err := client.GetRGB(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Get color failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Persisted color: %s\n", color)
}

func (c *Console) cmdBackLED(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	brightness, err := parseUint(args, 0, 255)
	if err != nil {
		fmt.Fprintln(c.rl.Stdout(), "Usage: backlight <0-255>")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.SetBackLED(ctx, byte(brightness)); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Back LED failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Back LED set")
}

func (c *Console) cmdRoll(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: roll <speed 0-255> <heading 0-359>")
		return
	}
	speed, err1 := strconv.ParseUint(args[0], 10, 8)
	heading, err2 := strconv.ParseUint(args[1], 10, 16)
	if err1 != nil || err2 != nil {
		fmt.Fprintln(c.rl.Stdout(), "Usage: roll <speed 0-255> <heading 0-359>")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.Roll(ctx, byte(speed), uint16(heading)); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Roll failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Rolling at %d toward %d°\n", speed, heading)
}

func (c *Console) cmdStop() {
	client := c.requireClient()
	if client == nil {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.Stop(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Stop failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Stopped")
}

func (c *Console) cmdBoost(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	enabled, ok := parseOnOff(args)
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "Usage: boost on|off")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.Boost(ctx, enabled); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Boost failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Boost %s\n", onOff(enabled))
}

func (c *Console) cmdRawMotors(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	if len(args) != 4 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: rawmotors <left-mode> <left-power> <right-mode> <right-power>")
		fmt.Fprintln(c.rl.Stdout(), "Modes: off, forward, reverse, brake, ignore")
		return
	}

	left, err := parseMotor(args[0], args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Left motor: %v\n", err)
		return
	}
	right, err := parseMotor(args[2], args[3])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Right motor: %v\n", err)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.SetRawMotors(ctx, left, right); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Raw motors failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Raw motors set (stabilization is now off; 'stab on' to restore)")
}

func (c *Console) cmdMotionTimeout(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	ms, err := parseUint(args, 0, 65535)
	if err != nil {
		fmt.Fprintln(c.rl.Stdout(), "Usage: motiontimeout <milliseconds 0-65535>")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := client.SetMotionTimeout(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Motion timeout failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Motion timeout set to %d ms (needs the motion timeouts option flag)\n", ms)
}

func (c *Console) cmdOptions(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	if len(args) == 0 {
		opts, err := client.GetPermanentOptions(ctx)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Options failed: %v\n", err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "Permanent options: 0x%X (%s)\n", uint64(opts), opts)
		return
	}

	raw, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		fmt.Fprintln(c.rl.Stdout(), "Usage: options [hex-flags], e.g. options 0x1A")
		return
	}
	opts := commands.PermanentOptions(raw)
	if err := client.SetPermanentOptions(ctx, opts); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Options failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Permanent options set to 0x%X (%s)\n", raw, opts)
}

func (c *Console) cmdStream(args []string) {
	client := c.requireClient()
	if client == nil {
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: stream start [hz] [group ...] | stream stop")
		return
	}

	switch strings.ToLower(args[0]) {
	case "start":
		c.streamStart(client, args[1:])
	case "stop":
		ctx, cancel := commandContext()
		defer cancel()
		if err := client.StopStreaming(ctx); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Stream stop failed: %v\n", err)
			return
		}
		c.streaming = false
		fmt.Fprintln(c.rl.Stdout(), "Streaming stopped")
	default:
		fmt.Fprintln(c.rl.Stdout(), "Usage: stream start [hz] [group ...] | stream stop")
	}
}

func (c *Console) streamStart(client *sphero.Client, args []string) {
	names, hz := c.opts.StreamPreset()
	if hz <= 0 {
		hz = 10
	}
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			hz = n
			args = args[1:]
		}
	}
	if len(args) > 0 {
		names = args
	}
	if len(names) == 0 {
		names = []string{"accel"}
	}

	cfg := sensors.DefaultStreamConfig()
	for _, name := range names {
		group, ok := groupByName(name)
		if !ok {
			fmt.Fprintf(c.rl.Stdout(), "Unknown group %q. Available: %s\n", name, groupNames())
			return
		}
		cfg.Enable(group)
	}

	ctx, cancel := commandContext()
	defer cancel()

	out := c.rl.Stdout()
	err := client.StreamSensors(ctx, cfg, hz, func(frame sensors.Frame) {
		fmt.Fprintln(out, formatFrame(frame))
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Stream start failed: %v\n", err)
		return
	}
	c.streaming = true
	fmt.Fprintf(c.rl.Stdout(), "Streaming %s at %d Hz ('stream stop' to end)\n", strings.Join(names, ", "), hz)
}

func (c *Console) cmdWatch() {
	client := c.requireClient()
	if client == nil {
		return
	}

	if c.watchPower != nil {
		client.Unsubscribe(c.watchPower)
		client.Unsubscribe(c.watchAsync)
		c.watchPower = nil
		c.watchAsync = nil
		fmt.Fprintln(c.rl.Stdout(), "Watch off")
		return
	}

	out := c.rl.Stdout()
	c.watchPower = client.OnPowerState(func(state sensors.BatteryState) {
		fmt.Fprintf(out, "[async] battery %s\n", state)
	})
	c.watchAsync = client.OnAnyAsync(func(pkt *wire.Packet) {
		fmt.Fprintf(out, "[async] %s, %d byte payload\n", describeAsync(pkt), len(pkt.Payload))
	})
	fmt.Fprintln(c.rl.Stdout(), "Watch on (printing async notifications)")
}

func (c *Console) cmdLog(args []string) {
	path := c.opts.LogPath()
	if path == "" {
		fmt.Fprintln(c.rl.Stdout(), "No protocol log configured (start with -log <file>)")
		return
	}

	tail := 5
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			tail = n
		}
	}

	reader, err := protolog.NewReader(path)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Open log: %v\n", err)
		return
	}
	defer reader.Close()

	var total int
	counts := make(map[protolog.Category]int)
	recent := make([]protolog.Event, 0, tail)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Read log: %v\n", err)
			return
		}
		total++
		counts[event.Category]++
		if len(recent) == tail {
			copy(recent, recent[1:])
			recent = recent[:tail-1]
		}
		recent = append(recent, event)
	}

	fmt.Fprintf(c.rl.Stdout(), "%s: %d events", path, total)
	for _, cat := range []protolog.Category{
		protolog.CategoryCommand, protolog.CategoryResponse,
		protolog.CategoryAsync, protolog.CategoryState, protolog.CategoryError,
	} {
		if counts[cat] > 0 {
			fmt.Fprintf(c.rl.Stdout(), ", %d %s", counts[cat], strings.ToLower(cat.String()))
		}
	}
	fmt.Fprintln(c.rl.Stdout())

	for _, event := range recent {
		fmt.Fprintf(c.rl.Stdout(), "  %s\n", summarizeEvent(event))
	}
}

func parseOnOff(args []string) (enabled, ok bool) {
	if len(args) != 1 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	default:
		return false, false
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

// parseUint parses a single numeric argument within [min, max].
func parseUint(args []string, min, max uint64) (uint64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one argument")
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%d out of range %d-%d", n, min, max)
	}
	return n, nil
}

// parseRGB reads an RRGGBB hex color, with or without a leading '#'.
func parseRGB(s string) (commands.RGB, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return commands.RGB{}, fmt.Errorf("want six hex digits")
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return commands.RGB{}, err
	}
	return commands.RGB{
		R: byte(n >> 16),
		G: byte(n >> 8),
		B: byte(n),
	}, nil
}

func parseMotor(mode, power string) (commands.MotorPower, error) {
	var m commands.MotorMode
	switch strings.ToLower(mode) {
	case "off":
		m = commands.MotorOff
	case "forward", "fwd":
		m = commands.MotorForward
	case "reverse", "rev":
		m = commands.MotorReverse
	case "brake":
		m = commands.MotorBrake
	case "ignore":
		m = commands.MotorIgnore
	default:
		return commands.MotorPower{}, fmt.Errorf("unknown mode %q", mode)
	}
	p, err := strconv.ParseUint(power, 10, 8)
	if err != nil {
		return commands.MotorPower{}, fmt.Errorf("bad power %q", power)
	}
	return commands.MotorPower{Mode: m, Power: byte(p)}, nil
}

func groupByName(name string) (sensors.Group, bool) {
	for _, g := range sensors.Groups() {
		if strings.EqualFold(g.Name, name) {
			return g, true
		}
	}
	return sensors.Group{}, false
}

func groupNames() string {
	var names []string
	for _, g := range sensors.Groups() {
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}

// formatFrame renders one sensor frame as a single line.
func formatFrame(frame sensors.Frame) string {
	var b strings.Builder
	for i, group := range frame.Groups {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(group.Name)
		b.WriteString("=(")
		for j, v := range group.Values {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%.3f", v)
		}
		b.WriteString(")")
	}
	return b.String()
}

// describeAsync names the notification kinds a human recognizes.
func describeAsync(pkt *wire.Packet) string {
	switch wire.AsyncID(pkt.Command) {
	case wire.AsyncPowerNotification:
		return "power notification"
	case wire.AsyncLevel1Diagnostics:
		return "level 1 diagnostics"
	case wire.AsyncSensorData:
		return "sensor data"
	case wire.AsyncCollisionDetected:
		return "collision detected"
	case wire.AsyncSelfLevelResult:
		return "self level result"
	case wire.AsyncGyroLimitExceeded:
		return "gyro limit exceeded"
	default:
		return fmt.Sprintf("async 0x%02X", pkt.Command)
	}
}

// summarizeEvent renders one protocol log event as a single line.
func summarizeEvent(event protolog.Event) string {
	ts := event.Timestamp.Format("15:04:05.000")
	switch {
	case event.Packet != nil:
		return fmt.Sprintf("%s %-3s %-8s dev 0x%02X code 0x%02X seq %d, %d byte payload",
			ts, event.Direction, event.Category, event.Packet.Device,
			event.Packet.Code, event.Packet.Sequence, event.Packet.PayloadSize)
	case event.StateChange != nil:
		return fmt.Sprintf("%s     %-8s %s -> %s", ts, event.Category,
			event.StateChange.OldState, event.StateChange.NewState)
	case event.Error != nil:
		return fmt.Sprintf("%s     %-8s %s (%s)", ts, event.Category,
			event.Error.Message, event.Error.Context)
	case event.Frame != nil:
		return fmt.Sprintf("%s %-3s %-8s %d bytes", ts, event.Direction,
			event.Category, event.Frame.Size)
	default:
		return fmt.Sprintf("%s %-3s %-8s", ts, event.Direction, event.Category)
	}
}
