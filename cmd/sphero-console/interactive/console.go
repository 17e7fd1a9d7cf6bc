// Package interactive provides the interactive command-line interface
// for the Sphero console.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/sphero-protocol/sphero-go/pkg/async"
	"github.com/sphero-protocol/sphero-go/pkg/discovery"
	protolog "github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/persistence"
	"github.com/sphero-protocol/sphero-go/pkg/sphero"
	"github.com/sphero-protocol/sphero-go/pkg/transport"
)

// Timeouts for console-driven operations. Commands get generous
// deadlines; a human is watching, not a supervisor.
const (
	scanTimeout    = 6 * time.Second
	connectTimeout = 30 * time.Second
	commandTimeout = 10 * time.Second
)

// Options provides configuration to the interactive console without
// depending on the main package's flag structure.
type Options interface {
	// Address is a robot to connect to at startup, empty for none.
	Address() string

	// RobotName is the display name for the startup robot.
	RobotName() string

	// ResponseTimeout is the per-command response deadline.
	ResponseTimeout() time.Duration

	// AutoStop reports whether connections arm stop-on-disconnect.
	AutoStop() bool

	// Logger receives protocol events for every connection.
	Logger() protolog.Logger

	// LogPath is the protocol event log file, empty when logging is
	// off.
	LogPath() string

	// StreamPreset is the default sensor selection for 'stream start'
	// without arguments.
	StreamPreset() (groups []string, hz int)
}

// Console handles interactive mode for sphero-console. All commands run
// on the readline loop goroutine; only notification callbacks print
// from elsewhere, through the readline-coordinated writer.
type Console struct {
	opts  Options
	store *persistence.Store
	rl    *readline.Instance

	client *sphero.Client

	// lastScan holds the most recent scan results so robots can be
	// addressed by index.
	lastScan []discovery.Robot

	// watch subscriptions, nil while not watching.
	watchPower *async.Subscription
	watchAsync *async.Subscription

	streaming bool
}

// New creates a new interactive console handler.
func New(store *persistence.Store, opts Options) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sphero> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		opts:  opts,
		store: store,
		rl:    rl,
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	if address := c.opts.Address(); address != "" {
		name := c.opts.RobotName()
		if name == "" {
			name = address
		}
		c.connectTo(name, address, guessKind(address))
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			c.shutdown()
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "scan":
			c.cmdScan(ctx, args)

		case "robots", "ls":
			c.cmdRobots()

		case "remember":
			c.cmdRemember(args)

		case "forget":
			c.cmdForget(args)

		case "connect":
			c.cmdConnect(args)

		case "disconnect":
			c.cmdDisconnect()

		case "ping":
			c.cmdPing()

		case "version":
			c.cmdVersion()

		case "name":
			c.cmdName(args)

		case "bt":
			c.cmdBluetoothInfo()

		case "power":
			c.cmdPower()

		case "powernotify":
			c.cmdPowerNotify(args)

		case "sleep":
			c.cmdSleep(args)

		case "heading":
			c.cmdHeading(args)

		case "stab":
			c.cmdStabilization(args)

		case "rate":
			c.cmdRotationRate(args)

		case "chassis":
			c.cmdChassisID()

		case "color":
			c.cmdColor(args)

		case "getcolor":
			c.cmdGetColor()

		case "backlight":
			c.cmdBackLED(args)

		case "roll":
			c.cmdRoll(args)

		case "stop":
			c.cmdStop()

		case "boost":
			c.cmdBoost(args)

		case "rawmotors":
			c.cmdRawMotors(args)

		case "motiontimeout":
			c.cmdMotionTimeout(args)

		case "options":
			c.cmdOptions(args)

		case "stream":
			c.cmdStream(args)

		case "watch":
			c.cmdWatch()

		case "log":
			c.cmdLog(args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			c.shutdown()
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Sphero Console Commands:
  Discovery & Connection:
    scan [pattern]           - Scan serial ports and the network for robots
    robots                   - List remembered robots
    remember <#|addr> <name> - Save a robot to the address book
    forget <name>            - Remove a robot from the address book
    connect <#|name|addr>    - Connect to a robot
    disconnect               - Drop the current connection

  Robot Info:
    ping                     - Check the robot is awake
    version                  - Show firmware versions
    name <new-name>          - Rename the robot
    bt                       - Show Bluetooth name, address and ID colors
    power                    - Show battery state
    chassis                  - Show chassis ID

  Motion:
    heading <deg>            - Re-zero the heading (0-359)
    roll <speed> <deg>       - Drive at speed (0-255) toward a heading
    stop                     - Halt the motors
    boost on|off             - Engage or release the speed boost
    stab on|off              - Toggle the stabilization loop
    rate <deg-per-sec>       - Cap the turn rate
    rawmotors <lm> <lp> <rm> <rp> - Drive motors directly (mode power)
    motiontimeout <ms>       - Auto-stop delay for unattended rolls

  Lights:
    color <rrggbb> [persist] - Set the body LED color
    getcolor                 - Show the persisted LED color
    backlight <0-255>        - Set the aiming LED brightness

  Power & Safety:
    powernotify on|off       - Battery notifications (see 'watch')
    sleep [seconds]          - Deep sleep, optional self-wake delay
    options [hex]            - Show or set permanent option flags

  Telemetry:
    stream start [hz] [group ...] - Stream sensors (default 10 Hz accel)
    stream stop              - Stop streaming
    watch                    - Toggle printing of async notifications
    log [n]                  - Summarize the protocol event log

  General:
    help                     - Show this help
    quit                     - Exit the console`)
}

// shutdown releases the active connection, if any.
func (c *Console) shutdown() {
	if c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Close error: %v\n", err)
	}
	c.client = nil
}

// requireClient returns the active client, or nil after telling the
// user to connect first.
func (c *Console) requireClient() *sphero.Client {
	if c.client == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected (use 'connect')")
		return nil
	}
	return c.client
}

func (c *Console) cmdScan(ctx context.Context, args []string) {
	fmt.Fprintln(c.rl.Stdout(), "Scanning serial ports and the local network...")

	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	scanner := discovery.Merged(
		&discovery.SerialScanner{},
		&discovery.BridgeScanner{},
	)
	robots, err := scanner.Scan(scanCtx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Scan error: %v\n", err)
		if len(robots) == 0 {
			return
		}
	}

	if len(args) > 0 {
		robots, err = discovery.FilterByName(robots, args[0])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Bad pattern: %v\n", err)
			return
		}
	}

	c.lastScan = robots
	if len(robots) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No robots found")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Found %d robot(s):\n", len(robots))
	for idx, r := range robots {
		fmt.Fprintf(c.rl.Stdout(), "  %d. %-20s %-8s %s\n", idx+1, r.Name, r.Kind, r.Address)
	}
}

func (c *Console) cmdRobots() {
	book, err := c.store.Load()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Address book error: %v\n", err)
		return
	}
	if len(book.Robots) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Address book is empty (use 'scan' then 'remember')")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nRemembered robots (%d):\n", len(book.Robots))
	for _, r := range book.Robots {
		last := "never"
		if !r.LastConnected.IsZero() {
			last = r.LastConnected.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(c.rl.Stdout(), "  %-20s %-8s %-24s last connected %s\n", r.Name, r.Kind, r.Address, last)
	}
}

func (c *Console) cmdRemember(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: remember <scan-#|address> <name>")
		return
	}

	robot := persistence.Robot{Name: args[1]}
	if idx, err := strconv.Atoi(args[0]); err == nil {
		if idx < 1 || idx > len(c.lastScan) {
			fmt.Fprintf(c.rl.Stdout(), "No scan result #%d (run 'scan' first)\n", idx)
			return
		}
		found := c.lastScan[idx-1]
		robot.Address = found.Address
		robot.Kind = generationFromName(found.Name)
	} else {
		robot.Address = args[0]
	}

	book, err := c.store.Load()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Address book error: %v\n", err)
		return
	}
	book.Remember(robot)
	if err := c.store.Save(book); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Save error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Remembered %s (%s)\n", robot.Name, robot.Address)
}

func (c *Console) cmdForget(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: forget <name>")
		return
	}

	book, err := c.store.Load()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Address book error: %v\n", err)
		return
	}
	if !book.Forget(args[0]) {
		fmt.Fprintf(c.rl.Stdout(), "No robot named %q\n", args[0])
		return
	}
	if err := c.store.Save(book); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Save error: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Forgotten")
}

func (c *Console) cmdConnect(args []string) {
	if c.client != nil {
		fmt.Fprintln(c.rl.Stdout(), "Already connected ('disconnect' first)")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: connect <scan-#|name|address>")
		return
	}

	name, address, kind := c.resolveTarget(args[0])
	if address == "" {
		fmt.Fprintf(c.rl.Stdout(), "Unknown robot: %s\n", args[0])
		return
	}
	c.connectTo(name, address, kind)
}

func (c *Console) connectTo(name, address string, kind discovery.Kind) {
	var dialer transport.Dialer
	if kind == discovery.KindBridge {
		dialer = &transport.TCPDialer{}
	} else {
		dialer = &transport.SerialDialer{}
	}

	client := sphero.New(sphero.Config{
		Address:         address,
		Name:            name,
		ResponseTimeout: c.opts.ResponseTimeout(),
		DisableAutoStop: !c.opts.AutoStop(),
		Dialer:          dialer,
		Logger:          c.opts.Logger(),
	})
	client.OnStateChange(func(oldState, newState transport.ConnectionState) {
		if newState == transport.StateDisconnected && oldState == transport.StateDisconnecting {
			fmt.Fprintln(c.rl.Stdout(), "[link] disconnected")
		}
	})

	fmt.Fprintf(c.rl.Stdout(), "Connecting to %s (%s)...\n", name, address)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		client.Close()
		return
	}

	c.client = client
	c.touchBook(name)
	fmt.Fprintf(c.rl.Stdout(), "Connected to %s\n", name)
	c.applyRememberedColor(ctx, name)
}

// applyRememberedColor restores the robot's preferred LED color from
// the address book, when one is recorded.
func (c *Console) applyRememberedColor(ctx context.Context, name string) {
	book, err := c.store.Load()
	if err != nil {
		return
	}
	entry, ok := book.Find(name)
	if !ok || entry.Color == "" {
		return
	}
	color, err := parseRGB(entry.Color)
	if err != nil {
		return
	}
	if err := c.client.SetRGB(ctx, color, false); err == nil {
		fmt.Fprintf(c.rl.Stdout(), "Restored color %s\n", color)
	}
}

func (c *Console) cmdDisconnect() {
	if c.client == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}
	c.shutdown()
	c.streaming = false
	c.watchPower = nil
	c.watchAsync = nil
}

// resolveTarget turns a scan index, address book name or raw address
// into a dialable target.
func (c *Console) resolveTarget(arg string) (name, address string, kind discovery.Kind) {
	if idx, err := strconv.Atoi(arg); err == nil {
		if idx < 1 || idx > len(c.lastScan) {
			return "", "", ""
		}
		found := c.lastScan[idx-1]
		return found.Name, found.Address, found.Kind
	}

	if book, err := c.store.Load(); err == nil {
		if r, ok := book.Find(arg); ok {
			return r.Name, r.Address, guessKind(r.Address)
		}
	}

	return arg, arg, guessKind(arg)
}

// guessKind decides how to dial a raw address: serial device paths
// start with a slash, bridge targets look like host:port.
func guessKind(address string) discovery.Kind {
	if !strings.HasPrefix(address, "/") && strings.Contains(address, ":") {
		return discovery.KindBridge
	}
	return discovery.KindSerial
}

// generationFromName maps a robot's Bluetooth name prefix to its
// hardware generation for the address book.
func generationFromName(name string) string {
	switch {
	case strings.HasPrefix(name, "Sphero-"):
		return "sphero"
	case strings.HasPrefix(name, "SPRK-"):
		return "sprk"
	case strings.HasPrefix(name, "2B-"):
		return "ollie"
	case strings.HasPrefix(name, "BB-"):
		return "bb8"
	default:
		return ""
	}
}

// touchBook stamps the last-connected time for known robots; unknown
// ones are not added implicitly.
func (c *Console) touchBook(name string) {
	book, err := c.store.Load()
	if err != nil {
		return
	}
	if !book.Touch(name, time.Now()) {
		return
	}
	_ = c.store.Save(book)
}
