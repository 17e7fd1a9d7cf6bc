// Command sphero-console is an interactive terminal for Sphero robots.
//
// It drives a single robot over a local serial link (Bluetooth RFCOMM)
// or through a sphero-bridge on the network, with:
//   - Serial and mDNS robot discovery
//   - A YAML address book for remembered robots
//   - The full core and sphero command set
//   - Sensor streaming and async notification display
//   - CBOR protocol event logging
//
// Usage:
//
//	sphero-console [flags]
//
// Flags:
//
//	-address string   Robot to connect to at startup (device path or host:port)
//	-name string      Display name for the startup robot
//	-timeout duration Per-command response timeout (default 1s)
//	-log string       Write protocol events to this CBOR log file
//	-verbose          Echo protocol events to stderr
//	-no-auto-stop     Do not arm stop-on-disconnect when connecting
//	-stream string    Sensor preset for 'stream start' (default "accel@10")
//	-book string      Address book path (default ~/.sphero-go/robots.yaml)
//	-reset            Clear the address book before starting
//
// Examples:
//
//	# Start the console and scan for robots
//	sphero-console
//
//	# Connect straight to a serial robot
//	sphero-console -address /dev/rfcomm0
//
//	# Connect to a bridged robot and keep a protocol log
//	sphero-console -address 192.168.1.50:4560 -name Garage -log session.cborlog
//
//	# Stream pitch/roll/yaw and accelerometer at 50 Hz by default
//	sphero-console -stream "imu_angles+accel@50"
//
// Interactive Commands:
//
//	scan [pattern]           - Scan serial ports and the network for robots
//	robots                   - List remembered robots
//	remember <#|addr> <name> - Save a robot to the address book
//	forget <name>            - Remove a robot from the address book
//	connect <#|name|addr>    - Connect to a robot
//	disconnect               - Drop the current connection
//	ping / version / bt / power / chassis - Robot info
//	name <new-name>          - Rename the robot
//	heading / roll / stop / boost / stab / rate - Motion
//	rawmotors / motiontimeout - Low-level motion
//	color / getcolor / backlight - Lights
//	powernotify / sleep / options - Power and safety
//	stream start|stop        - Sensor streaming
//	watch                    - Toggle async notification display
//	log [n]                  - Summarize the protocol event log
//	quit                     - Exit the console
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sphero-protocol/sphero-go/cmd/sphero-console/interactive"
	protolog "github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/persistence"
	"github.com/sphero-protocol/sphero-go/pkg/version"
)

// Config holds the console configuration.
// It implements interactive.Options.
type Config struct {
	AddressValue string
	NameValue    string
	Timeout      time.Duration
	LogFile      string
	Verbose      bool
	NoAutoStop   bool
	Stream       string
	BookPath     string
	Reset        bool

	logger       protolog.Logger
	streamGroups []string
	streamHz     int
}

// Address implements interactive.Options.
func (c *Config) Address() string { return c.AddressValue }

// RobotName implements interactive.Options.
func (c *Config) RobotName() string { return c.NameValue }

// ResponseTimeout implements interactive.Options.
func (c *Config) ResponseTimeout() time.Duration { return c.Timeout }

// AutoStop implements interactive.Options.
func (c *Config) AutoStop() bool { return !c.NoAutoStop }

// Logger implements interactive.Options.
func (c *Config) Logger() protolog.Logger { return c.logger }

// LogPath implements interactive.Options.
func (c *Config) LogPath() string { return c.LogFile }

// StreamPreset implements interactive.Options.
func (c *Config) StreamPreset() ([]string, int) { return c.streamGroups, c.streamHz }

var config Config

func init() {
	flag.StringVar(&config.AddressValue, "address", "", "Robot to connect to at startup (device path or host:port)")
	flag.StringVar(&config.NameValue, "name", "", "Display name for the startup robot")
	flag.DurationVar(&config.Timeout, "timeout", time.Second, "Per-command response timeout")
	flag.StringVar(&config.LogFile, "log", "", "Write protocol events to this CBOR log file")
	flag.BoolVar(&config.Verbose, "verbose", false, "Echo protocol events to stderr")
	flag.BoolVar(&config.NoAutoStop, "no-auto-stop", false, "Do not arm stop-on-disconnect when connecting")
	flag.StringVar(&config.Stream, "stream", "accel@10", "Sensor preset for 'stream start', groups joined by '+' with an optional '@hz'")
	flag.StringVar(&config.BookPath, "book", "", "Address book path")
	flag.BoolVar(&config.Reset, "reset", false, "Clear the address book before starting")
}

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	log.Printf("Sphero Console %s", version.Current)

	groups, hz, err := parseStreamPreset(config.Stream)
	if err != nil {
		log.Fatalf("Invalid -stream preset: %v", err)
	}
	config.streamGroups = groups
	config.streamHz = hz

	bookPath := config.BookPath
	if bookPath == "" {
		bookPath, err = persistence.DefaultPath()
		if err != nil {
			log.Fatalf("No address book location: %v", err)
		}
	}
	store := persistence.NewStore(bookPath)

	if config.Reset {
		log.Println("Clearing the address book...")
		if err := store.Clear(); err != nil {
			log.Printf("Warning: failed to clear the address book: %v", err)
		}
	}

	config.logger = protolog.NoopLogger{}
	var fileLogger *protolog.FileLogger
	if config.LogFile != "" {
		fileLogger, err = protolog.NewFileLogger(config.LogFile)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		config.logger = fileLogger
		log.Printf("Logging protocol events to %s", config.LogFile)
	}
	if config.Verbose {
		echo := protolog.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
		if fileLogger != nil {
			config.logger = protolog.NewMultiLogger(fileLogger, echo)
		} else {
			config.logger = echo
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ic, err := interactive.New(store, &config)
	if err != nil {
		log.Fatalf("Failed to create interactive console: %v", err)
	}
	// Redirect log output through readline to avoid interfering with input
	log.SetOutput(ic.Stdout())
	go ic.Run(ctx, cancel)

	// Wait for shutdown signal or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Context was cancelled by the quit command
	}

	log.Println("Shutting down...")
	cancel()

	if fileLogger != nil {
		if err := fileLogger.Close(); err != nil {
			log.Printf("Error closing protocol log: %v", err)
		}
		log.Printf("Captured %d protocol events to %s", fileLogger.Count(), fileLogger.Path())
	}

	log.Println("Goodbye!")
}

// parseStreamPreset splits "accel+gyro@20" into group names and a rate.
func parseStreamPreset(s string) ([]string, int, error) {
	groupPart, ratePart, found := strings.Cut(s, "@")
	hz := 10
	if found {
		n, err := strconv.Atoi(ratePart)
		if err != nil || n <= 0 {
			return nil, 0, fmt.Errorf("bad rate %q", ratePart)
		}
		hz = n
	}
	var names []string
	for _, name := range strings.Split(groupPart, "+") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, 0, fmt.Errorf("no sensor groups in %q", s)
	}
	return names, hz, nil
}
