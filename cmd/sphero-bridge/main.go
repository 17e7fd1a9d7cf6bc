// Command sphero-bridge exposes a local serial Sphero robot over TCP.
//
// A robot paired to this machine shows up as a serial device, which
// only local programs can use. The bridge listens on TCP, forwards
// bytes unmodified between one network client and the serial port, and
// announces itself as _sphero-bridge._tcp on mDNS so consoles elsewhere
// on the network can find it. One client holds the robot at a time.
//
// Usage:
//
//	sphero-bridge -serial <device> [flags]
//
// Flags:
//
//	-serial string    Serial device of the robot (required)
//	-listen string    TCP listen address (default ":4521")
//	-name string      Robot name for the mDNS announcement
//	-instance string  mDNS instance name (defaults to the robot name)
//	-interface string Restrict the announcement to one network interface
//	-log string       Write connect/disconnect events to this CBOR log file
//	-verbose          Echo events to stderr
//	-no-announce      Skip the mDNS announcement
//
// Examples:
//
//	# Share the robot on the default port
//	sphero-bridge -serial /dev/rfcomm0 -name Sphero-RGB
//
//	# Quiet bridge on a fixed port, no mDNS
//	sphero-bridge -serial /dev/rfcomm0 -listen :5000 -no-announce
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sphero-protocol/sphero-go/pkg/discovery"
	protolog "github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/version"
)

// Config holds the bridge configuration.
type Config struct {
	Serial     string
	Listen     string
	Name       string
	Instance   string
	Interface  string
	LogFile    string
	Verbose    bool
	NoAnnounce bool
}

var config Config

func init() {
	flag.StringVar(&config.Serial, "serial", "", "Serial device of the robot (required)")
	flag.StringVar(&config.Listen, "listen", ":4521", "TCP listen address")
	flag.StringVar(&config.Name, "name", "", "Robot name for the mDNS announcement")
	flag.StringVar(&config.Instance, "instance", "", "mDNS instance name (defaults to the robot name)")
	flag.StringVar(&config.Interface, "interface", "", "Restrict the announcement to one network interface")
	flag.StringVar(&config.LogFile, "log", "", "Write connect/disconnect events to this CBOR log file")
	flag.BoolVar(&config.Verbose, "verbose", false, "Echo events to stderr")
	flag.BoolVar(&config.NoAnnounce, "no-announce", false, "Skip the mDNS announcement")
}

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Printf("Sphero Bridge %s", version.Current)

	if config.Serial == "" {
		log.Fatal("No serial device (-serial is required)")
	}

	var logger protolog.Logger = protolog.NoopLogger{}
	var fileLogger *protolog.FileLogger
	if config.LogFile != "" {
		var err error
		fileLogger, err = protolog.NewFileLogger(config.LogFile)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		logger = fileLogger
		log.Printf("Logging events to %s", config.LogFile)
	}
	if config.Verbose {
		echo := protolog.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
		if fileLogger != nil {
			logger = protolog.NewMultiLogger(fileLogger, echo)
		} else {
			logger = echo
		}
	}

	bridge, err := NewBridge(BridgeConfig{
		SerialPath: config.Serial,
		ListenAddr: config.Listen,
		RobotName:  config.Name,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}
	log.Printf("Bridging %s on %s", config.Serial, bridge.Addr())

	if !config.NoAnnounce {
		port := listenPort(bridge.Addr())
		announcer, err := discovery.Announce(discovery.Announcement{
			Instance:   config.Instance,
			RobotName:  config.Name,
			SerialPath: config.Serial,
			Port:       port,
			Interface:  config.Interface,
		})
		if err != nil {
			log.Printf("Warning: mDNS announcement failed: %v", err)
		} else {
			log.Printf("Announced as %s on port %d", discovery.ServiceTypeBridge, port)
			defer announcer.Shutdown()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- bridge.Serve(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case err := <-serveErr:
		if err != nil {
			log.Printf("Serve error: %v", err)
		}
	}

	log.Println("Shutting down...")
	cancel()
	if err := bridge.Close(); err != nil {
		log.Printf("Error closing bridge: %v", err)
	}
	if fileLogger != nil {
		if err := fileLogger.Close(); err != nil {
			log.Printf("Error closing event log: %v", err)
		}
		log.Printf("Captured %d events to %s", fileLogger.Count(), fileLogger.Path())
	}
	log.Println("Goodbye!")
}

// listenPort extracts the TCP port the bridge actually bound.
func listenPort(addr net.Addr) int {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return discovery.DefaultBridgePort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return discovery.DefaultBridgePort
	}
	return port
}
