package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// mDNS parameters for sphero-bridge instances.
const (
	// ServiceTypeBridge is the mDNS service type a bridge registers.
	ServiceTypeBridge = "_sphero-bridge._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultBridgePort is where a bridge listens unless configured
	// otherwise.
	DefaultBridgePort = 4521

	// DefaultBrowseTimeout bounds a bridge scan when the caller's
	// context carries no deadline.
	DefaultBrowseTimeout = 5 * time.Second
)

// TXT record keys on bridge announcements.
const (
	txtKeyName   = "name"
	txtKeySerial = "serial"
)

// BridgeScanner browses mDNS for sphero-bridge instances.
type BridgeScanner struct {
	// Timeout bounds the browse. Zero selects DefaultBrowseTimeout.
	Timeout time.Duration

	// Interface restricts browsing to one network interface by name.
	// Empty browses all interfaces.
	Interface string
}

// Scan browses until the timeout elapses and returns every bridge seen,
// deduplicated by instance name.
func (s *BridgeScanner) Scan(ctx context.Context) ([]Robot, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts, err := clientOptions(s.Interface)
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	browseErr := make(chan error, 1)
	go func() {
		browseErr <- zeroconf.Browse(browseCtx, ServiceTypeBridge, Domain, entries, removed, opts...)
	}()

	seen := make(map[string]bool)
	var robots []Robot
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			if seen[entry.Instance] {
				continue
			}
			seen[entry.Instance] = true
			robots = append(robots, entryToRobot(entry))

		case <-removed:
			// A finite scan reports what was seen; disappearances
			// between now and the connect attempt are the dialer's
			// problem.

		case <-browseCtx.Done():
			err := <-browseErr
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return robots, err
			}
			// The parent context being cancelled is a caller abort,
			// not a completed scan.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return robots, ctxErr
			}
			return robots, nil
		}
	}
}

// entryToRobot converts one mDNS entry. The TXT records name the robot
// and the serial device behind the bridge; the address prefers an IPv4
// literal and falls back to the advertised hostname.
func entryToRobot(entry *zeroconf.ServiceEntry) Robot {
	name, serialPath := parseBridgeTXT(entry.Text)
	if name == "" {
		name = entry.Instance
	}

	host := strings.TrimSuffix(entry.HostName, ".")
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	}

	return Robot{
		Name:    name,
		Address: net.JoinHostPort(host, strconv.Itoa(entry.Port)),
		Kind:    KindBridge,
		Port:    entry.Port,
		Serial:  serialPath,
	}
}

func encodeBridgeTXT(robotName, serialPath string) []string {
	txt := []string{txtKeyName + "=" + robotName}
	if serialPath != "" {
		txt = append(txt, txtKeySerial+"="+serialPath)
	}
	return txt
}

func parseBridgeTXT(txt []string) (robotName, serialPath string) {
	for _, record := range txt {
		key, value, ok := strings.Cut(record, "=")
		if !ok {
			continue
		}
		switch key {
		case txtKeyName:
			robotName = value
		case txtKeySerial:
			serialPath = value
		}
	}
	return robotName, serialPath
}

func clientOptions(ifaceName string) ([]zeroconf.ClientOption, error) {
	if ifaceName == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", ifaceName, err)
	}
	return []zeroconf.ClientOption{zeroconf.SelectIfaces([]net.Interface{*iface})}, nil
}

// Announcement describes a bridge to register on mDNS.
type Announcement struct {
	// Instance is the mDNS instance name. Empty defaults to RobotName.
	Instance string

	// RobotName is the robot behind the bridge.
	RobotName string

	// SerialPath is the serial device the bridge forwards.
	SerialPath string

	// Port is the bridge's TCP listen port. Zero selects
	// DefaultBridgePort.
	Port int

	// Interface restricts the announcement to one network interface.
	Interface string

	// TTL overrides the record time-to-live.
	TTL time.Duration
}

// Announcer is a live mDNS registration.
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers a bridge on mDNS. Shut the returned Announcer
// down to withdraw the records.
func Announce(a Announcement) (*Announcer, error) {
	instance := a.Instance
	if instance == "" {
		instance = a.RobotName
	}
	if instance == "" {
		return nil, errors.New("announcement needs an instance or robot name")
	}

	port := a.Port
	if port == 0 {
		port = DefaultBridgePort
	}

	var ifaces []net.Interface
	if a.Interface != "" {
		iface, err := net.InterfaceByName(a.Interface)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", a.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	var opts []zeroconf.ServerOption
	if a.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instance,
		ServiceTypeBridge,
		Domain,
		port,
		encodeBridgeTXT(a.RobotName, a.SerialPath),
		ifaces,
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("registering bridge service: %w", err)
	}
	return &Announcer{server: server}, nil
}

// Shutdown withdraws the mDNS records.
func (a *Announcer) Shutdown() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
