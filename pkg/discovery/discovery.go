package discovery

import (
	"context"
	"regexp"
)

// Kind says how a discovered robot is reached.
type Kind string

const (
	// KindSerial is a local serial device.
	KindSerial Kind = "serial"

	// KindBridge is a sphero-bridge instance on the network.
	KindBridge Kind = "bridge"
)

// Robot is one discovered robot.
type Robot struct {
	// Name is the robot's advertised name, or the device path when no
	// name is known.
	Name string

	// Address is what to pass to the matching dialer: a device path
	// for serial robots, host:port for bridged ones.
	Address string

	// Kind selects the dialer.
	Kind Kind

	// Port is the TCP port for bridged robots, zero otherwise.
	Port int

	// Serial is the serial device behind a bridge, when advertised.
	Serial string
}

// Scanner finds robots. Scans are finite and may come back empty.
type Scanner interface {
	Scan(ctx context.Context) ([]Robot, error)
}

type multiScanner []Scanner

// Merged combines scanners into one. Results are concatenated in
// scanner order; if a scanner fails its partial results are kept and
// the first error is returned alongside everything collected.
func Merged(scanners ...Scanner) Scanner {
	return multiScanner(scanners)
}

func (m multiScanner) Scan(ctx context.Context) ([]Robot, error) {
	var robots []Robot
	var firstErr error
	for _, s := range m {
		found, err := s.Scan(ctx)
		robots = append(robots, found...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return robots, firstErr
}

// FilterByName keeps the robots whose name matches the pattern.
func FilterByName(robots []Robot, pattern string) ([]Robot, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []Robot
	for _, r := range robots {
		if re.MatchString(r.Name) {
			out = append(out, r)
		}
	}
	return out, nil
}
