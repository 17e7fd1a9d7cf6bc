package discovery

import (
	"context"
	"path/filepath"
	"regexp"

	"go.bug.st/serial"
)

// serialPattern matches the device names Sphero links typically get:
// rfcomm bindings on Linux and Sphero-named ports elsewhere.
var serialPattern = regexp.MustCompile(`(?i)sphero|rfcomm`)

// SerialScanner finds local serial devices that look like robot links.
type SerialScanner struct {
	// Pattern overrides the default device-name filter.
	Pattern *regexp.Regexp

	// listPorts stubs port enumeration in tests.
	listPorts func() ([]string, error)
}

// Scan enumerates the system's serial ports and keeps those matching
// the pattern.
func (s *SerialScanner) Scan(ctx context.Context) ([]Robot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list := s.listPorts
	if list == nil {
		list = serial.GetPortsList
	}
	ports, err := list()
	if err != nil {
		return nil, err
	}

	pattern := s.Pattern
	if pattern == nil {
		pattern = serialPattern
	}

	var robots []Robot
	for _, port := range ports {
		if !pattern.MatchString(port) {
			continue
		}
		robots = append(robots, Robot{
			Name:    filepath.Base(port),
			Address: port,
			Kind:    KindSerial,
		})
	}
	return robots, nil
}
