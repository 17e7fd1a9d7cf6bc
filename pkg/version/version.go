// Package version tracks the library release and parses robot firmware
// versions.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the library version reported by the command-line tools.
const Current = "0.2.0"

// Firmware is a parsed "major.minor" robot main-application version,
// as reported by GET VERSIONING.
type Firmware struct {
	Major uint8
	Minor uint8
}

// FromParts builds a Firmware from the raw version bytes of a
// GET VERSIONING response.
func FromParts(major, minor byte) Firmware {
	return Firmware{Major: major, Minor: minor}
}

// Parse parses a "major.minor" version string.
func Parse(s string) (Firmware, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Firmware{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || parts[0] == "" {
		return Firmware{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || parts[1] == "" {
		return Firmware{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return Firmware{Major: uint8(major), Minor: uint8(minor)}, nil
}

// String returns the version as "major.minor".
func (v Firmware) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible reports whether the other version has the same major
// version.
func (v Firmware) Compatible(other Firmware) bool {
	return v.Major == other.Major
}

// AtLeast reports whether v is the same as or newer than other.
func (v Firmware) AtLeast(other Firmware) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}
