package commands

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// PermanentOptions is the robot's non-volatile option bitfield. The
// flags survive power cycles; read them with GetPermanentOptions and
// write them back with SetPermanentOptions.
type PermanentOptions uint64

const (
	// OptNoSleepWhileCharging keeps the robot awake in the charger.
	OptNoSleepWhileCharging PermanentOptions = 1 << 0

	// OptVectorDrive enables vector drive: roll commands at speed zero
	// still rotate the robot to the commanded heading.
	OptVectorDrive PermanentOptions = 1 << 1

	// OptNoLevelingWhileCharging disables self-leveling when the robot
	// is placed in the charger.
	OptNoLevelingWhileCharging PermanentOptions = 1 << 2

	// OptTailLightAlwaysOn forces the back LED on whenever the robot is
	// awake.
	OptTailLightAlwaysOn PermanentOptions = 1 << 3

	// OptMotionTimeouts enables the motion timeout set with
	// SetMotionTimeout.
	OptMotionTimeouts PermanentOptions = 1 << 4

	// OptRetailDemoMode runs the retail demo when placed in the charger.
	OptRetailDemoMode PermanentOptions = 1 << 5

	// OptAwakeSensitivityLight wakes the robot on a light double tap.
	// Exclusive with OptAwakeSensitivityHeavy.
	OptAwakeSensitivityLight PermanentOptions = 1 << 6

	// OptAwakeSensitivityHeavy wakes the robot only on a heavy double
	// tap. Exclusive with OptAwakeSensitivityLight.
	OptAwakeSensitivityHeavy PermanentOptions = 1 << 7

	// OptGyroMaxAsyncMessage sends a gyro axis limit exceeded async
	// packet when the gyro saturates.
	OptGyroMaxAsyncMessage PermanentOptions = 1 << 8
)

var optionNames = []struct {
	opt  PermanentOptions
	name string
}{
	{OptNoSleepWhileCharging, "no-sleep-while-charging"},
	{OptVectorDrive, "vector-drive"},
	{OptNoLevelingWhileCharging, "no-leveling-while-charging"},
	{OptTailLightAlwaysOn, "tail-light-always-on"},
	{OptMotionTimeouts, "motion-timeouts"},
	{OptRetailDemoMode, "retail-demo-mode"},
	{OptAwakeSensitivityLight, "awake-sensitivity-light"},
	{OptAwakeSensitivityHeavy, "awake-sensitivity-heavy"},
	{OptGyroMaxAsyncMessage, "gyro-max-async-message"},
}

// Has reports whether every flag in o is set.
func (p PermanentOptions) Has(o PermanentOptions) bool {
	return p&o == o
}

// With returns a copy with the given flags set.
func (p PermanentOptions) With(o PermanentOptions) PermanentOptions {
	return p | o
}

// Without returns a copy with the given flags cleared.
func (p PermanentOptions) Without(o PermanentOptions) PermanentOptions {
	return p &^ o
}

// WithLightWakeSensitivity selects the light double-tap wake, clearing
// the heavy setting. The two sensitivities cannot both be set.
func (p PermanentOptions) WithLightWakeSensitivity() PermanentOptions {
	return p.Without(OptAwakeSensitivityHeavy).With(OptAwakeSensitivityLight)
}

// WithHeavyWakeSensitivity selects the heavy double-tap wake, clearing
// the light setting.
func (p PermanentOptions) WithHeavyWakeSensitivity() PermanentOptions {
	return p.Without(OptAwakeSensitivityLight).With(OptAwakeSensitivityHeavy)
}

// String lists the set flags by name.
func (p PermanentOptions) String() string {
	if p == 0 {
		return "none"
	}
	var names []string
	rest := p
	for _, e := range optionNames {
		if p.Has(e.opt) {
			names = append(names, e.name)
			rest = rest.Without(e.opt)
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("unknown(%#x)", uint64(rest)))
	}
	return strings.Join(names, "|")
}

// ParsePermanentOptions decodes a GET PERMANENT OPTIONS response
// payload.
func ParsePermanentOptions(payload []byte) (PermanentOptions, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("permanent options payload is %d bytes, want 8", len(payload))
	}
	return PermanentOptions(binary.BigEndian.Uint64(payload)), nil
}
