package sensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// SampleRate is the robot's internal sensor sampling rate in Hz. Stream
// frequencies are expressed as integer divisors of it.
const SampleRate = 400

// Mask1 group selectors. Raw groups bypass the robot's filtering.
const (
	AccelerometerRawMask uint32 = 0xE0000000
	GyroscopeRawMask     uint32 = 0x1C000000
	MotorEMFRawMask      uint32 = 0x00600000
	MotorPWMRawMask      uint32 = 0x00180000
	IMUAnglesMask        uint32 = 0x00070000
	AccelerometerMask    uint32 = 0x0000E000
	GyroscopeMask        uint32 = 0x00001C00
	MotorEMFMask         uint32 = 0x00000060
)

// Mask2 group selectors.
const (
	QuaternionMask uint32 = 0xF0000000
	OdometerMask   uint32 = 0x0C000000
	AccelOneMask   uint32 = 0x02000000
	VelocityMask   uint32 = 0x01800000
)

// Conversion factors from raw counts to standard units.
const (
	accelerometerRawScale = 4e-3                   // 4 mG per count
	gyroscopeRawScale     = 0.068 * math.Pi / 180  // 0.068 deg/s per count
	motorEMFScale         = 22.5e-2                // 22.5 cm/s per count
	motorPWMScale         = 1                      // raw duty cycle
	imuAngleScale         = math.Pi / 180          // degrees per count
	accelerometerScale    = 1.0 / 4096.0           // 1/4096 G per count
	gyroscopeScale        = 0.1 * math.Pi / 180    // 0.1 deg/s per count
	quaternionScale       = 1e-4                   // 1/10000 Q per count
	odometerScale         = 1e-2                   // cm per count
	accelOneScale         = 1e-3                   // mG per count
	velocityScale         = 1e-3                   // mm/s per count
)

// Stream configuration errors.
var (
	ErrFrameSize        = errors.New("frame length does not match stream mask")
	ErrInvalidFrequency = errors.New("stream frequency out of range")
	ErrEmptyMask        = errors.New("no sensor groups enabled")
)

// Group describes one streamable sensor group: its two mask bits side,
// the field names in wire order, and the scale applied when converting
// to standard units.
type Group struct {
	Name   string
	Fields []string
	Mask   uint32
	Mask2  bool
	Scale  float64
}

// groupTable lists every group in the order its samples appear within a
// frame: mask1 groups first, then mask2 groups, each in fixed table
// order regardless of which bits the caller set first.
var groupTable = []Group{
	{Name: "accel_raw", Fields: []string{"x", "y", "z"}, Mask: AccelerometerRawMask, Scale: accelerometerRawScale},
	{Name: "gyro_raw", Fields: []string{"x", "y", "z"}, Mask: GyroscopeRawMask, Scale: gyroscopeRawScale},
	{Name: "motor_emf_raw", Fields: []string{"right", "left"}, Mask: MotorEMFRawMask, Scale: motorEMFScale},
	{Name: "motor_pwm_raw", Fields: []string{"left", "right"}, Mask: MotorPWMRawMask, Scale: motorPWMScale},
	{Name: "imu_angles", Fields: []string{"pitch", "roll", "yaw"}, Mask: IMUAnglesMask, Scale: imuAngleScale},
	{Name: "accel", Fields: []string{"x", "y", "z"}, Mask: AccelerometerMask, Scale: accelerometerScale},
	{Name: "gyro", Fields: []string{"x", "y", "z"}, Mask: GyroscopeMask, Scale: gyroscopeScale},
	{Name: "motor_emf", Fields: []string{"right", "left"}, Mask: MotorEMFMask, Scale: motorEMFScale},
	{Name: "quaternion", Fields: []string{"x", "y", "z", "w"}, Mask: QuaternionMask, Mask2: true, Scale: quaternionScale},
	{Name: "odometer", Fields: []string{"x", "y"}, Mask: OdometerMask, Mask2: true, Scale: odometerScale},
	{Name: "accel_one", Fields: []string{"value"}, Mask: AccelOneMask, Mask2: true, Scale: accelOneScale},
	{Name: "velocity", Fields: []string{"x", "y"}, Mask: VelocityMask, Mask2: true, Scale: velocityScale},
}

// Groups returns the full group table in frame order.
func Groups() []Group {
	out := make([]Group, len(groupTable))
	copy(out, groupTable)
	return out
}

// StreamConfig selects which sensor groups the robot streams and how the
// stream is paced. The zero value streams nothing; set mask bits with
// the *Mask constants or the Enable helper.
type StreamConfig struct {
	// Mask1 and Mask2 select sensor groups.
	Mask1 uint32
	Mask2 uint32

	// FramesPerPacket is how many complete frames the robot batches
	// into one async packet.
	FramesPerPacket int

	// PacketCount limits how many packets the robot sends; zero streams
	// until reconfigured.
	PacketCount byte

	// Convert scales decoded samples to standard units (G, rad/s, m,
	// m/s, Q). When false samples stay in raw counts.
	Convert bool
}

// DefaultStreamConfig returns a config that batches one frame per packet,
// streams unlimited packets and converts to standard units. No groups are
// enabled yet.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{FramesPerPacket: 1, Convert: true}
}

// Enable turns on all groups whose masks are given, routing each to the
// correct mask word.
func (c *StreamConfig) Enable(groups ...Group) {
	for _, g := range groups {
		if g.Mask2 {
			c.Mask2 |= g.Mask
		} else {
			c.Mask1 |= g.Mask
		}
	}
}

// Channels returns the enabled groups in the order their samples appear
// within a frame. A group counts as enabled if any of its bits is set.
func (c StreamConfig) Channels() []Group {
	var out []Group
	for _, g := range groupTable {
		mask := c.Mask1
		if g.Mask2 {
			mask = c.Mask2
		}
		if mask&g.Mask != 0 {
			out = append(out, g)
		}
	}
	return out
}

// SampleCount returns the number of 16-bit samples per frame: one per
// set mask bit.
func (c StreamConfig) SampleCount() int {
	return bits.OnesCount32(c.Mask1) + bits.OnesCount32(c.Mask2)
}

// FrameSize returns the size of one frame in bytes.
func (c StreamConfig) FrameSize() int {
	return 2 * c.SampleCount()
}

// EncodeRequest builds the SET DATA STREAMING payload for the given
// stream frequency in Hz: divisor of the 400 Hz sample rate (uint16),
// frames per packet (uint16), mask1 (uint32), packet count (byte),
// mask2 (uint32), all big-endian.
func (c StreamConfig) EncodeRequest(frequencyHz int) ([]byte, error) {
	if frequencyHz < 1 || frequencyHz > SampleRate {
		return nil, fmt.Errorf("%w: %d Hz", ErrInvalidFrequency, frequencyHz)
	}
	if c.SampleCount() == 0 {
		return nil, ErrEmptyMask
	}
	frames := c.FramesPerPacket
	if frames < 1 {
		frames = 1
	}

	payload := make([]byte, 0, 13)
	payload = binary.BigEndian.AppendUint16(payload, uint16(SampleRate/frequencyHz))
	payload = binary.BigEndian.AppendUint16(payload, uint16(frames))
	payload = binary.BigEndian.AppendUint32(payload, c.Mask1)
	payload = append(payload, c.PacketCount)
	payload = binary.BigEndian.AppendUint32(payload, c.Mask2)
	return payload, nil
}

// EncodeStopRequest builds the SET DATA STREAMING payload that halts an
// active stream: both masks cleared.
func EncodeStopRequest() []byte {
	payload := make([]byte, 0, 13)
	payload = binary.BigEndian.AppendUint16(payload, uint16(SampleRate))
	payload = binary.BigEndian.AppendUint16(payload, 1)
	payload = binary.BigEndian.AppendUint32(payload, 0)
	payload = append(payload, 0)
	payload = binary.BigEndian.AppendUint32(payload, 0)
	return payload
}
