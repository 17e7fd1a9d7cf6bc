package sensors

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// GroupSample holds one sensor group's values from a single frame, in
// wire field order.
type GroupSample struct {
	Name   string
	Fields []string
	Values []float64
}

// Field returns the named field's value.
func (g GroupSample) Field(name string) (float64, bool) {
	for i, f := range g.Fields {
		if f == name {
			return g.Values[i], true
		}
	}
	return 0, false
}

// ThreeAxis returns the values of a three-field group such as accel or
// gyro (x, y, z) and imu_angles (pitch, roll, yaw).
func (g GroupSample) ThreeAxis() (a, b, c float64) {
	return g.Values[0], g.Values[1], g.Values[2]
}

// TwoAxis returns the values of a two-field group such as odometer,
// velocity or the motor pairs.
func (g GroupSample) TwoAxis() (a, b float64) {
	return g.Values[0], g.Values[1]
}

// Scalar returns the value of a single-field group such as accel_one.
func (g GroupSample) Scalar() float64 {
	return g.Values[0]
}

// Quat returns the values of the quaternion group (x, y, z, w).
func (g GroupSample) Quat() (x, y, z, w float64) {
	return g.Values[0], g.Values[1], g.Values[2], g.Values[3]
}

// Frame is one decoded sensor frame: the enabled groups in wire order.
type Frame struct {
	Groups []GroupSample
}

// Group returns the named group, or nil when it was not streamed.
func (f *Frame) Group(name string) *GroupSample {
	for i := range f.Groups {
		if f.Groups[i].Name == name {
			return &f.Groups[i]
		}
	}
	return nil
}

// DecodeFrames parses the payload of a sensor data async packet into
// individual frames. The payload must be exactly FramesPerPacket frames
// of FrameSize bytes; anything else fails with ErrFrameSize and the
// payload is discarded without affecting other state. Samples are
// big-endian signed 16-bit counts, scaled when Convert is set.
//
// Samples appear per set mask bit, so a hand-built mask covering part of
// a group decodes to a GroupSample carrying just those fields.
func (c StreamConfig) DecodeFrames(payload []byte) ([]Frame, error) {
	frames := c.FramesPerPacket
	if frames < 1 {
		frames = 1
	}
	frameSize := c.FrameSize()
	if frameSize == 0 {
		return nil, ErrEmptyMask
	}
	if len(payload) != frameSize*frames {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(payload), frameSize*frames)
	}

	out := make([]Frame, 0, frames)
	offset := 0
	for fi := 0; fi < frames; fi++ {
		var frame Frame
		for _, g := range groupTable {
			sel := c.Mask1
			if g.Mask2 {
				sel = c.Mask2
			}
			enabled := sel & g.Mask
			if enabled == 0 {
				continue
			}
			top := highBit(g.Mask)
			fields := make([]string, 0, len(g.Fields))
			values := make([]float64, 0, len(g.Fields))
			for i, name := range g.Fields {
				if enabled&(top>>uint(i)) == 0 {
					continue
				}
				raw := int16(binary.BigEndian.Uint16(payload[offset:]))
				offset += 2
				value := float64(raw)
				if c.Convert {
					value *= g.Scale
				}
				fields = append(fields, name)
				values = append(values, value)
			}
			frame.Groups = append(frame.Groups, GroupSample{
				Name:   g.Name,
				Fields: fields,
				Values: values,
			})
		}
		out = append(out, frame)
	}
	return out, nil
}

// highBit returns the most significant set bit of a group mask. Group
// mask bits are contiguous with fields ordered from the top bit down.
func highBit(mask uint32) uint32 {
	return 1 << (31 - uint(bits.LeadingZeros32(mask)))
}
