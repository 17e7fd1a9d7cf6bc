package sensors

import (
	"encoding/binary"
	"fmt"
)

// BatteryState is the robot's coarse battery condition, carried both in
// the GET POWER STATE response and in power notification async packets.
type BatteryState byte

const (
	BatteryCharging BatteryState = 0x01
	BatteryOK       BatteryState = 0x02
	BatteryLow      BatteryState = 0x03
	BatteryCritical BatteryState = 0x04
)

// String returns the battery state name.
func (s BatteryState) String() string {
	switch s {
	case BatteryCharging:
		return "CHARGING"
	case BatteryOK:
		return "OK"
	case BatteryLow:
		return "LOW"
	case BatteryCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("UNKNOWN_%02X", byte(s))
	}
}

// PowerState is the parsed GET POWER STATE response.
type PowerState struct {
	// RecordVersion is the response record format version (1 on every
	// known firmware).
	RecordVersion byte

	// BatteryState is the coarse battery condition.
	BatteryState BatteryState

	// BatteryVoltage is the battery voltage in hundredths of a volt.
	BatteryVoltage uint16

	// ChargeCount is the number of recharges in the robot's lifetime.
	ChargeCount uint16

	// SecondsAwake is the time since the last recharge, in seconds.
	SecondsAwake uint16
}

// Voltage returns the battery voltage in volts.
func (p PowerState) Voltage() float64 {
	return float64(p.BatteryVoltage) / 100
}

const powerStateSize = 8

// ParsePowerState decodes a GET POWER STATE response payload.
func ParsePowerState(payload []byte) (PowerState, error) {
	if len(payload) != powerStateSize {
		return PowerState{}, fmt.Errorf("power state payload is %d bytes, want %d", len(payload), powerStateSize)
	}
	return PowerState{
		RecordVersion:  payload[0],
		BatteryState:   BatteryState(payload[1]),
		BatteryVoltage: binary.BigEndian.Uint16(payload[2:4]),
		ChargeCount:    binary.BigEndian.Uint16(payload[4:6]),
		SecondsAwake:   binary.BigEndian.Uint16(payload[6:8]),
	}, nil
}

// ParsePowerNotification decodes the single-byte payload of a power
// notification async packet.
func ParsePowerNotification(payload []byte) (BatteryState, error) {
	if len(payload) != 1 {
		return 0, fmt.Errorf("power notification payload is %d bytes, want 1", len(payload))
	}
	return BatteryState(payload[0]), nil
}
