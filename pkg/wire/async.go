package wire

import "fmt"

// AsyncID is the event code carried in HDR2 of an unsolicited
// notification packet.
type AsyncID byte

const (
	// AsyncPowerNotification reports a battery state change.
	// Payload: one byte, see the power state table.
	AsyncPowerNotification AsyncID = 0x01

	// AsyncLevel1Diagnostics carries the ASCII report produced by the
	// level 1 diagnostics command.
	AsyncLevel1Diagnostics AsyncID = 0x02

	// AsyncSensorData carries one or more sensor stream frames, laid
	// out per the negotiated channel masks.
	AsyncSensorData AsyncID = 0x03

	// AsyncCollisionDetected reports an impact, when collision
	// detection has been configured.
	AsyncCollisionDetected AsyncID = 0x07

	// AsyncSelfLevelResult reports completion of a self-level run.
	AsyncSelfLevelResult AsyncID = 0x0B

	// AsyncGyroLimitExceeded reports the gyro axis limit was hit.
	AsyncGyroLimitExceeded AsyncID = 0x0C
)

// String returns the async event code name.
func (a AsyncID) String() string {
	switch a {
	case AsyncPowerNotification:
		return "POWER_NOTIFICATION"
	case AsyncLevel1Diagnostics:
		return "LEVEL1_DIAGNOSTICS"
	case AsyncSensorData:
		return "SENSOR_DATA"
	case AsyncCollisionDetected:
		return "COLLISION_DETECTED"
	case AsyncSelfLevelResult:
		return "SELF_LEVEL_RESULT"
	case AsyncGyroLimitExceeded:
		return "GYRO_LIMIT_EXCEEDED"
	default:
		return fmt.Sprintf("ASYNC_%02X", byte(a))
	}
}
