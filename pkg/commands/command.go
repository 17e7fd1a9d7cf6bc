package commands

import (
	"errors"

	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// Command is one encoded robot command: the firmware subsystem it is
// addressed to, its command ID and the payload bytes.
type Command struct {
	Device  wire.DeviceID
	ID      byte
	Payload []byte
}

// ErrOutOfRange reports a builder argument outside its legal range.
var ErrOutOfRange = errors.New("argument out of range")

// Core command IDs.
const (
	CoreCmdPing                 byte = 0x01
	CoreCmdGetVersioning        byte = 0x02
	CoreCmdSetDeviceName        byte = 0x10
	CoreCmdGetBluetoothInfo     byte = 0x11
	CoreCmdGetPowerState        byte = 0x20
	CoreCmdSetPowerNotification byte = 0x21
	CoreCmdSleep                byte = 0x22
	CoreCmdGetVoltageTrip       byte = 0x23
	CoreCmdSetVoltageTrip       byte = 0x24
	CoreCmdSetInactivityTimeout byte = 0x25
	CoreCmdRunL1Diagnostics     byte = 0x40
	CoreCmdRunL2Diagnostics     byte = 0x41
	CoreCmdPollPacketTimes      byte = 0x51
)

// Sphero command IDs.
const (
	SpheroCmdSetHeading          byte = 0x01
	SpheroCmdSetStabilization    byte = 0x02
	SpheroCmdSetRotationRate     byte = 0x03
	SpheroCmdGetChassisID        byte = 0x07
	SpheroCmdSetDataStreaming    byte = 0x11
	SpheroCmdSetRGBLED           byte = 0x20
	SpheroCmdSetBackLED          byte = 0x21
	SpheroCmdGetRGBLED           byte = 0x22
	SpheroCmdRoll                byte = 0x30
	SpheroCmdBoost               byte = 0x31
	SpheroCmdSetRawMotors        byte = 0x33
	SpheroCmdSetMotionTimeout    byte = 0x34
	SpheroCmdSetPermanentOptions byte = 0x35
	SpheroCmdGetPermanentOptions byte = 0x36
	SpheroCmdSetTemporaryOptions byte = 0x37
	SpheroCmdGetTemporaryOptions byte = 0x38
)
