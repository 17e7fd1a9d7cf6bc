package sphero

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sphero-protocol/sphero-go/internal/robotest"
	"github.com/sphero-protocol/sphero-go/pkg/commands"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

func TestClient_GetVersioning(t *testing.T) {
	client, robot := newTestClient(t, Config{})
	robot.Respond(wire.DeviceCore, commands.CoreCmdGetVersioning, wire.StatusOK,
		[]byte{0x02, 0x03, 0x04, 0x01, 0x05, 0x06, 0x07, 0x08})

	connect(t, client)
	info, err := client.GetVersioning(context.Background())
	require.NoError(t, err)

	assert.Equal(t, byte(3), info.ModelNumber)
	assert.Equal(t, byte(1), info.MainAppMajor)
	assert.Equal(t, byte(5), info.MainAppMinor)
	assert.Equal(t, "model 3 firmware 1.5", info.String())
}

func TestClient_GetBluetoothInfo(t *testing.T) {
	client, robot := newTestClient(t, Config{})

	payload := make([]byte, 0, 32)
	payload = append(payload, []byte("Sphero-RGB\x00\x00\x00\x00\x00\x00")...)
	payload = append(payload, []byte("0006664B5FA0")...)
	payload = append(payload, 0x00)
	payload = append(payload, []byte("RGB")...)
	robot.Respond(wire.DeviceCore, commands.CoreCmdGetBluetoothInfo, wire.StatusOK, payload)

	connect(t, client)
	info, err := client.GetBluetoothInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Sphero-RGB", info.Name)
	assert.Equal(t, "0006664B5FA0", info.Address)
	assert.Equal(t, [3]byte{'R', 'G', 'B'}, info.IDColors)
}

func TestClient_RGBRoundTrip(t *testing.T) {
	client, robot := newTestClient(t, Config{})

	var mu sync.Mutex
	stored := []byte{0x00, 0x00, 0x00}
	robot.Handle(wire.DeviceSphero, commands.SpheroCmdSetRGBLED, func(cmd *wire.Packet) *wire.Packet {
		mu.Lock()
		stored = append([]byte(nil), cmd.Payload[:3]...)
		mu.Unlock()
		return robotest.Reply(wire.StatusOK, nil)
	})
	robot.Handle(wire.DeviceSphero, commands.SpheroCmdGetRGBLED, func(*wire.Packet) *wire.Packet {
		mu.Lock()
		defer mu.Unlock()
		return robotest.Reply(wire.StatusOK, stored)
	})

	connect(t, client)
	ctx := context.Background()

	want := commands.RGB{R: 0xFF, G: 0x00, B: 0x80}
	require.NoError(t, client.SetRGB(ctx, want, true))

	got, err := client.GetRGB(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClient_RollPayload(t *testing.T) {
	client, robot := newTestClient(t, Config{})

	connect(t, client)
	require.NoError(t, client.Roll(context.Background(), 0x80, 270))

	received := robot.Received()
	var roll *wire.Packet
	for _, pkt := range received {
		if pkt.Device == wire.DeviceSphero && pkt.Command == commands.SpheroCmdRoll {
			p := pkt
			roll = &p
		}
	}
	require.NotNil(t, roll)
	assert.Equal(t, []byte{0x80, 0x01, 0x0E, 0x01}, roll.Payload)
}

func TestClient_RollRejectsBadHeading(t *testing.T) {
	client, robot := newTestClient(t, Config{})

	connect(t, client)
	err := client.Roll(context.Background(), 0x40, 360)

	assert.ErrorIs(t, err, commands.ErrOutOfRange)
	assert.Zero(t, robot.CommandCount(wire.DeviceSphero, commands.SpheroCmdRoll))
}

func TestClient_GetChassisID(t *testing.T) {
	client, robot := newTestClient(t, Config{})
	robot.Respond(wire.DeviceSphero, commands.SpheroCmdGetChassisID, wire.StatusOK, []byte{0x00, 0x2A})

	connect(t, client)
	id, err := client.GetChassisID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(42), id)
}

func TestClient_SleepEncodesWakeup(t *testing.T) {
	client, robot := newTestClient(t, Config{})

	connect(t, client)
	require.NoError(t, client.Sleep(context.Background(), 2*time.Minute))

	received := robot.Received()
	var sleep *wire.Packet
	for _, pkt := range received {
		if pkt.Device == wire.DeviceCore && pkt.Command == commands.CoreCmdSleep {
			p := pkt
			sleep = &p
		}
	}
	require.NotNil(t, sleep)
	assert.Equal(t, []byte{0x00, 0x78, 0x00, 0x00, 0x00}, sleep.Payload)
}

func TestClient_SleepRejectsOutOfRange(t *testing.T) {
	client, _ := newTestClient(t, Config{})

	connect(t, client)
	assert.ErrorIs(t, client.Sleep(context.Background(), -time.Second), commands.ErrOutOfRange)
	assert.ErrorIs(t, client.Sleep(context.Background(), 20*time.Hour), commands.ErrOutOfRange)
}

func TestClient_VoltageTripPoints(t *testing.T) {
	client, robot := newTestClient(t, Config{})
	robot.Respond(wire.DeviceCore, commands.CoreCmdGetVoltageTrip, wire.StatusOK,
		[]byte{0x02, 0xBC, 0x02, 0x8A})

	connect(t, client)
	low, critical, err := client.GetVoltageTripPoints(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint16(700), low)
	assert.Equal(t, uint16(650), critical)
}

func TestClient_PermanentOptionsRoundTrip(t *testing.T) {
	client, robot := newTestClient(t, Config{})

	var mu sync.Mutex
	stored := make([]byte, 8)
	robot.Handle(wire.DeviceSphero, commands.SpheroCmdSetPermanentOptions, func(cmd *wire.Packet) *wire.Packet {
		mu.Lock()
		stored = append([]byte(nil), cmd.Payload...)
		mu.Unlock()
		return robotest.Reply(wire.StatusOK, nil)
	})
	robot.Handle(wire.DeviceSphero, commands.SpheroCmdGetPermanentOptions, func(*wire.Packet) *wire.Packet {
		mu.Lock()
		defer mu.Unlock()
		return robotest.Reply(wire.StatusOK, stored)
	})

	connect(t, client)
	ctx := context.Background()

	want := commands.OptVectorDrive | commands.OptTailLightAlwaysOn
	require.NoError(t, client.SetPermanentOptions(ctx, want))

	got, err := client.GetPermanentOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClient_PollPacketTimes(t *testing.T) {
	client, robot := newTestClient(t, Config{})
	robot.Handle(wire.DeviceCore, commands.CoreCmdPollPacketTimes, func(cmd *wire.Packet) *wire.Packet {
		// Echo the client transmit time as both robot timestamps.
		payload := make([]byte, 0, 12)
		payload = append(payload, cmd.Payload...)
		payload = append(payload, cmd.Payload...)
		payload = append(payload, cmd.Payload...)
		return robotest.Reply(wire.StatusOK, payload)
	})

	connect(t, client)
	times, err := client.PollPacketTimes(context.Background())
	require.NoError(t, err)

	// With robot clocks echoing t1, offset and delay reduce to the wire
	// round trip, which stays tiny on an in-memory pipe.
	assert.Less(t, times.Delay, 500*time.Millisecond)
	assert.Equal(t, 1, robot.CommandCount(wire.DeviceCore, commands.CoreCmdPollPacketTimes))
}

func TestClient_ExecuteEscapeHatch(t *testing.T) {
	client, robot := newTestClient(t, Config{})

	connect(t, client)
	resp, err := client.Execute(context.Background(), commands.Command{
		Device:  wire.DeviceCore,
		ID:      0x99,
		Payload: []byte{0x01},
	})
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, resp.Status())
	assert.Equal(t, 1, robot.CommandCount(wire.DeviceCore, 0x99))
}

func TestClient_ExecuteNoAnswer(t *testing.T) {
	client, robot := newTestClient(t, Config{})

	connect(t, client)
	require.NoError(t, client.ExecuteNoAnswer(commands.SetBackLED(0xFF)))

	waitFor(t, func() bool {
		return robot.CommandCount(wire.DeviceSphero, commands.SpheroCmdSetBackLED) == 1
	}, "fire-and-forget command received")
	assert.Zero(t, client.Pending())
}
