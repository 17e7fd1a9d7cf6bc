package sphero

import (
	"context"
	"fmt"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/async"
	"github.com/sphero-protocol/sphero-go/pkg/commands"
	"github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/sensors"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// StreamSensors configures the sensor stream and delivers every decoded
// frame to fn on the router's dispatch goroutine. Calling it again
// replaces the previous stream; frames that do not match the configured
// mask are dropped and logged without disturbing anything else.
func (c *Client) StreamSensors(ctx context.Context, cfg sensors.StreamConfig, frequencyHz int, fn func(sensors.Frame)) error {
	cmd, err := commands.SetDataStreaming(cfg, frequencyHz)
	if err != nil {
		return err
	}

	sub := c.router.Subscribe(wire.AsyncSensorData, c.frameDecoder(cfg, fn))

	c.mu.Lock()
	old := c.streamSub
	c.streamSub = sub
	c.mu.Unlock()
	if old != nil {
		c.router.Unsubscribe(old)
	}

	if _, err := c.Execute(ctx, cmd); err != nil {
		c.mu.Lock()
		if c.streamSub == sub {
			c.streamSub = nil
		}
		c.mu.Unlock()
		c.router.Unsubscribe(sub)
		return err
	}
	return nil
}

// StopStreaming tells the robot to stop the sensor stream and removes
// the frame decoder installed by StreamSensors.
func (c *Client) StopStreaming(ctx context.Context) error {
	c.mu.Lock()
	sub := c.streamSub
	c.streamSub = nil
	c.mu.Unlock()
	if sub != nil {
		c.router.Unsubscribe(sub)
	}

	_, err := c.Execute(ctx, commands.StopDataStreaming())
	return err
}

// OnSensorData subscribes fn to sensor stream frames decoded with cfg,
// without reconfiguring the stream. Use it for a second consumer, or
// when the robot is already streaming from an earlier session.
func (c *Client) OnSensorData(cfg sensors.StreamConfig, fn func(sensors.Frame)) *async.Subscription {
	return c.router.Subscribe(wire.AsyncSensorData, c.frameDecoder(cfg, fn))
}

// frameDecoder adapts a frame callback to the router's packet listener,
// dropping payloads that do not match cfg.
func (c *Client) frameDecoder(cfg sensors.StreamConfig, fn func(sensors.Frame)) func(*wire.Packet) {
	return func(pkt *wire.Packet) {
		frames, err := cfg.DecodeFrames(pkt.Payload)
		if err != nil {
			c.logClientError("sensor frame dropped", err)
			return
		}
		for _, frame := range frames {
			fn(frame)
		}
	}
}

// OnPowerState subscribes to battery state notifications. The robot
// sends them only after SetPowerNotification(true).
func (c *Client) OnPowerState(fn func(sensors.BatteryState)) *async.Subscription {
	return c.router.Subscribe(wire.AsyncPowerNotification, func(pkt *wire.Packet) {
		state, err := sensors.ParsePowerNotification(pkt.Payload)
		if err != nil {
			c.logClientError("power notification dropped", err)
			return
		}
		fn(state)
	})
}

// OnAsync subscribes fn to one notification kind. The raw packet is
// delivered on the router's dispatch goroutine.
func (c *Client) OnAsync(id wire.AsyncID, fn func(pkt *wire.Packet)) *async.Subscription {
	return c.router.Subscribe(id, fn)
}

// OnAnyAsync subscribes fn as the fallback for notifications no
// dedicated subscription handles.
func (c *Client) OnAnyAsync(fn func(pkt *wire.Packet)) *async.Subscription {
	return c.router.SubscribeAll(fn)
}

// Unsubscribe removes a subscription made by any of the On helpers.
func (c *Client) Unsubscribe(sub *async.Subscription) {
	c.router.Unsubscribe(sub)
}

func (c *Client) logClientError(message string, err error) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.config.ConnectionID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerPacket,
		Category:     log.CategoryError,
		RobotName:    c.config.Name,
		Error: &log.ErrorEventData{
			Layer:   log.LayerPacket,
			Message: message,
			Context: fmt.Sprintf("%v", err),
		},
	})
}
