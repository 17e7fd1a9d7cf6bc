package transport

import (
	"context"
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaudRate is the rate Sphero v1 robots use on their RFCOMM
// serial channel.
const DefaultBaudRate = 115200

// SerialConfig holds the port parameters for a serial transport. The zero
// value selects 115200 8N1, which every Sphero v1 model speaks.
type SerialConfig struct {
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

func (c SerialConfig) mode() *serial.Mode {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   c.Parity,
		StopBits: c.StopBits,
	}
}

// SerialDialer opens local RFCOMM serial devices such as /dev/rfcomm0 or
// /dev/tty.Sphero-RGB-AMP-SPP.
type SerialDialer struct {
	Config SerialConfig
}

// Dial implements the Dialer interface.
func (d *SerialDialer) Dial(ctx context.Context, address string) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := serial.Open(address, d.Config.mode())
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", address, err)
	}
	return &serialTransport{port: port, address: address}, nil
}

type serialTransport struct {
	port    serial.Port
	address string
}

func (t *serialTransport) Read(p []byte) (int, error)  { return t.port.Read(p) }
func (t *serialTransport) Write(p []byte) (int, error) { return t.port.Write(p) }
func (t *serialTransport) Close() error                { return t.port.Close() }
func (t *serialTransport) Address() string             { return t.address }
