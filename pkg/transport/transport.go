package transport

import (
	"context"
	"io"
)

// Transport is a byte-stream link to a robot. Implementations carry raw
// frame bytes in both directions and are safe for one concurrent reader
// and one concurrent writer.
type Transport interface {
	io.ReadWriteCloser

	// Address returns the endpoint this transport is bound to, for
	// example "/dev/rfcomm0" or "bridge.local:4444".
	Address() string
}

// Dialer opens a Transport to the given address. The context bounds the
// dial itself, not the lifetime of the returned transport.
type Dialer interface {
	Dial(ctx context.Context, address string) (Transport, error)
}

// DialerFunc adapts a plain function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string) (Transport, error)

// Dial implements the Dialer interface.
func (f DialerFunc) Dial(ctx context.Context, address string) (Transport, error) {
	return f(ctx, address)
}
