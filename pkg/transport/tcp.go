package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPDialer connects to a robot exposed over TCP, typically by a serial
// bridge forwarding an RFCOMM device on another machine.
type TCPDialer struct {
	// Timeout bounds the dial when the context carries no deadline.
	Timeout time.Duration
}

// Dial implements the Dialer interface.
func (d *TCPDialer) Dial(ctx context.Context, address string) (Transport, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return &tcpTransport{conn: conn, address: address}, nil
}

type tcpTransport struct {
	conn    net.Conn
	address string
}

func (t *tcpTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *tcpTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *tcpTransport) Close() error                { return t.conn.Close() }
func (t *tcpTransport) Address() string             { return t.address }

// NetTransport wraps an accepted or pre-established net.Conn as a
// Transport. The bridge server uses it for its robot-facing side.
func NetTransport(conn net.Conn, address string) Transport {
	return &tcpTransport{conn: conn, address: address}
}
