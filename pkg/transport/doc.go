// Package transport provides the byte-stream links to a Sphero robot and
// the connection lifecycle manager that sits on top of them.
//
// A Transport is a plain io.ReadWriteCloser with an address; dialers exist
// for local RFCOMM serial devices (SerialDialer) and for robots exposed
// over TCP by a serial bridge (TCPDialer). The Connection type owns a
// single transport, runs the read loop that decodes inbound frames, and
// drives the DISCONNECTED / CONNECTING / CONNECTED / DISCONNECTING state
// machine. Decoded packets and state transitions are delivered through the
// Handler interface; the transport layer itself knows nothing about
// command semantics or response correlation.
package transport
