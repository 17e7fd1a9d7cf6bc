// Package log provides structured protocol event logging.
//
// Events capture traffic and lifecycle activity on a robot connection:
// raw frames at the transport layer, decoded packets, connection state
// transitions, and errors. Events are encoded as CBOR with integer
// keys so capture files stay compact even under sensor streaming.
//
// FileLogger persists events for later inspection with the sphero-log
// tool; SlogAdapter mirrors events to a slog.Logger for development;
// MultiLogger fans out to both. Reader iterates a capture file with
// optional filtering.
package log
