// Package interaction implements the request/response layer of the Sphero
// protocol: sequence number allocation, in-flight request tracking and
// response correlation.
//
// Every answered command is tagged with a one-byte sequence number. The
// Client allocates numbers from the 0x00..0xFE range (0xFF is reserved
// for async notifications), guaranteeing that no two in-flight commands
// share a sequence. When all 255 numbers are outstanding, Send blocks
// until a slot frees. Responses are matched back to their callers through
// Handle, a single-assignment result cell that resolves exactly once:
// with the response, a timeout, a cancellation or a disconnect error,
// whichever happens first.
package interaction
