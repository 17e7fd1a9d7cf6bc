// Package wire defines the binary packet format spoken by Sphero v1
// robots over Bluetooth RFCOMM.
//
// Every frame, in both directions, has the same layout:
//
//	[SOP1][SOP2][HDR1][HDR2][SEQ][LEN][payload...][CHK]
//
// SOP1 is always 0xFF. SOP2 is 0xFF for frames that participate in
// request/response correlation and 0xFE for fire-and-forget sends and
// unsolicited async notifications. HDR1 selects the firmware subsystem
// (device ID); HDR2 is the command ID on send and the response status
// or async event code on receive. LEN counts the payload bytes plus
// the trailing checksum byte. CHK is the one's complement of the
// modulo-256 sum of HDR1, HDR2, SEQ, LEN and the payload; the SOP
// bytes are excluded from the sum.
//
// Async notifications carry the reserved sequence 0xFF, meaning "not
// correlated with any request". The remaining sequence values 0x00 to
// 0xFE tag commands so responses can be matched to their senders.
//
// # Streaming decode
//
// RFCOMM delivers bytes, not frames. Decoder accumulates raw reads and
// yields complete packets, resynchronizing after corrupt input by
// discarding a single byte and rescanning for the start markers.
package wire
