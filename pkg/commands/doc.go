// Package commands builds and parses the Sphero v1 command set.
//
// Each builder validates its arguments and produces a Command value: the
// target device, the command ID and the encoded payload, ready to hand
// to the interaction client. Response parsers turn raw answer payloads
// back into typed values. The builders are pure; nothing here touches
// the transport.
package commands
