// Package discovery finds robots to connect to.
//
// Two paths exist to a Sphero v1 robot: a local serial device (the
// RFCOMM TTY the OS binds after Bluetooth pairing) and a sphero-bridge
// process on the network forwarding a serial port over TCP. The
// SerialScanner enumerates the first kind, the BridgeScanner browses
// mDNS for the second, and Merged combines any number of scanners
// behind the one Scanner interface.
package discovery
