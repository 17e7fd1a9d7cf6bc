// Package async routes unsolicited robot notifications to subscribed
// listeners.
//
// Packets the correlator cannot match to a pending request are handed to
// a Router, which classifies them by async event code (power state,
// sensor data, collisions, diagnostics) and delivers each to that code's
// listeners in registration order. Delivery happens on a dedicated
// dispatcher goroutine behind a bounded queue, so a slow listener can
// never stall the connection's read loop or delay response correlation.
// When the queue is full the packet is dropped and counted, never
// blocked on.
package async
