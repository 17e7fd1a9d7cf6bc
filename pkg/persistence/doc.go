// Package persistence keeps a YAML address book of known robots.
//
// Bluetooth addresses are unreadable and robots answer to names like
// Sphero-RGB, so the console remembers the mapping between runs. The
// book lives at ~/.sphero-go/robots.yaml unless the caller picks
// another path.
package persistence
