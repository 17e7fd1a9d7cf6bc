package log

// Logger receives protocol events from the transport, interaction and
// async layers.
type Logger interface {
	// Log records one protocol event. Implementations must be safe for
	// concurrent use and must return quickly: the connection read loop
	// calls Log inline.
	Log(event Event)
}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(Event)

// Log calls the function.
func (fn LoggerFunc) Log(event Event) { fn(event) }

// NoopLogger discards all events. The zero value is ready to use; pass
// it wherever capture is disabled.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
