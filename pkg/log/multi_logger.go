package log

// MultiLogger fans each event out to several loggers in order. The
// console uses it to capture a session to file and echo the same
// events to the terminal.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers into one. Nil entries are skipped,
// so optional loggers can be passed without checking.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{loggers: make([]Logger, 0, len(loggers))}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log hands the event to every logger, in the order they were given.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
