// Package logger provides the structured logger used by the application
// layers. The core computation packages stay silent; logging happens at the
// app, cmd and infra boundaries.
package logger

// Logger is the minimal logging surface the application depends on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// New returns a Logger for the given component. Output format and level are
// detected from the APP_ENV and LOG_LEVEL environment variables.
func New(component string) Logger {
	return newZerologLogger(component)
}
