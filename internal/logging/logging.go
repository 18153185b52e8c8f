// Package logging defines the pluggable logger used by the polling components.
package logging

import "log"

// Logger defines logging methods used by the synchronization layer.
// Implementations should be cheap; polling components log on every failure.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StdLogger writes messages with level prefixes through the standard log package.
type StdLogger struct{}

func NewStdLogger() *StdLogger { return &StdLogger{} }

func (StdLogger) Debugf(format string, args ...any) { log.Printf("[DEBUG] "+format, args...) }
func (StdLogger) Infof(format string, args ...any)  { log.Printf("[INFO] "+format, args...) }
func (StdLogger) Warnf(format string, args ...any)  { log.Printf("[WARN] "+format, args...) }
func (StdLogger) Errorf(format string, args ...any) { log.Printf("[ERROR] "+format, args...) }

// NopLogger discards all messages.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
