package logger

import "time"

// NoOpLogger is a logger that does nothing. Used in tests.
type NoOpLogger struct{}

// NewNoOp creates a new no-op logger instance.
func NewNoOp() Interface {
	return &NoOpLogger{}
}

// Debug logs a debug message.
func (l *NoOpLogger) Debug(msg string, fields ...any) {}

// Info logs an info message.
func (l *NoOpLogger) Info(msg string, fields ...any) {}

// Warn logs a warning message.
func (l *NoOpLogger) Warn(msg string, fields ...any) {}

// Error logs an error message.
func (l *NoOpLogger) Error(msg string, fields ...any) {}

// Fatal logs a fatal message.
func (l *NoOpLogger) Fatal(msg string, fields ...any) {}

// With returns the logger unchanged.
func (l *NoOpLogger) With(fields ...any) Interface { return l }

// WithAudit returns the logger unchanged.
func (l *NoOpLogger) WithAudit(auditID string) Interface { return l }

// WithComponent returns the logger unchanged.
func (l *NoOpLogger) WithComponent(component string) Interface { return l }

// WithError returns the logger unchanged.
func (l *NoOpLogger) WithError(err error) Interface { return l }

// WithDuration returns the logger unchanged.
func (l *NoOpLogger) WithDuration(duration time.Duration) Interface { return l }
