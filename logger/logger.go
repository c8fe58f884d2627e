// Package logger provides the logging abstraction used by go-agilis, allowing
// users to plug in their preferred logging implementation.
//
// The Logger interface defines methods for logging messages at various severity
// levels (Debug, Info, Warn, Error, Fatal) and supports structured logging with
// key-value pairs.
//
// Log Levels:
//
//   - DebugLevel: wire-level traffic (bytes sent, replies received, pacing waits).
//   - InfoLevel:  command-level events (connect, disconnect, commands issued).
//   - WarnLevel:  recoverable conditions, e.g. a platform without buffer purge.
//   - ErrorLevel: failed sends, timeouts and unparsable replies.
//   - FatalLevel: critical errors that cause program termination.
//   - NoneLevel:  disables logging entirely.
//
// Applications that want to receive log events through a single callback
// instead of a logging framework can use NewSinkLogger.
package logger

import "strings"

// Level indicates the logging severity level.
type Level int8

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If the device link is healthy,
	// it shouldn't generate any error-level logs.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
	// NoneLevel disables all log output.
	NoneLevel
)

// String returns the upper-case name of the level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	case NoneLevel:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "warning" into a Level.
// Unknown names yield InfoLevel and false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	case "none", "off":
		return NoneLevel, true
	default:
		return InfoLevel, false
	}
}

// Logger defines a common interface for logging.
// This interface is used throughout the go-agilis packages, enabling integration with various logging frameworks.
type Logger interface {
	// Debug logs a message at DebugLevel.
	// The message includes any fields passed at the log site, as well as any fields accumulated on the logger.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	// The message includes any fields passed at the log site, as well as any fields accumulated on the logger.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	// The message includes any fields passed at the log site, as well as any fields accumulated on the logger.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel
	// The message includes any fields passed at the log site, as well as any fields accumulated on the logger.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel
	// The message includes any fields passed at the log site, as well as any fields accumulated on the logger.
	//
	// The logger then calls os.Exit(1), even if logging at FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger and adds structured context to it.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}

// Detach returns a logger that writes to the same destination as l, with
// the same fields, but whose level is independent: SetLevel on the result
// does not change l and vice versa. Children created from the result with
// With share its level.
//
// Loggers that cannot be detached, such as MockLogger, are returned as is.
func Detach(l Logger) Logger {
	if d, ok := l.(interface{ detach() Logger }); ok {
		return d.detach()
	}

	return l
}
