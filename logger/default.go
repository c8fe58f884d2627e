package logger

import "sync/atomic"

var defLogger atomic.Pointer[Logger]

func init() {
	l := NewSlog(WarnLevel, false)
	defLogger.Store(&l)
}

// Debug logs through the package-level default logger.
func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }

// Info logs through the package-level default logger.
func Info(msg string, keysAndValues ...any) { GetLogger().Info(msg, keysAndValues...) }

// Warn logs through the package-level default logger.
func Warn(msg string, keysAndValues ...any) { GetLogger().Warn(msg, keysAndValues...) }

// Error logs through the package-level default logger.
func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }

// Fatal logs through the package-level default logger and exits.
func Fatal(msg string, keysAndValues ...any) { GetLogger().Fatal(msg, keysAndValues...) }

// SetLevel changes the level of the default logger.
func SetLevel(level Level) { GetLogger().SetLevel(level) }

// SetLogger replaces the package-level default logger. A nil logger is ignored.
//
// Configs built before the call keep the logger they captured.
func SetLogger(l Logger) {
	if l != nil {
		defLogger.Store(&l)
	}
}

// GetLogger returns the package-level default logger. It writes JSON to
// stdout at WarnLevel unless replaced with SetLogger.
func GetLogger() Logger {
	return *defLogger.Load()
}

// With returns a child of the default logger carrying keyValues.
func With(keyValues ...any) Logger {
	return GetLogger().With(keyValues...)
}
