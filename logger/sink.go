package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// Sink receives formatted log events.
//
// OnLogMessage is invoked synchronously, on the goroutine that emitted the
// event, for every event at or above the logger's threshold. There is no
// buffering and no delivery guarantee beyond that; a slow sink slows the
// caller down.
type Sink interface {
	OnLogMessage(level Level, text string)
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(level Level, text string)

// OnLogMessage calls f(level, text).
func (f SinkFunc) OnLogMessage(level Level, text string) {
	f(level, text)
}

// SinkLogger is a Logger that renders each event as a single line
// ("msg key=value key=value") and hands it to a Sink.
type SinkLogger struct {
	sink   Sink
	level  *atomic.Int32 // shared with children created by With
	fields []any
}

var _ Logger = (*SinkLogger)(nil)

// NewSinkLogger creates a Logger that forwards events at or above level to sink.
// A nil sink discards everything.
func NewSinkLogger(level Level, sink Sink) *SinkLogger {
	l := &SinkLogger{
		sink:  sink,
		level: &atomic.Int32{},
	}
	l.level.Store(int32(level))

	return l
}

func (l *SinkLogger) Debug(msg string, keysAndValues ...any) {
	l.emit(DebugLevel, msg, keysAndValues)
}

func (l *SinkLogger) Info(msg string, keysAndValues ...any) {
	l.emit(InfoLevel, msg, keysAndValues)
}

func (l *SinkLogger) Warn(msg string, keysAndValues ...any) {
	l.emit(WarnLevel, msg, keysAndValues)
}

func (l *SinkLogger) Error(msg string, keysAndValues ...any) {
	l.emit(ErrorLevel, msg, keysAndValues)
}

func (l *SinkLogger) Fatal(msg string, keysAndValues ...any) {
	l.emit(FatalLevel, msg, keysAndValues)
	os.Exit(1)
}

func (l *SinkLogger) With(keyValues ...any) Logger {
	fields := make([]any, 0, len(l.fields)+len(keyValues))
	fields = append(fields, l.fields...)
	fields = append(fields, keyValues...)

	return &SinkLogger{
		sink:   l.sink,
		level:  l.level,
		fields: fields,
	}
}

func (l *SinkLogger) detach() Logger {
	level := &atomic.Int32{}
	level.Store(l.level.Load())

	return &SinkLogger{sink: l.sink, level: level, fields: l.fields}
}

func (l *SinkLogger) Level() Level {
	return Level(l.level.Load())
}

func (l *SinkLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *SinkLogger) enabled(level Level) bool {
	threshold := l.Level()
	if l.sink == nil || threshold >= NoneLevel {
		return false
	}

	return level >= threshold
}

func (l *SinkLogger) emit(level Level, msg string, keysAndValues []any) {
	if !l.enabled(level) {
		return
	}

	l.sink.OnLogMessage(level, formatLine(msg, l.fields, keysAndValues))
}

func formatLine(msg string, groups ...[]any) string {
	var sb strings.Builder
	sb.WriteString(msg)

	for _, kvs := range groups {
		for i := 0; i < len(kvs); i += 2 {
			sb.WriteByte(' ')
			if i+1 >= len(kvs) {
				fmt.Fprintf(&sb, "!BADKEY=%v", kvs[i])
				break
			}
			fmt.Fprintf(&sb, "%v=%v", kvs[i], quoteIfNeeded(kvs[i+1]))
		}
	}

	return sb.String()
}

func quoteIfNeeded(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return fmt.Sprintf("%q", s)
	}

	return s
}
