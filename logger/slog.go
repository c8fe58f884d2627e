package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/phsym/console-slog"
)

// slogLevelNone sits above every level slog knows about, so nothing passes.
const slogLevelNone = slog.Level(100)

// SlogLogger implements Logger on top of log/slog.
//
// Loggers derived through With share the level of their parent, so a
// SetLevel on the engine's logger also applies to the transport's.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var _ Logger = (*SlogLogger)(nil)

// NewSlog creates a slog logger writing to stdout.
func NewSlog(level Level, addSource bool) Logger {
	return NewSlogWriter(os.Stdout, level, addSource)
}

// NewSlogWriter creates a slog logger writing to w.
//
// ENV=development selects the colored console handler; otherwise records
// are written as JSON with the timestamp under "ts".
func NewSlogWriter(w io.Writer, level Level, addSource bool) Logger {
	lv := &slog.LevelVar{}
	lv.Set(toSlogLevel(level))

	return &SlogLogger{
		logger: slog.New(newHandler(w, addSource)),
		level:  lv,
	}
}

// newHandler accepts every level; the threshold lives in SlogLogger so that
// detached loggers can filter differently on the same handler.
func newHandler(w io.Writer, addSource bool) slog.Handler {
	if os.Getenv("ENV") == "development" {
		return console.NewHandler(w, &console.HandlerOptions{
			AddSource: true,
			Level:     slog.LevelDebug,
		})
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: addSource,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	})
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues)
}

// Fatal logs at error level and exits the process.
func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues)
	os.Exit(1)
}

func (l *SlogLogger) With(keyValues ...any) Logger {
	return &SlogLogger{
		logger: l.logger.With(keyValues...),
		level:  l.level,
	}
}

func (l *SlogLogger) detach() Logger {
	lv := &slog.LevelVar{}
	lv.Set(l.level.Level())

	return &SlogLogger{logger: l.logger, level: lv}
}

func (l *SlogLogger) Level() Level {
	return fromSlogLevel(l.level.Level())
}

func (l *SlogLogger) SetLevel(level Level) {
	l.level.Set(toSlogLevel(level))
}

// log must be called directly by one of the exported level methods; the
// recorded source position skips exactly that frame.
func (l *SlogLogger) log(level slog.Level, msg string, args []any) {
	if level < l.level.Level() {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // runtime.Callers, log, exported method

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.logger.Handler().Handle(context.Background(), r)
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	case NoneLevel:
		return slogLevelNone
	default:
		return slog.LevelError
	}
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level >= slogLevelNone:
		return NoneLevel
	case level >= slog.LevelError:
		return ErrorLevel
	case level >= slog.LevelWarn:
		return WarnLevel
	case level >= slog.LevelInfo:
		return InfoLevel
	default:
		return DebugLevel
	}
}
