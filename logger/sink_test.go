package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	level Level
	text  string
}

func newRecordingSink() (Sink, *[]recordedEvent) {
	events := []recordedEvent{}
	sink := SinkFunc(func(level Level, text string) {
		events = append(events, recordedEvent{level: level, text: text})
	})

	return sink, &events
}

func TestSinkLogger_Threshold(t *testing.T) {
	sink, events := newRecordingSink()
	l := NewSinkLogger(WarnLevel, sink)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	require.Len(t, *events, 2)
	assert.Equal(t, WarnLevel, (*events)[0].level)
	assert.Equal(t, "warn message", (*events)[0].text)
	assert.Equal(t, ErrorLevel, (*events)[1].level)
}

func TestSinkLogger_SetLevel(t *testing.T) {
	sink, events := newRecordingSink()
	l := NewSinkLogger(ErrorLevel, sink)

	l.Info("dropped")
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
	l.Debug("kept")

	require.Len(t, *events, 1)
	assert.Equal(t, "kept", (*events)[0].text)
}

func TestSinkLogger_NoneLevelDisablesOutput(t *testing.T) {
	sink, events := newRecordingSink()
	l := NewSinkLogger(NoneLevel, sink)

	l.Error("dropped")
	assert.Empty(t, *events)
}

func TestSinkLogger_NilSink(t *testing.T) {
	l := NewSinkLogger(DebugLevel, nil)
	assert.NotPanics(t, func() { l.Error("nothing happens") })
}

func TestSinkLogger_FormatsFields(t *testing.T) {
	sink, events := newRecordingSink()
	l := NewSinkLogger(DebugLevel, sink)

	child := l.With("port", "/dev/ttyUSB0")
	child.Info("command sent", "cmd", "1PR10", "bytes", 7, "reply", "1TP 5")

	require.Len(t, *events, 1)
	assert.Equal(t, `command sent port=/dev/ttyUSB0 cmd=1PR10 bytes=7 reply="1TP 5"`, (*events)[0].text)
}

func TestSinkLogger_ChildSharesLevel(t *testing.T) {
	sink, events := newRecordingSink()
	l := NewSinkLogger(InfoLevel, sink)
	child := l.With("axis", 1)

	l.SetLevel(ErrorLevel)
	child.Info("dropped")
	assert.Empty(t, *events)
	assert.Equal(t, ErrorLevel, child.Level())
}

func TestSinkLogger_OddKeyValues(t *testing.T) {
	sink, events := newRecordingSink()
	l := NewSinkLogger(DebugLevel, sink)

	l.Info("odd", "dangling")

	require.Len(t, *events, 1)
	assert.Equal(t, "odd !BADKEY=dangling", (*events)[0].text)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"warn", WarnLevel, true},
		{" error ", ErrorLevel, true},
		{"none", NoneLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "WARNING", WarnLevel.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
