package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock of Logger.
//
// The level methods receive the message and the key/value slice as two
// arguments; With receives its key/values spread out, so
//
//	m.On("With", "port", "/dev/ttyUSB0").Return(m)
//
// matches the transport's per-port child logger.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// AllowAll makes every method optional: level methods accept any
// arguments, With returns m itself and Level reports DebugLevel. Specific
// expectations registered before AllowAll take precedence.
func (m *MockLogger) AllowAll() *MockLogger {
	for _, method := range []string{"Debug", "Info", "Warn", "Error", "Fatal"} {
		m.On(method, mock.Anything, mock.Anything).Maybe()
	}
	m.On("SetLevel", mock.Anything).Maybe()
	m.On("Level").Return(DebugLevel).Maybe()

	return m
}

// Messages returns the messages logged through method, in order.
func (m *MockLogger) Messages(method string) []string {
	var msgs []string
	for _, call := range m.Calls {
		if call.Method == method {
			msgs = append(msgs, call.Arguments.String(0))
		}
	}

	return msgs
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }
func (m *MockLogger) Info(msg string, keysAndValues ...any)  { m.Called(msg, keysAndValues) }
func (m *MockLogger) Warn(msg string, keysAndValues ...any)  { m.Called(msg, keysAndValues) }
func (m *MockLogger) Error(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }
func (m *MockLogger) Fatal(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	return m.Called().Get(0).(Level)
}

func (m *MockLogger) With(keyValues ...any) Logger {
	return m.Called(keyValues...).Get(0).(Logger)
}
