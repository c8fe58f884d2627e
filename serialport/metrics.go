package serialport

import "sync/atomic"

// Metrics contains atomic counters for a Transport.
// Each counter can back a prometheus CounterFunc.
type Metrics struct {
	// ConnectCount is the number of Connect attempts.
	ConnectCount atomic.Uint64
	// HandshakeFailureCount is the number of Connect attempts rejected by the handshake.
	HandshakeFailureCount atomic.Uint64

	// BytesSent is the number of bytes accepted by the port.
	BytesSent atomic.Uint64
	// BytesReceived is the number of bytes read from the port.
	BytesReceived atomic.Uint64
	// SendErrorCount is the number of writes that failed outright.
	SendErrorCount atomic.Uint64

	// ReadTimeoutCount is the number of ListenUntil calls that hit their timeout.
	ReadTimeoutCount atomic.Uint64
	// ReadCancelCount is the number of ListenUntil calls cancelled by context or Disconnect.
	ReadCancelCount atomic.Uint64

	// FlushCount is the number of buffer purges issued, input and output combined.
	FlushCount atomic.Uint64
}

func (m *Metrics) incConnectCount() {
	m.ConnectCount.Add(1)
}

func (m *Metrics) incHandshakeFailureCount() {
	m.HandshakeFailureCount.Add(1)
}

func (m *Metrics) addBytesSent(n int) {
	if n > 0 {
		m.BytesSent.Add(uint64(n))
	}
}

func (m *Metrics) addBytesReceived(n int) {
	if n > 0 {
		m.BytesReceived.Add(uint64(n))
	}
}

func (m *Metrics) incSendErrorCount() {
	m.SendErrorCount.Add(1)
}

func (m *Metrics) incReadTimeoutCount() {
	m.ReadTimeoutCount.Add(1)
}

func (m *Metrics) incReadCancelCount() {
	m.ReadCancelCount.Add(1)
}

func (m *Metrics) incFlushCount() {
	m.FlushCount.Add(1)
}
