// Package fakeport provides an in-memory serial port for tests and simulation.
//
// A Port behaves like a go.bug.st/serial port opened with a read timeout:
// Read returns (0, nil) when the timeout elapses without data, and returns
// ErrClosed once the port is closed. Bytes written by the host are split into
// CRLF-terminated lines and handed to the Handler, which may answer by calling
// Deliver.
package fakeport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("fakeport: port closed")

// Handler is called, outside the port lock, for every complete line written
// by the host. The line excludes the "\r\n" terminator.
type Handler func(p *Port, line string)

// Port is an in-memory, goroutine-safe serial port.
type Port struct {
	mu          sync.Mutex
	rx          []byte // device -> host, not yet read
	txPending   []byte // host -> device, incomplete line
	written     []byte // every byte the host wrote
	lines       []string
	writeTimes  []time.Time
	readTimeout time.Duration
	closed      bool

	notify  chan struct{}
	closeCh chan struct{}

	handler Handler

	// failure injection
	writeErr   error
	shortWrite int // >= 0 truncates every write to this many bytes; -1 disables

	inputResets  int
	outputResets int
}

// New creates an open Port. h may be nil.
func New(h Handler) *Port {
	return &Port{
		readTimeout: -1,
		notify:      make(chan struct{}, 1),
		closeCh:     make(chan struct{}),
		handler:     h,
		shortWrite:  -1,
	}
}

// SetHandler replaces the line handler.
func (p *Port) SetHandler(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handler = h
}

// FailWrites makes every subsequent Write fail with err. A nil err clears it.
func (p *Port) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writeErr = err
}

// ShortWrites truncates every subsequent Write to n bytes. n < 0 disables it.
func (p *Port) ShortWrites(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shortWrite = n
}

// Read implements serial.Port.Read semantics with the configured read timeout.
func (p *Port) Read(buf []byte) (int, error) {
	p.mu.Lock()
	timeout := p.readTimeout
	p.mu.Unlock()

	var expire <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return 0, ErrClosed
		}
		if len(p.rx) > 0 {
			n := copy(buf, p.rx)
			p.rx = p.rx[n:]
			p.mu.Unlock()

			return n, nil
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-p.closeCh:
			return 0, ErrClosed
		case <-expire:
			return 0, nil
		}
	}
}

// Write records data and dispatches complete lines to the handler.
func (p *Port) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	if p.writeErr != nil {
		err := p.writeErr
		p.mu.Unlock()

		return 0, err
	}
	if len(data) == 0 {
		p.mu.Unlock()
		return 0, nil
	}

	n := len(data)
	if p.shortWrite >= 0 && p.shortWrite < n {
		n = p.shortWrite
	}
	chunk := data[:n]

	p.written = append(p.written, chunk...)
	p.writeTimes = append(p.writeTimes, time.Now())
	p.txPending = append(p.txPending, chunk...)

	var complete []string
	for {
		idx := bytes.Index(p.txPending, []byte("\r\n"))
		if idx < 0 {
			break
		}
		complete = append(complete, string(p.txPending[:idx]))
		p.txPending = p.txPending[idx+2:]
	}
	p.lines = append(p.lines, complete...)
	h := p.handler
	p.mu.Unlock()

	if h != nil {
		for _, line := range complete {
			h(p, line)
		}
	}

	return n, nil
}

// SetReadTimeout sets the per-Read timeout; a negative value blocks forever.
func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.readTimeout = t

	return nil
}

// ResetInputBuffer discards bytes delivered but not yet read.
func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.rx = nil
	p.inputResets++

	return nil
}

// ResetOutputBuffer discards an incomplete outgoing line.
func (p *Port) ResetOutputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.txPending = nil
	p.outputResets++

	return nil
}

// Close closes the port and wakes up any blocked Read.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.closed = true
	close(p.closeCh)

	return nil
}

// Deliver makes data available to the host.
func (p *Port) Deliver(data []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.rx = append(p.rx, data...)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// DeliverString is Deliver for text.
func (p *Port) DeliverString(s string) {
	p.Deliver([]byte(s))
}

// DeliverAfter delivers data after d on a separate goroutine.
func (p *Port) DeliverAfter(d time.Duration, data []byte) {
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			p.Deliver(data)
		case <-p.closeCh:
		}
	}()
}

// Written returns a copy of every byte written by the host.
func (p *Port) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]byte(nil), p.written...)
}

// Lines returns the complete lines written by the host, without terminators.
func (p *Port) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.lines...)
}

// WriteTimes returns the time of every non-empty successful Write.
func (p *Port) WriteTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]time.Time(nil), p.writeTimes...)
}

// Pending returns the number of delivered bytes not yet read or flushed.
func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.rx)
}

// ReadTimeout returns the current per-Read timeout.
func (p *Port) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.readTimeout
}

// Resets returns how many times the input and output buffers were reset.
func (p *Port) Resets() (input, output int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.inputResets, p.outputResets
}

// IsClosed reports whether Close has been called.
func (p *Port) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// BasicPort exposes only the I/O subset of a Port, hiding the buffer
// reset methods. It models a platform without a purge primitive.
type BasicPort struct {
	p *Port
}

// WithoutPurge wraps p so that it no longer offers buffer resets.
func WithoutPurge(p *Port) *BasicPort {
	return &BasicPort{p: p}
}

func (b *BasicPort) Read(buf []byte) (int, error)         { return b.p.Read(buf) }
func (b *BasicPort) Write(data []byte) (int, error)       { return b.p.Write(data) }
func (b *BasicPort) SetReadTimeout(t time.Duration) error { return b.p.SetReadTimeout(t) }
func (b *BasicPort) Close() error                         { return b.p.Close() }
