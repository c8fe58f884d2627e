package serialport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-agilis/internal/pool"
	"github.com/arloliu/go-agilis/internal/util"
	"github.com/arloliu/go-agilis/logger"
)

// readChunkSize is the size of each individual port read. Agilis replies are
// well below this, so a reply normally arrives in one read.
const readChunkSize = 256

var (
	ErrConnect          = errors.New("serialport: connect failed")
	ErrHandshake        = errors.New("serialport: handshake failed")
	ErrAlreadyConnected = errors.New("serialport: already connected")
	ErrNotConnected     = errors.New("serialport: not connected")
	ErrConnClosed       = errors.New("serialport: connection closed")
	ErrTimeout          = errors.New("serialport: read timeout")
	ErrReadInProgress   = errors.New("serialport: another read is in progress")
	ErrEmptyDelimiter   = errors.New("serialport: empty delimiter")
)

// Transport owns one serial port and provides the byte-level primitives of
// the Agilis protocol.
type Transport struct {
	pctx   context.Context
	cfg    *Config
	logger logger.Logger

	opState atomicState

	// port and its connection context are replaced together under portMu.
	// The context is cancelled by Disconnect to interrupt ListenUntil.
	portMu    sync.RWMutex
	port      Port
	ctx       context.Context
	ctxCancel context.CancelFunc

	reading atomic.Bool

	metrics Metrics
}

// New creates a closed Transport. ctx is the parent of every connection
// context; cancelling it interrupts reads as Disconnect does.
func New(ctx context.Context, cfg *Config) (*Transport, error) {
	if cfg == nil {
		return nil, errors.New("serialport: config is nil")
	}

	t := &Transport{
		pctx:   ctx,
		cfg:    cfg,
		logger: cfg.logger.With("port", cfg.portName),
	}
	t.opState.Set(ClosedState)

	return t, nil
}

// Config returns the transport configuration.
func (t *Transport) Config() *Config { return t.cfg }

// PortName returns the configured port name.
func (t *Transport) PortName() string { return t.cfg.portName }

// State returns the current lifecycle state.
func (t *Transport) State() State { return t.opState.Get() }

// Metrics returns the transport counters.
func (t *Transport) Metrics() *Metrics { return &t.metrics }

// Connect opens and configures the port, then runs the handshake when one is
// configured.
//
// On any failure the port is closed again and the transport is left in the
// Closed state.
func (t *Transport) Connect(ctx context.Context) error {
	if !t.opState.ToOpening() {
		if t.opState.IsOpened() {
			return ErrAlreadyConnected
		}

		return fmt.Errorf("%w: transport is %s", ErrConnect, t.opState.String())
	}

	t.metrics.incConnectCount()
	t.logger.Debug("serialport: opening port", "mode", t.cfg.String())

	port, err := t.cfg.opener(t.cfg.portName, t.cfg.Mode())
	if err != nil {
		t.opState.Set(ClosedState)
		t.logger.Error("serialport: failed to open port", "error", err)

		return fmt.Errorf("%w: open %s: %w", ErrConnect, t.cfg.portName, err)
	}

	if err := port.SetReadTimeout(t.cfg.pollInterval); err != nil {
		_ = port.Close()
		t.opState.Set(ClosedState)
		t.logger.Error("serialport: failed to configure port", "error", err)

		return fmt.Errorf("%w: configure %s: %w", ErrConnect, t.cfg.portName, err)
	}

	t.setPort(port)

	if t.cfg.handshakeExpect != "" {
		if err := t.handshake(ctx); err != nil {
			t.metrics.incHandshakeFailureCount()
			t.logger.Error("serialport: handshake failed", "error", err)
			_ = t.closePort()

			return fmt.Errorf("%w: %w", ErrHandshake, err)
		}
	}

	if !t.opState.ToOpened() {
		_ = t.closePort()
		return fmt.Errorf("%w: disconnected while connecting", ErrConnect)
	}
	t.logger.Info("serialport: connected", "mode", t.cfg.String())

	return nil
}

func (t *Transport) handshake(ctx context.Context) error {
	if t.cfg.settleDelay > 0 {
		timer := pool.GetTimer(t.cfg.settleDelay)
		select {
		case <-timer.C:
			pool.PutTimer(timer)
		case <-ctx.Done():
			pool.PutTimer(timer)
			return ctx.Err()
		}
	}

	probe := []byte(t.cfg.handshakeSend)
	n, err := t.Send(probe)
	if err != nil {
		return err
	}
	if n != len(probe) {
		return fmt.Errorf("probe %q: wrote %d of %d bytes", t.cfg.handshakeSend, n, len(probe))
	}

	reply, err := t.listen(ctx, []byte(t.cfg.handshakeExpect), t.cfg.handshakeTimeout)
	if err != nil {
		return err
	}

	t.logger.Debug("serialport: handshake reply", "reply", string(util.TrimCRLF(reply)))

	return nil
}

// Disconnect cancels any pending read and closes the port.
// It is safe to call on a closed transport.
func (t *Transport) Disconnect() error {
	if t.opState.IsClosed() {
		return nil
	}

	if !t.opState.ToClosing() {
		t.logger.Debug("serialport: disconnect already in progress", "opState", t.opState.String())
		return nil
	}

	err := t.closePort()
	if err != nil {
		t.logger.Warn("serialport: error during disconnect", "error", err)
	} else {
		t.logger.Info("serialport: disconnected")
	}

	return err
}

// IsConnected reports whether the port is open and accepts a zero-length write.
func (t *Transport) IsConnected() bool {
	if !t.opState.IsOpened() {
		return false
	}

	port, _ := t.getPort()
	if port == nil {
		return false
	}

	_, err := port.Write(nil)

	return err == nil
}

// Send writes p with a single write call and returns the number of bytes
// the port accepted, which may be fewer than len(p).
//
// A transport that is not connected or a failing write returns 0 and an
// error; the failure is also logged.
func (t *Transport) Send(p []byte) (int, error) {
	port, _ := t.getPort()
	if port == nil {
		t.logger.Error("serialport: send on closed port", "data", util.Printable(p))
		return 0, ErrNotConnected
	}

	n, err := port.Write(p)
	if err != nil {
		t.metrics.incSendErrorCount()
		t.logger.Error("serialport: write failed", "data", util.Printable(p), "error", err)

		return 0, fmt.Errorf("serialport: write: %w", err)
	}

	t.metrics.addBytesSent(n)
	t.logger.Debug("serialport: sent", "data", util.Printable(p[:n]), "bytes", n)

	return n, nil
}

// ListenUntil reads until delim is found or timeout elapses and returns the
// received bytes up to and including delim.
//
// It fails with ErrTimeout when the deadline passes, ErrConnClosed when the
// transport is disconnected during the wait and ctx.Err() when ctx is done.
// Bytes read before a failure are discarded. Anything received after delim
// in the same read is discarded too; callers flush afterwards.
func (t *Transport) ListenUntil(ctx context.Context, delim []byte, timeout time.Duration) ([]byte, error) {
	if !t.opState.IsOpened() {
		return nil, ErrNotConnected
	}

	return t.listen(ctx, delim, timeout)
}

func (t *Transport) listen(ctx context.Context, delim []byte, timeout time.Duration) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrEmptyDelimiter
	}

	port, connCtx := t.getPort()
	if port == nil {
		return nil, ErrNotConnected
	}

	if !t.reading.CompareAndSwap(false, true) {
		return nil, ErrReadInProgress
	}
	defer t.reading.Store(false)

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	var chunk [readChunkSize]byte
	poll := t.cfg.pollInterval
	readTimeout := poll
	defer func() {
		if readTimeout != poll {
			_ = port.SetReadTimeout(poll)
		}
	}()

	deadline := time.Now().Add(timeout)
	searchFrom := 0

	for {
		select {
		case <-ctx.Done():
			t.metrics.incReadCancelCount()
			t.logger.Debug("serialport: read cancelled", "error", ctx.Err(), "dropped", buf.Len())

			return nil, ctx.Err()
		case <-connCtx.Done():
			t.metrics.incReadCancelCount()
			t.logger.Debug("serialport: read interrupted by disconnect", "dropped", buf.Len())

			return nil, ErrConnClosed
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.metrics.incReadTimeoutCount()
			t.logger.Warn("serialport: read timeout", "timeout", timeout, "dropped", buf.Len())

			return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}

		// the last read never outlives the deadline
		want := min(poll, remaining)
		if want != readTimeout {
			if err := port.SetReadTimeout(want); err != nil {
				return nil, t.readError(connCtx, err)
			}
			readTimeout = want
		}

		n, err := port.Read(chunk[:])
		if n > 0 {
			t.metrics.addBytesReceived(n)
			buf.Write(chunk[:n])

			data := buf.Bytes()
			if idx := bytes.Index(data[searchFrom:], delim); idx >= 0 {
				end := searchFrom + idx + len(delim)
				out := util.CloneSlice(data[:end], 0)
				t.logger.Debug("serialport: received", "data", util.Printable(out), "bytes", len(out))

				return out, nil
			}
			searchFrom = max(0, len(data)-len(delim)+1)
		}

		if err != nil {
			return nil, t.readError(connCtx, err)
		}
	}
}

func (t *Transport) readError(connCtx context.Context, err error) error {
	if connCtx.Err() != nil {
		t.metrics.incReadCancelCount()
		return ErrConnClosed
	}

	t.logger.Error("serialport: read failed", "error", err)

	return fmt.Errorf("serialport: read: %w", err)
}

// FlushListen discards bytes the OS has received but nobody has read.
func (t *Transport) FlushListen() error {
	return t.flush("input", func(r bufferResetter) error { return r.ResetInputBuffer() })
}

// FlushSend discards bytes queued for output but not yet transmitted.
func (t *Transport) FlushSend() error {
	return t.flush("output", func(r bufferResetter) error { return r.ResetOutputBuffer() })
}

func (t *Transport) flush(which string, reset func(bufferResetter) error) error {
	port, _ := t.getPort()
	if port == nil {
		return nil
	}

	r, ok := port.(bufferResetter)
	if !ok {
		t.logger.Warn("serialport: port cannot purge buffers, flush skipped", "buffer", which)
		return nil
	}

	t.metrics.incFlushCount()
	if err := reset(r); err != nil {
		t.logger.Warn("serialport: flush failed", "buffer", which, "error", err)
		return fmt.Errorf("serialport: flush %s: %w", which, err)
	}

	return nil
}

func (t *Transport) getPort() (Port, context.Context) {
	t.portMu.RLock()
	defer t.portMu.RUnlock()

	return t.port, t.ctx
}

func (t *Transport) setPort(port Port) {
	t.portMu.Lock()
	defer t.portMu.Unlock()

	t.port = port
	t.ctx, t.ctxCancel = context.WithCancel(t.pctx)
}

// closePort detaches the port under the lock, then cancels the connection
// context and closes the port outside it so that a blocked read returns.
func (t *Transport) closePort() error {
	t.portMu.Lock()
	port := t.port
	cancel := t.ctxCancel
	t.port = nil
	t.ctxCancel = nil
	t.portMu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if port != nil {
		err = port.Close()
	}

	// Disconnect already moved to Closing; handshake failures come from Opening
	t.opState.ToClosing()
	if !t.opState.ToClosed() {
		t.logger.Warn("serialport: unexpected state on close", "opState", t.opState.String())
		t.opState.Set(ClosedState)
	}

	return err
}
