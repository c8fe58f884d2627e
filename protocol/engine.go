package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-agilis/internal/util"
	"github.com/arloliu/go-agilis/logger"
	"github.com/arloliu/go-agilis/serialport"
)

const crlf = "\r\n"

var (
	ErrSendFailure  = errors.New("protocol: send failure")
	ErrEmptyCommand = errors.New("protocol: empty command")
	ErrEngineClosed = errors.New("protocol: engine closed")

	// Transport errors surfaced unchanged by the engine.
	ErrNotConnected = serialport.ErrNotConnected
	ErrConnClosed   = serialport.ErrConnClosed
	ErrTimeout      = serialport.ErrTimeout
)

// Engine runs Agilis command/response cycles over one serial connection.
//
// All operations that touch the connection, the pacer or the configuration
// hold a single engine lock, so cycles run strictly in issue order. The only
// exception is the reply wait of SendDeferred, which runs on its own
// goroutine after the lock is released.
type Engine struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	cfg       *Config
	logger    logger.Logger

	mu          sync.Mutex
	transport   *serialport.Transport
	portName    string
	profile     Profile
	pacer       *Pacer
	commandTerm time.Duration

	closed atomic.Bool
	bgWG   sync.WaitGroup

	metrics Metrics
}

// NewEngine creates a disconnected Engine. Cancelling ctx aborts outstanding
// deferred reads.
func NewEngine(ctx context.Context, cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("protocol: config is nil")
	}

	e := &Engine{
		cfg:         cfg,
		logger:      logger.Detach(cfg.logger),
		pacer:       NewPacer(),
		commandTerm: cfg.commandTerm,
	}
	e.ctx, e.ctxCancel = context.WithCancel(ctx)

	return e, nil
}

// Connect opens portName with the line parameters of profile and runs the
// profile handshake.
func (e *Engine) Connect(ctx context.Context, portName string, profile Profile) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport != nil && e.transport.State() == serialport.OpenedState {
		return serialport.ErrAlreadyConnected
	}

	opts := append(profile.transportOptions(), serialport.WithLogger(e.logger))
	opts = append(opts, e.cfg.transportOpts...)

	tcfg, err := serialport.NewConfig(portName, opts...)
	if err != nil {
		return err
	}

	t, err := serialport.New(e.ctx, tcfg)
	if err != nil {
		return err
	}

	e.logger.Info("protocol: connecting", "port", portName, "profile", profile.Name)
	if err := t.Connect(ctx); err != nil {
		e.logger.Error("protocol: connect failed", "port", portName, "profile", profile.Name, "error", err)
		return err
	}

	e.transport = t
	e.portName = tcfg.PortName()
	e.profile = profile
	e.pacer.Start()

	return nil
}

// Disconnect closes the connection. A deferred read in progress resolves
// with ErrConnClosed. Calling Disconnect while disconnected is a no-op.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.disconnect()
}

func (e *Engine) disconnect() error {
	if e.transport == nil {
		return nil
	}

	err := e.transport.Disconnect()
	e.transport = nil

	return err
}

// PortName returns the name of the port last connected, or "".
func (e *Engine) PortName() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.portName
}

// Profile returns the profile of the last successful Connect.
func (e *Engine) Profile() Profile {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.profile
}

// IsConnected runs a version query and reports whether the device answered.
// An open port alone is not enough; the device must reply.
func (e *Engine) IsConnected(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport == nil || !e.transport.IsConnected() {
		return false
	}

	reply, err := e.query(ctx, "VE", e.cfg.replyTimeout)
	if err != nil {
		e.logger.Warn("protocol: connectivity probe failed", "error", err)
		return false
	}
	e.logger.Debug("protocol: connectivity probe", "version", util.TrimCRLFString(reply))

	return true
}

// SendCommand paces, flushes both port buffers and writes cmd + "\r\n".
//
// The pacer restarts after the write attempt whether or not it succeeded.
// A write that does not take the whole frame fails with ErrSendFailure.
func (e *Engine) SendCommand(ctx context.Context, cmd string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sendCommand(ctx, cmd)
}

// AwaitResponse waits up to timeout for a "\r\n"-terminated reply, then
// flushes the input buffer whether or not a reply arrived. A zero timeout
// uses the configured reply timeout.
func (e *Engine) AwaitResponse(ctx context.Context, timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if timeout <= 0 {
		timeout = e.cfg.replyTimeout
	}

	return e.awaitResponse(ctx, e.transport, timeout)
}

// Exec sends a command that has no reply.
func (e *Engine) Exec(ctx context.Context, cmd string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sendCommand(ctx, cmd)
}

// Query sends cmd and waits for its reply within a single lock hold. When
// the send fails no read is attempted. A zero timeout uses the configured
// reply timeout.
func (e *Engine) Query(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if timeout <= 0 {
		timeout = e.cfg.replyTimeout
	}

	return e.query(ctx, cmd, timeout)
}

// QueryInt sends cmd and parses the integer that follows mnemonic in the reply.
func (e *Engine) QueryInt(ctx context.Context, cmd, mnemonic string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reply, err := e.query(ctx, cmd, e.cfg.replyTimeout)
	if err != nil {
		return 0, err
	}

	return e.parse(reply, mnemonic)
}

// Version returns the firmware version string without its line terminator.
func (e *Engine) Version(ctx context.Context) (string, error) {
	reply, err := e.Query(ctx, "VE", 0)
	if err != nil {
		return "", err
	}

	return util.TrimCRLFString(reply), nil
}

// SendDeferred sends cmd now and collects its integer reply in the
// background.
//
// The send runs under the engine lock and its failure is returned directly,
// with no Pending. The reply wait then runs without the lock for up to
// timeout (the long reply timeout when zero), so SendDeferred returns as
// soon as the command is written. The caller must not issue other commands
// on the connection until the Pending resolves.
func (e *Engine) SendDeferred(ctx context.Context, cmd, mnemonic string, timeout time.Duration) (*Pending, error) {
	if timeout <= 0 {
		timeout = e.cfg.longReplyTimeout
	}

	e.mu.Lock()
	if err := e.sendCommand(ctx, cmd); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	t := e.transport
	p := newPending(cmd)
	e.metrics.incDeferredCount()
	e.bgWG.Add(1)
	e.mu.Unlock()

	e.logger.Info("protocol: waiting for deferred reply", "cmd", cmd, "timeout", timeout)

	go func() {
		defer e.bgWG.Done()

		reply, err := e.awaitResponse(e.ctx, t, timeout)
		if err != nil {
			if errors.Is(err, serialport.ErrNotConnected) {
				err = ErrConnClosed
			}
			p.resolve(0, "", err)
			return
		}

		v, err := e.parse(reply, mnemonic)
		if err == nil {
			e.logger.Info("protocol: deferred reply", "cmd", cmd, "value", v)
		}
		p.resolve(v, reply, err)
	}()

	return p, nil
}

// SetCommandTerm changes the minimum gap between two sends. Zero disables pacing.
func (e *Engine) SetCommandTerm(d time.Duration) error {
	if err := validateCommandTerm(d); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.commandTerm = d
	e.logger.Info("protocol: command term set", "commandTerm", d)

	return nil
}

// CommandTerm returns the minimum gap between two sends.
func (e *Engine) CommandTerm() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.commandTerm
}

// SetLogLevel changes the threshold of the engine logger. The logger passed
// in the config, and other engines built from it, keep their own level.
func (e *Engine) SetLogLevel(level logger.Level) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.SetLevel(level)
	e.logger.Info("protocol: log level set", "level", level.String())
}

// Logger returns the engine logger. Its level is private to the engine and
// follows SetLogLevel.
func (e *Engine) Logger() logger.Logger { return e.logger }

// Metrics returns the engine counters.
func (e *Engine) Metrics() *Metrics { return &e.metrics }

// Close disconnects, cancels outstanding deferred reads and waits for their
// goroutines to finish. The engine cannot be reconnected afterwards.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.ctxCancel()

	e.mu.Lock()
	err := e.disconnect()
	e.mu.Unlock()

	e.bgWG.Wait()

	return err
}

func (e *Engine) query(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if err := e.sendCommand(ctx, cmd); err != nil {
		return "", err
	}

	return e.awaitResponse(ctx, e.transport, timeout)
}

func (e *Engine) sendCommand(ctx context.Context, cmd string) error {
	if cmd == "" {
		return ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t := e.transport
	if t == nil {
		e.metrics.incSendFailureCount()
		e.logger.Error("protocol: send on disconnected engine", "cmd", cmd)

		return fmt.Errorf("%w: %q: %w", ErrSendFailure, cmd, ErrNotConnected)
	}

	if waited := e.pacer.Wait(e.commandTerm); waited > 0 {
		e.metrics.incPacingWaitCount()
		e.logger.Debug("protocol: paced send", "cmd", cmd, "waited", waited)
	}

	if err := t.FlushSend(); err != nil {
		e.logger.Warn("protocol: output flush failed", "error", err)
	}
	// a reply that arrived after the previous read gave up must not be
	// taken as the answer to this command
	if err := t.FlushListen(); err != nil {
		e.logger.Warn("protocol: input flush failed", "error", err)
	}

	frame := cmd + crlf
	n, err := t.Send([]byte(frame))
	e.pacer.Start()
	e.metrics.incCommandCount()

	if err != nil {
		e.metrics.incSendFailureCount()
		return fmt.Errorf("%w: %q: %w", ErrSendFailure, cmd, err)
	}
	if n != len(frame) {
		e.metrics.incSendFailureCount()
		e.logger.Error("protocol: incomplete write", "cmd", cmd, "written", n, "expected", len(frame))

		return fmt.Errorf("%w: %q: wrote %d of %d bytes", ErrSendFailure, cmd, n, len(frame))
	}

	e.logger.Debug("protocol: command sent", "cmd", cmd)

	return nil
}

func (e *Engine) awaitResponse(ctx context.Context, t *serialport.Transport, timeout time.Duration) (string, error) {
	if t == nil {
		e.metrics.incReplyFailureCount()
		return "", ErrNotConnected
	}

	reply, err := t.ListenUntil(ctx, []byte(crlf), timeout)
	if ferr := t.FlushListen(); ferr != nil {
		e.logger.Warn("protocol: input flush failed", "error", ferr)
	}

	if err != nil {
		e.metrics.incReplyFailureCount()
		e.logger.Error("protocol: no response", "timeout", timeout, "error", err)

		return "", err
	}

	e.metrics.incReplyCount()
	e.logger.Debug("protocol: got response", "reply", util.TrimCRLFString(string(reply)))

	return string(reply), nil
}

func (e *Engine) parse(reply, mnemonic string) (int, error) {
	v, err := ParseIntegerReply(reply, mnemonic)
	if err != nil {
		e.metrics.incParseFailureCount()
		e.logger.Error("protocol: invalid reply", "mnemonic", mnemonic, "error", err)

		return 0, err
	}

	return v, nil
}
