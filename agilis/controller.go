package agilis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-agilis/logger"
	"github.com/arloliu/go-agilis/protocol"
)

const (
	MinAxis = 1
	MaxAxis = 2

	MinChannel = 0
	MaxChannel = 4

	MaxAmplitude = 50
	MaxStepDelay = 200000 // in units of 10 µs, 2 s
	MaxPosition  = 1000   // 1/1000 of the total travel
)

var (
	ErrInvalidAxis           = errors.New("agilis: axis must be 1 or 2")
	ErrInvalidChannel        = errors.New("agilis: channel must be between 0 and 4")
	ErrInvalidAmplitude      = errors.New("agilis: amplitude must be between -50 and 50, excluding 0")
	ErrInvalidJogSpeed       = errors.New("agilis: jog speed must be between 0 and 4")
	ErrInvalidParameter      = errors.New("agilis: parameter out of range")
	ErrMeasurementInProgress = errors.New("agilis: position measurement in progress")
	ErrUnexpectedReply       = errors.New("agilis: unexpected reply value")
)

// Controller drives one Agilis controller through a protocol.Engine.
//
// Every method validates its arguments before anything is written. While a
// position measurement is outstanding, every method that talks to the
// device fails with ErrMeasurementInProgress. The measurement stops
// blocking other commands the moment it resolves, so a command issued right
// after Measurement.Wait returns goes through.
type Controller struct {
	engine *protocol.Engine
	logger logger.Logger

	measureMu    sync.RWMutex // write-held by MeasurePosition, read-held around every other exchange
	measurements *xsync.MapOf[int, *Measurement]
}

// New creates a disconnected Controller with its own engine.
func New(ctx context.Context, cfg *protocol.Config) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("agilis: config is nil")
	}

	engine, err := protocol.NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Controller{
		engine:       engine,
		logger:       engine.Logger(),
		measurements: xsync.NewMapOf[int, *Measurement](),
	}, nil
}

// Engine returns the underlying protocol engine.
func (c *Controller) Engine() *protocol.Engine { return c.engine }

// Connect opens portName with the given profile.
func (c *Controller) Connect(ctx context.Context, portName string, profile protocol.Profile) error {
	c.logger.Info("agilis: connecting", "port", portName, "profile", profile.Name)
	if err := c.engine.Connect(ctx, portName, profile); err != nil {
		return err
	}
	c.logger.Info("agilis: connected", "port", portName, "profile", profile.Name)

	return nil
}

// ConnectUSB connects through the USB virtual COM port (921600 baud).
func (c *Controller) ConnectUSB(ctx context.Context, portName string) error {
	return c.Connect(ctx, portName, protocol.USBProfile)
}

// ConnectRS232 connects through the RS-232 interface (115200 baud).
func (c *Controller) ConnectRS232(ctx context.Context, portName string) error {
	return c.Connect(ctx, portName, protocol.RS232Profile)
}

// Disconnect closes the connection. Outstanding measurements resolve with
// an error.
func (c *Controller) Disconnect() error {
	c.logger.Info("agilis: disconnecting")
	return c.engine.Disconnect()
}

// Close disconnects and releases the engine.
func (c *Controller) Close() error {
	return c.engine.Close()
}

// IsConnected reports whether the controller answers a version query.
func (c *Controller) IsConnected(ctx context.Context) bool {
	c.measureMu.RLock()
	defer c.measureMu.RUnlock()

	if c.busy() != nil {
		// the measurement reply is proof enough; do not disturb it
		return true
	}

	return c.engine.IsConnected(ctx)
}

// PortName returns the port of the last connection.
func (c *Controller) PortName() string { return c.engine.PortName() }

// SetCommandTerm sets the minimum gap between two commands.
func (c *Controller) SetCommandTerm(d time.Duration) error { return c.engine.SetCommandTerm(d) }

// CommandTerm returns the minimum gap between two commands.
func (c *Controller) CommandTerm() time.Duration { return c.engine.CommandTerm() }

// SetLogLevel changes the log threshold.
func (c *Controller) SetLogLevel(level logger.Level) { c.engine.SetLogLevel(level) }

// Metrics returns the engine counters.
func (c *Controller) Metrics() *protocol.Metrics { return c.engine.Metrics() }

// SetStepDelay sets the delay between step pulses in units of 10 µs.
func (c *Controller) SetStepDelay(ctx context.Context, axis, delay int) error {
	if err := validateAxis(axis); err != nil {
		return err
	}
	if delay < 0 || delay > MaxStepDelay {
		return fmt.Errorf("%w: step delay %d not in [0, %d]", ErrInvalidParameter, delay, MaxStepDelay)
	}

	c.logger.Info("agilis: set step delay", "axis", axis, "delay", delay)

	return c.exec(ctx, axisCmd(axis, "DL")+strconv.Itoa(delay))
}

// StepDelay returns the step delay of axis.
func (c *Controller) StepDelay(ctx context.Context, axis int) (int, error) {
	if err := validateAxis(axis); err != nil {
		return 0, err
	}

	return c.queryInt(ctx, axisCmd(axis, "DL")+"?", axisCmd(axis, "DL"))
}

// StartJog starts a jog motion. JogStop stops the axis.
func (c *Controller) StartJog(ctx context.Context, axis int, speed JogSpeed, forward bool) error {
	if err := validateAxis(axis); err != nil {
		return err
	}
	if !speed.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidJogSpeed, speed)
	}

	c.logger.Info("agilis: start jog", "axis", axis, "speed", speed.String(), "forward", forward)

	return c.exec(ctx, axisCmd(axis, "JA")+signed(forward, int(speed)))
}

// JogMode returns the current jog speed and direction of axis.
func (c *Controller) JogMode(ctx context.Context, axis int) (JogSpeed, bool, error) {
	if err := validateAxis(axis); err != nil {
		return 0, false, err
	}

	v, err := c.queryInt(ctx, axisCmd(axis, "JA")+"?", axisCmd(axis, "JA"))
	if err != nil {
		return 0, false, err
	}

	forward := v >= 0
	if v < 0 {
		v = -v
	}

	return JogSpeed(v), forward, nil
}

// MoveToLimit jogs axis until it reaches a limit switch.
func (c *Controller) MoveToLimit(ctx context.Context, axis int, forward bool, speed JogSpeed) error {
	if err := validateAxis(axis); err != nil {
		return err
	}
	if !speed.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidJogSpeed, speed)
	}

	c.logger.Info("agilis: move to limit", "axis", axis, "forward", forward, "speed", speed.String())

	return c.exec(ctx, axisCmd(axis, "MV")+signed(forward, int(speed)))
}

// AbsoluteMove moves axis to target, given in 1/1000 of the total travel.
// The motion can take up to two minutes.
func (c *Controller) AbsoluteMove(ctx context.Context, axis, target int) error {
	if err := validateAxis(axis); err != nil {
		return err
	}
	if target < 0 || target > MaxPosition {
		return fmt.Errorf("%w: position %d not in [0, %d]", ErrInvalidParameter, target, MaxPosition)
	}

	c.logger.Info("agilis: absolute move", "axis", axis, "target", target)

	return c.exec(ctx, axisCmd(axis, "PA")+strconv.Itoa(target))
}

// RelativeMove moves axis by steps; negative values move backwards.
func (c *Controller) RelativeMove(ctx context.Context, axis, steps int) error {
	if err := validateAxis(axis); err != nil {
		return err
	}

	c.logger.Info("agilis: relative move", "axis", axis, "steps", steps)

	return c.exec(ctx, axisCmd(axis, "PR")+strconv.Itoa(steps))
}

// LimitStatus reports which axes of the current channel sit on a limit switch.
func (c *Controller) LimitStatus(ctx context.Context) (axis1, axis2 bool, err error) {
	v, err := c.queryInt(ctx, "PH", "PH")
	if err != nil {
		return false, false, err
	}
	if v < 0 || v > 3 {
		return false, false, fmt.Errorf("%w: PH%d", ErrUnexpectedReply, v)
	}

	return v&1 != 0, v&2 != 0, nil
}

// SetLocalMode enables the front panel buttons and disables motion commands.
func (c *Controller) SetLocalMode(ctx context.Context) error {
	c.logger.Info("agilis: set local mode")
	return c.exec(ctx, "ML")
}

// SetRemoteMode enables motion commands and disables the front panel.
func (c *Controller) SetRemoteMode(ctx context.Context) error {
	c.logger.Info("agilis: set remote mode")
	return c.exec(ctx, "MR")
}

// Reset restores the power-up settings; the controller returns to local mode.
func (c *Controller) Reset(ctx context.Context) error {
	c.logger.Info("agilis: reset controller")
	return c.exec(ctx, "RS")
}

// Stop stops any motion of axis.
func (c *Controller) Stop(ctx context.Context, axis int) error {
	if err := validateAxis(axis); err != nil {
		return err
	}

	c.logger.Info("agilis: stop", "axis", axis)

	return c.exec(ctx, axisCmd(axis, "ST"))
}

// SetStepAmplitude sets the step amplitude of axis. A positive amplitude
// applies to forward steps and a negative one to backward steps.
func (c *Controller) SetStepAmplitude(ctx context.Context, axis, amplitude int) error {
	if err := validateAxis(axis); err != nil {
		return err
	}
	if amplitude == 0 || amplitude < -MaxAmplitude || amplitude > MaxAmplitude {
		return fmt.Errorf("%w: %d", ErrInvalidAmplitude, amplitude)
	}

	c.logger.Info("agilis: set step amplitude", "axis", axis, "amplitude", amplitude)

	return c.exec(ctx, axisCmd(axis, "SU")+strconv.Itoa(amplitude))
}

// StepAmplitude returns the step amplitude of axis in the given direction,
// always as a positive number.
func (c *Controller) StepAmplitude(ctx context.Context, axis int, forward bool) (int, error) {
	if err := validateAxis(axis); err != nil {
		return 0, err
	}

	query := axisCmd(axis, "SU") + "?"
	if !forward {
		query = axisCmd(axis, "SU") + "-?"
	}

	v, err := c.queryInt(ctx, query, axisCmd(axis, "SU"))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v = -v
	}

	return v, nil
}

// LastError returns the error code of the previous command and clears it.
func (c *Controller) LastError(ctx context.Context) (ErrorCode, error) {
	v, err := c.queryInt(ctx, "TE", "TE")
	if err != nil {
		return 0, err
	}

	code := ErrorCode(v)
	c.logger.Info("agilis: previous command error", "code", v, "text", code.Text())

	return code, nil
}

// CheckError queries TE and returns a *DeviceError for a non-zero code.
func (c *Controller) CheckError(ctx context.Context) error {
	code, err := c.LastError(ctx)
	if err != nil {
		return err
	}
	if code != NoError {
		return &DeviceError{Code: code}
	}

	return nil
}

// Steps returns the step counter of axis: forward steps minus backward
// steps since power-up or the last ZeroPosition.
func (c *Controller) Steps(ctx context.Context, axis int) (int, error) {
	if err := validateAxis(axis); err != nil {
		return 0, err
	}

	return c.queryInt(ctx, axisCmd(axis, "TP"), axisCmd(axis, "TP"))
}

// AxisStatus returns the motion state of axis.
func (c *Controller) AxisStatus(ctx context.Context, axis int) (AxisStatus, error) {
	if err := validateAxis(axis); err != nil {
		return 0, err
	}

	v, err := c.queryInt(ctx, axisCmd(axis, "TS"), axisCmd(axis, "TS"))
	if err != nil {
		return 0, err
	}

	status := AxisStatus(v)
	c.logger.Debug("agilis: axis status", "axis", axis, "status", status.String())

	return status, nil
}

// FirmwareVersion returns the controller's version banner.
func (c *Controller) FirmwareVersion(ctx context.Context) (string, error) {
	c.measureMu.RLock()
	defer c.measureMu.RUnlock()

	if err := c.busy(); err != nil {
		return "", err
	}

	version, err := c.engine.Version(ctx)
	if err != nil {
		return "", err
	}
	c.logger.Info("agilis: firmware version", "version", version)

	return version, nil
}

// ZeroPosition resets the step counter of axis.
func (c *Controller) ZeroPosition(ctx context.Context, axis int) error {
	if err := validateAxis(axis); err != nil {
		return err
	}

	c.logger.Info("agilis: zero position", "axis", axis)

	return c.exec(ctx, axisCmd(axis, "ZP"))
}

// ChangeChannel selects the channel addressed by subsequent axis commands.
func (c *Controller) ChangeChannel(ctx context.Context, channel int) error {
	if channel < MinChannel || channel > MaxChannel {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	c.logger.Info("agilis: change channel", "channel", channel)

	return c.exec(ctx, "CC"+strconv.Itoa(channel))
}

// Channel returns the selected channel.
func (c *Controller) Channel(ctx context.Context) (int, error) {
	return c.queryInt(ctx, "CC?", "CC")
}

func (c *Controller) exec(ctx context.Context, cmd string) error {
	c.measureMu.RLock()
	defer c.measureMu.RUnlock()

	if err := c.busy(); err != nil {
		return err
	}

	return c.engine.Exec(ctx, cmd)
}

func (c *Controller) queryInt(ctx context.Context, cmd, mnemonic string) (int, error) {
	c.measureMu.RLock()
	defer c.measureMu.RUnlock()

	if err := c.busy(); err != nil {
		return 0, err
	}

	return c.engine.QueryInt(ctx, cmd, mnemonic)
}

// busy reports the first unresolved measurement. Resolved entries are
// dropped here rather than left for the watcher goroutine.
func (c *Controller) busy() error {
	var axis int
	c.measurements.Range(func(a int, m *Measurement) bool {
		if m.resolved() {
			c.forget(m)
			return true
		}
		axis = a
		return false
	})
	if axis != 0 {
		return fmt.Errorf("%w on axis %d", ErrMeasurementInProgress, axis)
	}

	return nil
}

func validateAxis(axis int) error {
	if axis < MinAxis || axis > MaxAxis {
		return fmt.Errorf("%w: got %d", ErrInvalidAxis, axis)
	}

	return nil
}

func axisCmd(axis int, mnemonic string) string {
	return strconv.Itoa(axis) + mnemonic
}

func signed(forward bool, v int) string {
	if !forward && v != 0 {
		return "-" + strconv.Itoa(v)
	}

	return strconv.Itoa(v)
}
