// Package simdevice emulates the firmware of an Agilis AG-UC2/AG-UC8
// controller on an in-memory serial port.
//
// The emulation covers the command set used by this module: motion and
// status commands per axis and channel, local/remote mode, the TE error
// register and the deferred MA reply. Motions complete after a configurable
// time; replies echo the mnemonic like the real controller.
package simdevice

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-agilis/internal/fakeport"
	"github.com/arloliu/go-agilis/serialport"
)

// Firmware error codes reported through TE.
const (
	errNone            = 0
	errUnknownCommand  = -1
	errAxisOutOfRange  = -2
	errWrongFormat     = -3
	errParamOutOfRange = -4
	errLocalMode       = -5
	errCurrentState    = -6
)

// Axis status codes reported through TS.
const (
	statusReady         = 0
	statusStepping      = 1
	statusJogging       = 2
	statusMovingToLimit = 3
)

const (
	DefaultVersion        = "AG-UC2 v2.2.1"
	DefaultMeasureLatency = 200 * time.Millisecond
	DefaultStepTime       = time.Millisecond
	DefaultMoveTime       = 100 * time.Millisecond

	defaultAmplitude = 16
	maxStepDelay     = 200000
	maxPosition      = 1000
	channelCount     = 4
)

type axisState struct {
	steps     int
	ampFwd    int
	ampBwd    int
	delay     int
	jog       int
	busy      int // status while now < busyUntil
	busyUntil time.Time
	atLimit   bool
	position  int // 0..1000, distance to limit in 1/1000 of travel
}

func newAxisState() *axisState {
	return &axisState{ampFwd: defaultAmplitude, ampBwd: defaultAmplitude, position: maxPosition / 2}
}

// Device is an emulated controller. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	version        string
	measureLatency time.Duration
	stepTime       time.Duration
	moveTime       time.Duration
	now            func() time.Time

	remote  bool
	channel int
	axes    map[int]*[2]*axisState // channel -> axis 1, 2
	lastErr int
	silent  bool

	port     *fakeport.Port
	commands []string
}

// Option configures a Device.
type Option func(*Device)

// WithVersion sets the VE reply.
func WithVersion(v string) Option {
	return func(d *Device) { d.version = v }
}

// WithMeasureLatency sets how long MA takes before it replies.
func WithMeasureLatency(latency time.Duration) Option {
	return func(d *Device) { d.measureLatency = latency }
}

// WithStepTime sets how long one PR step keeps the axis in the stepping state.
func WithStepTime(step time.Duration) Option {
	return func(d *Device) { d.stepTime = step }
}

// WithMoveTime sets how long MV and PA keep the axis moving.
func WithMoveTime(move time.Duration) Option {
	return func(d *Device) { d.moveTime = move }
}

// WithRemoteMode starts the device in remote mode instead of local mode.
func WithRemoteMode() Option {
	return func(d *Device) { d.remote = true }
}

// New creates a Device in its power-up state: local mode, channel 1.
func New(opts ...Option) *Device {
	d := &Device{
		version:        DefaultVersion,
		measureLatency: DefaultMeasureLatency,
		stepTime:       DefaultStepTime,
		moveTime:       DefaultMoveTime,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.reset(d.remote)

	return d
}

// Opener opens a fresh in-memory port wired to the device. The firmware
// state survives reconnects.
func (d *Device) Opener() serialport.Opener {
	return func(string, *serial.Mode) (serialport.Port, error) {
		p := fakeport.New(d.handle)

		d.mu.Lock()
		d.port = p
		d.mu.Unlock()

		return p, nil
	}
}

// Port returns the port handed out by the last Open, or nil.
func (d *Device) Port() *fakeport.Port {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.port
}

// SetSilent makes the device stop answering, as an unpowered controller
// behind a live USB bridge would.
func (d *Device) SetSilent(silent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.silent = silent
}

// Commands returns every command line received, in order.
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.commands...)
}

// Steps returns the step counter of axis on the current channel.
func (d *Device) Steps(axis int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.axis(axis).steps
}

// IsRemote reports whether the device is in remote mode.
func (d *Device) IsRemote() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.remote
}

// Channel returns the selected channel.
func (d *Device) Channel() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.channel
}

// SetLimit marks axis on the current channel as sitting on its limit switch.
func (d *Device) SetLimit(axis int, atLimit bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.axis(axis).atLimit = atLimit
}

func (d *Device) reset(remote bool) {
	d.remote = remote
	d.channel = 1
	d.lastErr = errNone
	d.axes = make(map[int]*[2]*axisState, channelCount)
	for ch := 1; ch <= channelCount; ch++ {
		d.axes[ch] = &[2]*axisState{newAxisState(), newAxisState()}
	}
}

func (d *Device) axis(axis int) *axisState {
	return d.axes[d.channel][axis-1]
}

func (d *Device) status(a *axisState) int {
	if a.jog != 0 {
		return statusJogging
	}
	if a.busy != statusReady && d.now().Before(a.busyUntil) {
		return a.busy
	}

	return statusReady
}

func (d *Device) handle(p *fakeport.Port, line string) {
	d.mu.Lock()
	d.commands = append(d.commands, line)
	reply, delay := d.execute(strings.TrimSpace(line))
	silent := d.silent
	d.mu.Unlock()

	if silent || reply == "" {
		return
	}
	if delay > 0 {
		p.DeliverAfter(delay, []byte(reply+"\r\n"))
		return
	}
	p.DeliverString(reply + "\r\n")
}

// execute runs one command and returns the reply line without terminator
// and how long to hold it back. It sets lastErr except for TE itself.
func (d *Device) execute(line string) (string, time.Duration) {
	axisPart, mnemonic, param, ok := splitCommand(line)
	if !ok {
		d.lastErr = errUnknownCommand
		return "", 0
	}

	if mnemonic == "TE" {
		code := d.lastErr
		d.lastErr = errNone

		return "TE" + strconv.Itoa(code), 0
	}

	if axisCommand(mnemonic) {
		axis, err := strconv.Atoi(axisPart)
		if err != nil || axis < 1 || axis > 2 {
			d.lastErr = errAxisOutOfRange
			return "", 0
		}

		return d.executeAxis(axis, mnemonic, param)
	}

	if axisPart != "" {
		d.lastErr = errAxisOutOfRange
		return "", 0
	}

	return d.executeGlobal(mnemonic, param)
}

func (d *Device) executeGlobal(mnemonic, param string) (string, time.Duration) {
	d.lastErr = errNone

	switch mnemonic {
	case "VE":
		return d.version, 0
	case "ML":
		d.remote = false
	case "MR":
		d.remote = true
	case "RS":
		d.reset(false)
	case "PH":
		var v int
		if d.axis(1).atLimit {
			v |= 1
		}
		if d.axis(2).atLimit {
			v |= 2
		}

		return "PH" + strconv.Itoa(v), 0
	case "CC":
		if param == "?" {
			return "CC" + strconv.Itoa(d.channel), 0
		}
		ch, err := strconv.Atoi(param)
		if err != nil {
			d.lastErr = errWrongFormat
			return "", 0
		}
		if ch < 1 || ch > channelCount {
			d.lastErr = errParamOutOfRange
			return "", 0
		}
		if !d.remote {
			d.lastErr = errLocalMode
			return "", 0
		}
		d.channel = ch
	default:
		d.lastErr = errUnknownCommand
	}

	return "", 0
}

func (d *Device) executeAxis(axis int, mnemonic, param string) (string, time.Duration) {
	a := d.axis(axis)
	prefix := strconv.Itoa(axis) + mnemonic
	d.lastErr = errNone

	// queries are allowed in local mode
	switch {
	case mnemonic == "TP":
		return prefix + strconv.Itoa(a.steps), 0
	case mnemonic == "TS":
		return prefix + strconv.Itoa(d.status(a)), 0
	case mnemonic == "DL" && param == "?":
		return prefix + strconv.Itoa(a.delay), 0
	case mnemonic == "JA" && param == "?":
		return prefix + strconv.Itoa(a.jog), 0
	case mnemonic == "SU" && param == "?":
		return prefix + strconv.Itoa(a.ampFwd), 0
	case mnemonic == "SU" && param == "-?":
		return prefix + strconv.Itoa(-a.ampBwd), 0
	}

	if !d.remote {
		d.lastErr = errLocalMode
		return "", 0
	}

	if mnemonic == "ST" {
		a.jog = 0
		a.busy = statusReady

		return "", 0
	}
	if mnemonic == "ZP" {
		a.steps = 0
		return "", 0
	}
	if mnemonic == "MA" {
		if d.status(a) != statusReady {
			d.lastErr = errCurrentState
			return "", 0
		}
		a.busy = statusMovingToLimit
		a.busyUntil = d.now().Add(d.measureLatency)

		return prefix + strconv.Itoa(a.position), d.measureLatency
	}

	n, err := strconv.Atoi(param)
	if err != nil {
		d.lastErr = errWrongFormat
		return "", 0
	}

	switch mnemonic {
	case "DL":
		if n < 0 || n > maxStepDelay {
			d.lastErr = errParamOutOfRange
			return "", 0
		}
		a.delay = n
	case "SU":
		if n == 0 || n < -50 || n > 50 {
			d.lastErr = errParamOutOfRange
			return "", 0
		}
		if n > 0 {
			a.ampFwd = n
		} else {
			a.ampBwd = -n
		}
	case "JA":
		if n < -4 || n > 4 {
			d.lastErr = errParamOutOfRange
			return "", 0
		}
		a.jog = n
	case "PR":
		if d.status(a) != statusReady {
			d.lastErr = errCurrentState
			return "", 0
		}
		a.steps += n
		a.busy = statusStepping
		a.busyUntil = d.now().Add(time.Duration(abs(n)) * d.stepTime)
	case "MV":
		if n < -4 || n > 4 {
			d.lastErr = errParamOutOfRange
			return "", 0
		}
		if d.status(a) != statusReady {
			d.lastErr = errCurrentState
			return "", 0
		}
		a.busy = statusMovingToLimit
		a.busyUntil = d.now().Add(d.moveTime)
		a.atLimit = n != 0
		if n > 0 {
			a.position = maxPosition
		} else if n < 0 {
			a.position = 0
		}
	case "PA":
		if n < 0 || n > maxPosition {
			d.lastErr = errParamOutOfRange
			return "", 0
		}
		if d.status(a) != statusReady {
			d.lastErr = errCurrentState
			return "", 0
		}
		a.busy = statusMovingToLimit
		a.busyUntil = d.now().Add(d.moveTime)
		a.position = n
	}

	return "", 0
}

func axisCommand(mnemonic string) bool {
	switch mnemonic {
	case "DL", "JA", "MA", "MV", "PA", "PR", "ST", "SU", "TP", "TS", "ZP":
		return true
	default:
		return false
	}
}

// splitCommand splits "2SU-25" into "2", "SU", "-25".
func splitCommand(line string) (axis, mnemonic, param string, ok bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if len(line) < i+2 {
		return "", "", "", false
	}

	mnemonic = strings.ToUpper(line[i : i+2])
	for _, c := range mnemonic {
		if c < 'A' || c > 'Z' {
			return "", "", "", false
		}
	}

	return line[:i], mnemonic, line[i+2:], true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
