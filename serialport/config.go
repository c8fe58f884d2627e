package serialport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-agilis/logger"
)

const (
	DefaultBaudRate         = 921600
	DefaultDataBits         = 8
	DefaultSettleDelay      = 100 * time.Millisecond
	DefaultHandshakeTimeout = 1000 * time.Millisecond
	DefaultPollInterval     = 10 * time.Millisecond
)

const (
	MinPollInterval = 1 * time.Millisecond
	MaxPollInterval = 500 * time.Millisecond

	MaxSettleDelay      = 10 * time.Second
	MaxHandshakeTimeout = 60 * time.Second
)

// Config holds the line parameters and connect-time behaviour of a Transport.
type Config struct {
	portName string

	baudRate int
	dataBits int
	stopBits StopBits
	parity   Parity

	// handshake is skipped when handshakeExpect is empty.
	handshakeSend    string
	handshakeExpect  string
	handshakeTimeout time.Duration

	settleDelay  time.Duration
	pollInterval time.Duration

	opener Opener
	logger logger.Logger
}

// NewConfig creates a transport configuration for the named serial port.
//
// The defaults are 921600 baud, 8 data bits, one stop bit, no parity and no
// handshake. opts are applied in order.
func NewConfig(portName string, opts ...ConnOption) (*Config, error) {
	portName = strings.TrimSpace(portName)
	if portName == "" {
		return nil, errors.New("serialport: empty port name")
	}

	cfg := &Config{
		portName:         portName,
		baudRate:         DefaultBaudRate,
		dataBits:         DefaultDataBits,
		stopBits:         OneStopBit,
		parity:           NoParity,
		handshakeTimeout: DefaultHandshakeTimeout,
		settleDelay:      DefaultSettleDelay,
		pollInterval:     DefaultPollInterval,
		opener:           OpenSerial,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// PortName returns the OS name of the serial device.
func (cfg *Config) PortName() string { return cfg.portName }

// BaudRate returns the configured baud rate.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// DataBits returns the configured byte size.
func (cfg *Config) DataBits() int { return cfg.dataBits }

// StopBits returns the configured stop bits.
func (cfg *Config) StopBits() StopBits { return cfg.stopBits }

// Parity returns the configured parity.
func (cfg *Config) Parity() Parity { return cfg.parity }

// HandshakeSend returns the probe written after the settle delay.
func (cfg *Config) HandshakeSend() string { return cfg.handshakeSend }

// HandshakeExpect returns the suffix the handshake reply must contain.
func (cfg *Config) HandshakeExpect() string { return cfg.handshakeExpect }

// HandshakeTimeout returns how long Connect waits for the handshake reply.
func (cfg *Config) HandshakeTimeout() time.Duration { return cfg.handshakeTimeout }

// SettleDelay returns the pause between opening the port and the handshake probe.
func (cfg *Config) SettleDelay() time.Duration { return cfg.settleDelay }

// PollInterval returns the per-read timeout used by ListenUntil.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// Logger returns the configured logger.
func (cfg *Config) Logger() logger.Logger { return cfg.logger }

// Mode returns the go.bug.st/serial mode for the configured line parameters.
func (cfg *Config) Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: cfg.dataBits,
		Parity:   cfg.parity,
		StopBits: cfg.stopBits,
	}
}

func (cfg *Config) String() string {
	return fmt.Sprintf("%s@%d/%d%s%s", cfg.portName, cfg.baudRate, cfg.dataBits, parityLetter(cfg.parity), stopBitsText(cfg.stopBits))
}

func parityLetter(p Parity) string {
	switch p {
	case NoParity:
		return "N"
	case OddParity:
		return "O"
	case EvenParity:
		return "E"
	case MarkParity:
		return "M"
	case SpaceParity:
		return "S"
	default:
		return "?"
	}
}

func stopBitsText(s StopBits) string {
	switch s {
	case OneStopBit:
		return "1"
	case OnePointFiveStopBits:
		return "1.5"
	case TwoStopBits:
		return "2"
	default:
		return "?"
	}
}

// ConnOption configures a Config.
type ConnOption interface {
	apply(*Config) error
}

type connOptFunc func(*Config) error

func (f connOptFunc) apply(cfg *Config) error {
	return f(cfg)
}

// WithBaudRate sets the baud rate. The value must be positive.
func WithBaudRate(baud int) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("serialport: invalid baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithDataBits sets the byte size, 5 to 8 bits.
func WithDataBits(bits int) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("serialport: data bits %d out of range [5, 8]", bits)
		}
		cfg.dataBits = bits

		return nil
	})
}

// WithStopBits sets the number of stop bits.
func WithStopBits(s StopBits) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		switch s {
		case OneStopBit, OnePointFiveStopBits, TwoStopBits:
			cfg.stopBits = s
			return nil
		default:
			return fmt.Errorf("serialport: invalid stop bits %d", s)
		}
	})
}

// WithParity sets the parity mode.
func WithParity(p Parity) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		switch p {
		case NoParity, OddParity, EvenParity, MarkParity, SpaceParity:
			cfg.parity = p
			return nil
		default:
			return fmt.Errorf("serialport: invalid parity %d", p)
		}
	})
}

// WithHandshake makes Connect write send after the settle delay and require a
// reply containing expectSuffix within timeout.
//
// An empty expectSuffix disables the handshake; Connect then succeeds as soon
// as the port is configured and nothing is written.
func WithHandshake(send, expectSuffix string, timeout time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if expectSuffix != "" && send == "" {
			return errors.New("serialport: handshake expects a reply but has no probe")
		}
		if timeout <= 0 || timeout > MaxHandshakeTimeout {
			return fmt.Errorf("serialport: handshake timeout %v out of range (0, %v]", timeout, MaxHandshakeTimeout)
		}
		cfg.handshakeSend = send
		cfg.handshakeExpect = expectSuffix
		cfg.handshakeTimeout = timeout

		return nil
	})
}

// WithSettleDelay sets the pause between opening the port and the handshake probe.
func WithSettleDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if d < 0 || d > MaxSettleDelay {
			return fmt.Errorf("serialport: settle delay %v out of range [0, %v]", d, MaxSettleDelay)
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithPollInterval sets the per-read timeout. A smaller value makes
// cancellation more responsive at the cost of more wake-ups.
func WithPollInterval(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("serialport: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithOpener replaces the function used to open the port.
func WithOpener(opener Opener) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if opener == nil {
			return errors.New("serialport: nil opener")
		}
		cfg.opener = opener

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("serialport: nil logger")
		}
		cfg.logger = l

		return nil
	})
}
