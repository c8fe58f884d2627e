package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-agilis/logger"
	"github.com/arloliu/go-agilis/serialport"
)

const (
	DefaultCommandTerm      = 50 * time.Millisecond
	DefaultReplyTimeout     = 3000 * time.Millisecond
	DefaultLongReplyTimeout = 130 * time.Second
)

const (
	MaxCommandTerm  = 10 * time.Second
	MaxReplyTimeout = 10 * time.Minute
)

// Config holds the engine configuration.
type Config struct {
	commandTerm      time.Duration
	replyTimeout     time.Duration
	longReplyTimeout time.Duration

	transportOpts []serialport.ConnOption

	logger logger.Logger
}

// NewConfig creates an engine configuration. opts are applied in order.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := &Config{
		commandTerm:      DefaultCommandTerm,
		replyTimeout:     DefaultReplyTimeout,
		longReplyTimeout: DefaultLongReplyTimeout,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// CommandTerm returns the initial minimum gap between two sends.
func (cfg *Config) CommandTerm() time.Duration { return cfg.commandTerm }

// ReplyTimeout returns the timeout for ordinary queries.
func (cfg *Config) ReplyTimeout() time.Duration { return cfg.replyTimeout }

// LongReplyTimeout returns the timeout for deferred replies.
func (cfg *Config) LongReplyTimeout() time.Duration { return cfg.longReplyTimeout }

// Logger returns the configured logger.
func (cfg *Config) Logger() logger.Logger { return cfg.logger }

// ConfigOption configures a Config.
type ConfigOption interface {
	apply(*Config) error
}

type configOptFunc func(*Config) error

func (f configOptFunc) apply(cfg *Config) error {
	return f(cfg)
}

// WithCommandTerm sets the minimum gap between two sends. Zero disables pacing.
func WithCommandTerm(d time.Duration) ConfigOption {
	return configOptFunc(func(cfg *Config) error {
		if err := validateCommandTerm(d); err != nil {
			return err
		}
		cfg.commandTerm = d

		return nil
	})
}

// WithReplyTimeout sets how long ordinary queries wait for their reply.
func WithReplyTimeout(d time.Duration) ConfigOption {
	return configOptFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxReplyTimeout {
			return fmt.Errorf("protocol: reply timeout %v out of range (0, %v]", d, MaxReplyTimeout)
		}
		cfg.replyTimeout = d

		return nil
	})
}

// WithLongReplyTimeout sets the default timeout of deferred replies.
func WithLongReplyTimeout(d time.Duration) ConfigOption {
	return configOptFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxReplyTimeout {
			return fmt.Errorf("protocol: long reply timeout %v out of range (0, %v]", d, MaxReplyTimeout)
		}
		cfg.longReplyTimeout = d

		return nil
	})
}

// WithTransportOptions appends options passed to serialport.NewConfig on
// every Connect. They are applied after the profile's line parameters and
// may override them.
func WithTransportOptions(opts ...serialport.ConnOption) ConfigOption {
	return configOptFunc(func(cfg *Config) error {
		cfg.transportOpts = append(cfg.transportOpts, opts...)
		return nil
	})
}

// WithLogger sets the logger used by the engine and its transport.
func WithLogger(l logger.Logger) ConfigOption {
	return configOptFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("protocol: nil logger")
		}
		cfg.logger = l

		return nil
	})
}

func validateCommandTerm(d time.Duration) error {
	if d < 0 || d > MaxCommandTerm {
		return fmt.Errorf("protocol: command term %v out of range [0, %v]", d, MaxCommandTerm)
	}

	return nil
}
