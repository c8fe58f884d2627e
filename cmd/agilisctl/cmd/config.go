package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"

	"github.com/arloliu/go-agilis/logger"
	"github.com/arloliu/go-agilis/protocol"
)

const envPrefix = "AGILIS_"

// config is the merged agilisctl configuration. Keys match the flag names.
type config struct {
	Port        string        `koanf:"port"`
	Profile     string        `koanf:"profile"`
	LogLevel    string        `koanf:"log-level"`
	Simulate    bool          `koanf:"simulate"`
	CommandTerm time.Duration `koanf:"command-term"`
	Timeout     time.Duration `koanf:"timeout"`
}

func defaultConfig() config {
	return config{
		Port:        "/dev/ttyUSB0",
		Profile:     protocol.USBProfile.Name,
		LogLevel:    "warn",
		CommandTerm: protocol.DefaultCommandTerm,
		Timeout:     protocol.DefaultReplyTimeout,
	}
}

// loadConfig merges, from lowest to highest precedence: built-in defaults,
// the YAML file at path (if any), AGILIS_* environment variables and the
// flags set on the command line.
func loadConfig(path string, flags *pflag.FlagSet) (config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return config{}, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg config
	if err := k.Unmarshal("", &cfg); err != nil {
		return config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, cfg.validate()
}

// envKey maps AGILIS_LOG_LEVEL to log-level.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", "-")
}

func (c config) validate() error {
	if strings.TrimSpace(c.Port) == "" && !c.Simulate {
		return fmt.Errorf("port is required")
	}
	if _, ok := protocol.ProfileByName(c.Profile); !ok {
		return fmt.Errorf("unknown profile %q, want usb or rs232", c.Profile)
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.CommandTerm < 0 || c.CommandTerm > protocol.MaxCommandTerm {
		return fmt.Errorf("command term %s out of range", c.CommandTerm)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}
