package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-agilis/agilis"
	"github.com/arloliu/go-agilis/internal/simdevice"
	"github.com/arloliu/go-agilis/logger"
	"github.com/arloliu/go-agilis/protocol"
	"github.com/arloliu/go-agilis/serialport"
)

var rootCmd = &cobra.Command{
	Use:          "agilisctl",
	Short:        "Agilis piezo motion controller tool",
	Long:         `agilisctl talks to Newport Agilis AG-UC2/AG-UC8 controllers over USB or RS-232.`,
	SilenceUsage: true,
}

var (
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
	yellow = color.New(color.FgHiYellow).SprintfFunc()
)

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, red("error: %v", err))
	}

	return err
}

const (
	flagPort        = "port"
	flagProfile     = "profile"
	flagConfig      = "config"
	flagLogLevel    = "log-level"
	flagSimulate    = "simulate"
	flagCommandTerm = "command-term"
	flagTimeout     = "timeout"
)

func init() {
	defaults := defaultConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagPort, "p", defaults.Port, "serial port of the controller")
	pf.StringP(flagProfile, "P", defaults.Profile, "interface profile: usb or rs232")
	pf.StringP(flagConfig, "c", "", "YAML configuration file")
	pf.StringP(flagLogLevel, "l", defaults.LogLevel, "log level: debug, info, warn, error, none")
	pf.Bool(flagSimulate, defaults.Simulate, "talk to an in-memory simulated controller")
	pf.Duration(flagCommandTerm, defaults.CommandTerm, "minimum gap between two commands")
	pf.Duration(flagTimeout, defaults.Timeout, "reply timeout")
}

// session is an open controller plus the configuration it was built from.
type session struct {
	cfg  config
	ctrl *agilis.Controller
}

func (s *session) Close() {
	_ = s.ctrl.Close()
}

// openSession loads the configuration and connects to the controller.
func openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()

	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := loadConfig(path, cmd.Flags())
	if err != nil {
		return nil, err
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	log := logger.NewSlogWriter(os.Stderr, level, false)

	opts := []protocol.ConfigOption{
		protocol.WithLogger(log),
		protocol.WithCommandTerm(cfg.CommandTerm),
		protocol.WithReplyTimeout(cfg.Timeout),
	}
	if cfg.Simulate {
		dev := simdevice.New(simdevice.WithMeasureLatency(3 * simdevice.DefaultMeasureLatency))
		opts = append(opts, protocol.WithTransportOptions(serialport.WithOpener(dev.Opener())))
	}

	pcfg, err := protocol.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	ctrl, err := agilis.New(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	profile, _ := protocol.ProfileByName(cfg.Profile)
	if err := ctrl.Connect(ctx, cfg.Port, profile); err != nil {
		_ = ctrl.Close()
		return nil, err
	}

	return &session{cfg: cfg, ctrl: ctrl}, nil
}

// withSession runs fn against a connected controller and closes it after.
func withSession(fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		return fn(cmd.Context(), s, args)
	}
}

// remote switches the controller to remote mode; motion commands are
// rejected in local mode.
func remote(ctx context.Context, ctrl *agilis.Controller) error {
	if err := ctrl.SetRemoteMode(ctx); err != nil {
		return err
	}

	return ctrl.CheckError(ctx)
}
