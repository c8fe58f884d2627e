package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-agilis/agilis"
)

func init() {
	rootCmd.AddCommand(versionCmd, statusCmd, channelCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the controller firmware version",
	Args:  cobra.NoArgs,
	RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
		version, err := s.ctrl.FirmwareVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Println(version)

		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print status, step counter and limit switches of both axes",
	Args:  cobra.NoArgs,
	RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
		channel, err := s.ctrl.Channel(ctx)
		if err != nil {
			return err
		}
		limit1, limit2, err := s.ctrl.LimitStatus(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("port %s, channel %s\n", s.ctrl.PortName(), yellow("%d", channel))
		for i, atLimit := range []bool{limit1, limit2} {
			axis := i + 1
			status, err := s.ctrl.AxisStatus(ctx, axis)
			if err != nil {
				return err
			}
			steps, err := s.ctrl.Steps(ctx, axis)
			if err != nil {
				return err
			}
			fmt.Printf("axis %d: %-16s steps %s limit %s\n", axis, statusText(status), yellow("%d", steps), limitText(atLimit))
		}

		return nil
	}),
}

var channelCmd = &cobra.Command{
	Use:   "channel [n]",
	Short: "print or select the channel addressed by axis commands",
	Args:  cobra.MaximumNArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid channel %q", args[0])
			}
			if err := remote(ctx, s.ctrl); err != nil {
				return err
			}
			if err := s.ctrl.ChangeChannel(ctx, n); err != nil {
				return err
			}
			if err := s.ctrl.CheckError(ctx); err != nil {
				return err
			}
		}

		channel, err := s.ctrl.Channel(ctx)
		if err != nil {
			return err
		}
		fmt.Println("channel", yellow("%d", channel))

		return nil
	}),
}

func statusText(status agilis.AxisStatus) string {
	if status == agilis.AxisReady {
		return green("%s", status)
	}

	return yellow("%s", status)
}

func limitText(atLimit bool) string {
	if atLimit {
		return red("active")
	}

	return green("clear")
}
