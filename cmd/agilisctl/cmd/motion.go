package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-agilis/agilis"
)

func init() {
	moveCmd.Flags().BoolP("wait", "w", true, "wait until the axis is ready")
	jogCmd.Flags().BoolP("reverse", "r", false, "jog backwards")

	rootCmd.AddCommand(moveCmd, jogCmd, stopCmd, zeroCmd)
}

var moveCmd = &cobra.Command{
	Use:   "move <axis> <steps>",
	Short: "move an axis by a signed number of steps",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")

		return withSession(func(ctx context.Context, s *session, args []string) error {
			axis, err := parseAxis(args[0])
			if err != nil {
				return err
			}
			steps, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[1])
			}

			if err := remote(ctx, s.ctrl); err != nil {
				return err
			}
			if err := s.ctrl.RelativeMove(ctx, axis, steps); err != nil {
				return err
			}
			if err := s.ctrl.CheckError(ctx); err != nil {
				return err
			}
			if !wait {
				return nil
			}
			if err := s.ctrl.WaitReady(ctx, axis, 0); err != nil {
				return err
			}

			pos, err := s.ctrl.Steps(ctx, axis)
			if err != nil {
				return err
			}
			fmt.Printf("axis %d at %s steps\n", axis, yellow("%d", pos))

			return nil
		})(cmd, args)
	},
}

var jogCmd = &cobra.Command{
	Use:   "jog <axis> <speed>",
	Short: "start jogging an axis; speed 0 stops, 1..4 select 5, 100, 1700, 666 steps/s",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reverse, _ := cmd.Flags().GetBool("reverse")

		return withSession(func(ctx context.Context, s *session, args []string) error {
			axis, err := parseAxis(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid jog speed %q", args[1])
			}
			speed := agilis.JogSpeed(n)

			if err := remote(ctx, s.ctrl); err != nil {
				return err
			}
			if err := s.ctrl.StartJog(ctx, axis, speed, !reverse); err != nil {
				return err
			}
			if err := s.ctrl.CheckError(ctx); err != nil {
				return err
			}
			fmt.Printf("axis %d jogging at %s\n", axis, yellow("%s", speed))

			return nil
		})(cmd, args)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [axis]",
	Short: "stop one axis, or both when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		axes := []int{1, 2}
		if len(args) == 1 {
			axis, err := parseAxis(args[0])
			if err != nil {
				return err
			}
			axes = []int{axis}
		}

		if err := remote(ctx, s.ctrl); err != nil {
			return err
		}
		for _, axis := range axes {
			if err := s.ctrl.Stop(ctx, axis); err != nil {
				return err
			}
			fmt.Printf("axis %d %s\n", axis, green("stopped"))
		}

		return nil
	}),
}

var zeroCmd = &cobra.Command{
	Use:   "zero <axis>",
	Short: "reset the step counter of an axis",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		axis, err := parseAxis(args[0])
		if err != nil {
			return err
		}

		if err := remote(ctx, s.ctrl); err != nil {
			return err
		}
		if err := s.ctrl.ZeroPosition(ctx, axis); err != nil {
			return err
		}

		return s.ctrl.CheckError(ctx)
	}),
}

func parseAxis(s string) (int, error) {
	axis, err := strconv.Atoi(s)
	if err != nil || axis < agilis.MinAxis || axis > agilis.MaxAxis {
		return 0, fmt.Errorf("invalid axis %q, want 1 or 2", s)
	}

	return axis, nil
}
