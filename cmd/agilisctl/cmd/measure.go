package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(measureCmd)
}

var measureCmd = &cobra.Command{
	Use:   "measure <axis>",
	Short: "measure the absolute position of an axis (moves to both limits, up to 2 minutes)",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		axis, err := parseAxis(args[0])
		if err != nil {
			return err
		}

		if err := remote(ctx, s.ctrl); err != nil {
			return err
		}

		m, err := s.ctrl.MeasurePosition(ctx, axis)
		if err != nil {
			return err
		}

		bar := newSpinner(fmt.Sprintf("measuring axis %d", axis))
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

	wait:
		for {
			select {
			case <-m.Done():
				break wait
			case <-ctx.Done():
				_ = bar.Clear()
				return ctx.Err()
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)

		pos, err := m.Result()
		if err != nil {
			return err
		}
		fmt.Printf("axis %d position %s/1000\n", axis, yellow("%d", pos))

		return nil
	}),
}

func newSpinner(text string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan]"+text+"[reset]"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
	)
}
