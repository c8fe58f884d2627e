package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-agilis/internal/util"
)

func init() {
	rawCmd.Flags().BoolP("reply", "r", false, "wait for a reply line")
	rootCmd.AddCommand(rawCmd)
}

var rawCmd = &cobra.Command{
	Use:   "raw <command>",
	Short: "send a raw command line such as 1TP or CC? and print the reply",
	Long: `raw sends the command as typed. Commands ending in "?" and the
TE, TP, TS, PH and VE queries wait for a reply; use --reply to force it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		forceReply, _ := cmd.Flags().GetBool("reply")

		return withSession(func(ctx context.Context, s *session, args []string) error {
			line := strings.TrimSpace(args[0])
			engine := s.ctrl.Engine()

			if !forceReply && !expectsReply(line) {
				if err := engine.Exec(ctx, line); err != nil {
					return err
				}
				fmt.Println(green("sent"), line)

				return nil
			}

			reply, err := engine.Query(ctx, line, s.cfg.Timeout)
			if err != nil {
				return err
			}
			fmt.Println(util.TrimCRLFString(reply))

			return nil
		})(cmd, args)
	},
}

func expectsReply(line string) bool {
	if strings.HasSuffix(line, "?") {
		return true
	}

	upper := strings.ToUpper(strings.TrimLeft(line, "0123456789"))
	for _, q := range []string{"TE", "TP", "TS", "PH", "VE"} {
		if upper == q {
			return true
		}
	}

	return false
}
