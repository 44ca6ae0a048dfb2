package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"themescore/internal/progress"
)

func newProgressCommand() *cobra.Command {
	var lines int
	var follow bool
	var poll time.Duration

	cmd := &cobra.Command{
		Use:         "progress <log file>",
		Short:       "Show the tail of a scoring progress log",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			tail, offset, err := progress.Last(args[0], lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return progress.Follow(cmd.Context(), args[0], offset, poll, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().DurationVar(&poll, "poll", 500*time.Millisecond, "Polling interval when following")
	return cmd
}
