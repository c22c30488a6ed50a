package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/adjoint-ml/adjoint/internal/checkpoint"
)

// NewScheduleCommand creates the schedule command: print where each
// placement policy would snapshot an n-record tape.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		interval  int
		snapshots int
	)

	cmd := &cobra.Command{
		Use:   "schedule <records>",
		Short: "Show snapshot placement for each checkpoint policy",
		Long: `Print the snapshot positions each placement policy would choose for a
tape of the given length. Useful when tuning a storage budget against
recompute cost.

Example:
  adjoint schedule 100 --snapshots 5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("records must be a non-negative integer, got %q", args[0])
			}
			out := cmd.OutOrStdout()
			policies := []checkpoint.Schedule{
				checkpoint.NoneSchedule{},
				checkpoint.FixedIntervalSchedule{Interval: interval},
				checkpoint.BinomialSchedule{Snapshots: snapshots},
			}
			for _, p := range policies {
				offsets := p.Offsets(n)
				fmt.Fprintf(out, "%-28s %d snapshots: %v\n",
					checkpoint.ScheduleString(p), len(offsets), offsets)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&interval, "interval", 4, "fixed-interval spacing")
	cmd.Flags().IntVar(&snapshots, "snapshots", 4, "binomial snapshot count")

	return cmd
}
