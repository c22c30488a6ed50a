// Package cli implements the adjoint command line tool.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	LogFile string
}

// NewRootCommand creates the root command for the adjoint CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "adjoint",
		Short: "Tape-based adjoint differentiation engine",
		Long: `adjoint records forward computations on an equation tape and computes
gradients (reverse mode) and directional derivatives (forward mode) with
checkpointed replay.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "also write JSON logs to this file")

	cmd.AddCommand(NewVersionCommand())
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))

	return cmd
}
