package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adjoint-ml/adjoint/internal/config"
	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/manager"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// NewRunCommand creates the run command: record a configured chain problem,
// compute its forward values and the gradient at the control.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <problem.yaml>",
		Short: "Record a chain problem and compute its gradient",
		Long: `Record the configured scalar chain on a tape, replay it forward, and
compute the gradient of the final value with respect to the control using
the configured checkpoint policy.

Example:
  adjoint run examples/scalar-chain/problem.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProblem(cmd, rootOpts, args[0])
		},
	}
}

func runProblem(cmd *cobra.Command, rootOpts *RootOptions, path string) error {
	logger, closeLogger, err := buildLogger(rootOpts)
	if err != nil {
		return err
	}
	defer closeLogger()

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	storeOpts, err := cfg.Checkpoint.StoreOptions(logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	mgr := manager.New(manager.Options{Checkpoint: storeOpts, Logger: logger})
	control, last, vars, err := recordChain(mgr, cfg.Problem)
	if err != nil {
		return err
	}
	if err := mgr.EndTape(ctx); err != nil {
		return err
	}

	state, err := mgr.Forward(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "x = %g\n", cfg.Problem.Control)
	for i, id := range vars {
		fmt.Fprintf(out, "y%d = %g\n", i+1, state[id].Scalar())
	}

	grad, err := mgr.ComputeGradient(ctx,
		[]variable.ID{last}, []variable.ID{control},
		map[variable.ID]variable.Value{last: variable.Scalar(1)})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "dy%d/dx = %g\n", len(vars), grad[control].Scalar())
	return nil
}

// recordChain registers the chain problem on a fresh tape: a control x
// followed by one record per step. Returns the control, the final variable,
// and every chain variable in order. The tape is left open for EndTape.
func recordChain(mgr *manager.Manager, p config.Problem) (control, last variable.ID, vars []variable.ID, err error) {
	tp, err := mgr.BeginTape()
	if err != nil {
		return 0, 0, nil, err
	}

	control, err = tp.Control("x", variable.Scalar(p.Control))
	if err != nil {
		return 0, 0, nil, err
	}
	prev := control
	for i, step := range p.Steps {
		y, err := tp.Declare(fmt.Sprintf("y%d", i+1), 1)
		if err != nil {
			return 0, 0, nil, err
		}
		var eq equation.Equation
		if step.Power != nil {
			eq = equation.NewPower(y, prev, *step.Power, 1)
		} else {
			scale := 1.0
			if step.Scale != nil {
				scale = *step.Scale
			}
			offset := 0.0
			if step.Offset != nil {
				offset = *step.Offset
			}
			eq = equation.NewLinearCombination(y, []equation.Term{{Coeff: scale, X: prev}}, offset, 1)
		}
		if _, err := tp.Record(eq); err != nil {
			return 0, 0, nil, err
		}
		vars = append(vars, y)
		prev = y
	}
	return control, prev, vars, nil
}
