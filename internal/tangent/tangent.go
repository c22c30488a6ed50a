// Package tangent implements the tangent-linear (forward-mode) evaluator.
//
// The evaluator replays a frozen tape in recorded order, carrying a tangent
// value alongside each primal value. Seeding a perturbation at the controls
// yields the directional derivative of every assigned variable. The sweep is
// linear in the perturbation: scaling the seed scales every tangent.
package tangent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Evaluator replays one frozen tape forward, propagating tangents.
type Evaluator struct {
	tape   *tape.Tape
	logger *slog.Logger
}

// New creates an evaluator for the given frozen tape. A nil logger defaults
// to slog.Default().
func New(t *tape.Tape, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{tape: t, logger: logger.With("component", "tangent")}
}

// Evaluate runs the forward sweep with the given perturbation at control
// variables and returns the tangent of every variable assigned along the
// tape (controls included). Unperturbed inputs carry zero tangents.
// Cancellation is cooperative, checked between records.
func (e *Evaluator) Evaluate(ctx context.Context, perturbation map[variable.ID]variable.Value) (map[variable.ID]variable.Value, error) {
	tan := make(map[variable.ID]variable.Value, len(perturbation))
	for id, v := range perturbation {
		ref := e.tape.Lookup(id)
		if ref == nil || !ref.IsControl() {
			return nil, fmt.Errorf("tangent: perturbation at %d: %w", int(id), tape.ErrUnregisteredVariable)
		}
		if len(v) != ref.Len() {
			return nil, fmt.Errorf("tangent: perturbation at %s: %w: got length %d, want %d",
				ref, variable.ErrShapeMismatch, len(v), ref.Len())
		}
		tan[id] = v.Clone()
	}

	state := e.tape.InitialState()
	for _, rec := range e.tape.Records() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lin, ok := rec.Equation().(equation.Tangent)
		if !ok {
			return nil, fmt.Errorf("tangent: record %d: %w", rec.Position(), equation.ErrMissingTangentDescriptor)
		}

		inputs := rec.Inputs()
		in := make([]variable.Value, len(inputs))
		tanIn := make([]variable.Value, len(inputs))
		for i, id := range inputs {
			in[i] = state[id]
			if tv, ok := tan[id]; ok {
				tanIn[i] = tv
			} else {
				tanIn[i] = variable.NewValue(e.tape.Lookup(id).Len())
			}
		}

		out, err := lin.ForwardSolve(in)
		if err != nil {
			return nil, fmt.Errorf("tangent: record %d: %w", rec.Position(), err)
		}
		tanOut, err := lin.TangentSolve(in, tanIn)
		if err != nil {
			return nil, fmt.Errorf("tangent: record %d: %w", rec.Position(), err)
		}

		outputs := rec.Outputs()
		if len(out) != len(outputs) {
			return nil, fmt.Errorf("tangent: record %d: equation produced %d outputs, want %d",
				rec.Position(), len(out), len(outputs))
		}
		if len(tanOut) != len(outputs) {
			return nil, fmt.Errorf("tangent: record %d: equation produced %d tangents, want %d",
				rec.Position(), len(tanOut), len(outputs))
		}
		for i, id := range outputs {
			state.Set(id, out[i])
			tan[id] = tanOut[i].Clone()
		}
	}
	return tan, nil
}
