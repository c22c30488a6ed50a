package tangent

import (
	"fmt"
	"log/slog"

	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Maps relates base-tape variables to their slots on a derived tape.
// Primal slots reuse the base IDs (the derived tape re-registers base
// variables in the same order); Tangent maps each base variable to the slot
// holding its directional derivative.
type Maps struct {
	Tangent map[variable.ID]variable.ID
}

// RecordDerived builds a new tape whose records compute the base tape's
// tangent sweep: each base record is re-recorded (so primal values are
// available to nonlinear tangent equations), followed by the tangent-linear
// equation its TangentLinearEquation generates. The perturbation becomes the
// initial value of the tangent control slots.
//
// The derived tape references the base tape's equations read-only; running
// the adjoint over it yields second derivatives of the base computation.
func RecordDerived(base *tape.Tape, perturbation map[variable.ID]variable.Value, logger *slog.Logger) (*tape.Tape, Maps, error) {
	if !base.Frozen() {
		return nil, Maps{}, fmt.Errorf("derive tangent tape: base tape is still recording")
	}

	derived := tape.New(logger)
	initial := base.InitialState()

	// Primal slots first, in base ID order, so base equations keep their
	// variable IDs on the derived tape.
	for _, ref := range base.Variables() {
		var err error
		if ref.IsControl() {
			_, err = derived.Control(ref.Name(), initial[ref.ID()])
		} else {
			_, err = derived.Declare(ref.Name(), ref.Len())
		}
		if err != nil {
			return nil, Maps{}, err
		}
	}

	tanOf := make(map[variable.ID]variable.ID, len(base.Variables()))
	for _, ref := range base.Variables() {
		var (
			id  variable.ID
			err error
		)
		if ref.IsControl() {
			seed, ok := perturbation[ref.ID()]
			if !ok {
				seed = variable.NewValue(ref.Len())
			} else if len(seed) != ref.Len() {
				return nil, Maps{}, fmt.Errorf("derive tangent tape: perturbation at %s: %w: got length %d, want %d",
					ref, variable.ErrShapeMismatch, len(seed), ref.Len())
			}
			id, err = derived.Control(ref.Name()+"_tlm", seed)
		} else {
			id, err = derived.Declare(ref.Name()+"_tlm", ref.Len())
		}
		if err != nil {
			return nil, Maps{}, err
		}
		tanOf[ref.ID()] = id
	}

	remap := equation.Remap{
		Primal:  func(id variable.ID) variable.ID { return id },
		Tangent: func(id variable.ID) variable.ID { return tanOf[id] },
	}
	for _, rec := range base.Records() {
		if _, err := derived.Record(rec.Equation()); err != nil {
			return nil, Maps{}, fmt.Errorf("derive tangent tape: record %d: %w", rec.Position(), err)
		}
		tl, ok := rec.Equation().(equation.TangentLinear)
		if !ok {
			return nil, Maps{}, fmt.Errorf("derive tangent tape: record %d: %w",
				rec.Position(), equation.ErrMissingTangentDescriptor)
		}
		teq, err := tl.TangentLinearEquation(remap)
		if err != nil {
			return nil, Maps{}, fmt.Errorf("derive tangent tape: record %d: %w", rec.Position(), err)
		}
		if _, err := derived.Record(teq); err != nil {
			return nil, Maps{}, fmt.Errorf("derive tangent tape: record %d: %w", rec.Position(), err)
		}
	}

	derived.Freeze()
	return derived, Maps{Tangent: tanOf}, nil
}
