// Package replay re-executes tape segments deterministically.
//
// The forward solver guarantees (and the checkpoint store verifies) that
// re-running a record with the same input values reproduces bit-identical
// outputs, so any state the engine did not retain can be rebuilt here.
package replay

import (
	"context"
	"fmt"

	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Forward replays records [start, end) of the tape, mutating state in place.
// Cancellation is cooperative, checked between records.
func Forward(ctx context.Context, t *tape.Tape, state variable.State, start, end int) error {
	recs, err := t.Segment(start, end)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := step(t, rec, state); err != nil {
			return err
		}
	}
	return nil
}

// Step is one replayed record together with the forward values it consumed
// and produced, as needed by the adjoint sweep.
type Step struct {
	Rec *tape.Record
	In  []variable.Value
	Out []variable.Value
}

// ForwardBuffered replays records [start, end) and returns each record's
// forward input and output values alongside the mutated state.
func ForwardBuffered(ctx context.Context, t *tape.Tape, state variable.State, start, end int) ([]Step, error) {
	recs, err := t.Segment(start, end)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(recs))
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err := step(t, rec, state)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// step executes one record against state and assigns its outputs.
func step(t *tape.Tape, rec *tape.Record, state variable.State) (Step, error) {
	inputs := rec.Inputs()
	in := make([]variable.Value, len(inputs))
	for i, id := range inputs {
		v, ok := state[id]
		if !ok {
			return Step{}, fmt.Errorf("replay record %d: no value for input %s", rec.Position(), t.Lookup(id))
		}
		in[i] = v
	}
	out, err := rec.Equation().ForwardSolve(in)
	if err != nil {
		return Step{}, fmt.Errorf("replay record %d: %w", rec.Position(), err)
	}
	outputs := rec.Outputs()
	if len(out) != len(outputs) {
		return Step{}, fmt.Errorf("replay record %d: equation produced %d outputs, want %d",
			rec.Position(), len(out), len(outputs))
	}
	for i, id := range outputs {
		state.Set(id, out[i])
	}
	return Step{Rec: rec, In: in, Out: out}, nil
}
