// Package reverse implements the adjoint (reverse-mode) evaluator.
//
// The evaluator walks a frozen tape in strictly reverse recorded order,
// accumulating cotangents from designated outputs back to the controls.
// Forward values each record needs are re-derived through the checkpoint
// store one inter-checkpoint segment at a time: restore the segment's entry
// state, replay the segment forward buffering per-record values, then walk
// the buffer backwards.
package reverse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adjoint-ml/adjoint/internal/checkpoint"
	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/replay"
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Cotangents accumulates adjoint values per variable during one reverse
// pass. The same variable may feed multiple later records, so contributions
// sum rather than overwrite.
type Cotangents map[variable.ID]variable.Value

// Accumulate adds v into the entry for id, creating it if absent.
func (c Cotangents) Accumulate(id variable.ID, v variable.Value) error {
	if cur, ok := c[id]; ok {
		return cur.Add(v)
	}
	c[id] = v.Clone()
	return nil
}

// Evaluator walks one frozen tape backwards against a checkpoint store.
type Evaluator struct {
	tape   *tape.Tape
	store  *checkpoint.Store
	logger *slog.Logger
}

// New creates an evaluator. A nil logger defaults to slog.Default().
func New(t *tape.Tape, store *checkpoint.Store, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{tape: t, store: store, logger: logger.With("component", "adjoint")}
}

// Evaluate runs a reverse pass over the whole tape with the given seed
// cotangents and returns the accumulated cotangent of every variable the
// pass reached. Cancellation is cooperative, checked between records; a
// failed or cancelled pass leaves the tape and store intact.
func (e *Evaluator) Evaluate(ctx context.Context, seed map[variable.ID]variable.Value) (Cotangents, error) {
	return e.EvaluateRange(ctx, seed, 0, e.tape.Len())
}

// EvaluateRange runs a reverse pass over records [start, end).
func (e *Evaluator) EvaluateRange(ctx context.Context, seed map[variable.ID]variable.Value, start, end int) (Cotangents, error) {
	if _, err := e.tape.Segment(start, end); err != nil {
		return nil, err
	}

	cot := make(Cotangents, len(seed))
	for id, v := range seed {
		ref := e.tape.Lookup(id)
		if ref == nil {
			return nil, fmt.Errorf("adjoint: seed at %d: %w", int(id), tape.ErrUnregisteredVariable)
		}
		if len(v) != ref.Len() {
			return nil, fmt.Errorf("adjoint: seed at %s: %w: got length %d, want %d",
				ref, variable.ErrShapeMismatch, len(v), ref.Len())
		}
		cot[id] = v.Clone()
	}

	for _, seg := range e.segments(start, end) {
		if err := e.sweepSegment(ctx, seg, cot); err != nil {
			return nil, err
		}
	}
	return cot, nil
}

// segment is a half-open record range [start, end).
type segment struct {
	start, end int
}

// segments tiles [start, end) at held snapshot positions, last segment
// first (the order the reverse pass consumes them).
func (e *Evaluator) segments(start, end int) []segment {
	cuts := []int{start}
	for _, pos := range e.store.Positions() {
		if pos > start && pos < end {
			cuts = append(cuts, pos)
		}
	}
	segs := make([]segment, 0, len(cuts))
	for i := len(cuts) - 1; i >= 0; i-- {
		segEnd := end
		if i+1 < len(cuts) {
			segEnd = cuts[i+1]
		}
		segs = append(segs, segment{start: cuts[i], end: segEnd})
	}
	return segs
}

// sweepSegment restores the segment's entry state, replays it forward, then
// adjoins its records in reverse.
func (e *Evaluator) sweepSegment(ctx context.Context, seg segment, cot Cotangents) error {
	state, err := e.store.Restore(ctx, seg.start)
	if err != nil {
		return fmt.Errorf("adjoint: segment [%d,%d): %w", seg.start, seg.end, err)
	}
	steps, err := replay.ForwardBuffered(ctx, e.tape, state, seg.start, seg.end)
	if err != nil {
		return fmt.Errorf("adjoint: segment [%d,%d): %w", seg.start, seg.end, err)
	}
	if seg.end < e.tape.Len() {
		if err := e.store.Verify(seg.end, state); err != nil {
			return fmt.Errorf("adjoint: segment [%d,%d): %w", seg.start, seg.end, err)
		}
	}

	for i := len(steps) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.adjoinStep(steps[i], cot); err != nil {
			return err
		}
	}
	return nil
}

// adjoinStep pushes one record's output cotangents to its inputs. Records
// whose outputs carry no (or only zero) cotangent are skipped; their inputs
// receive nothing.
func (e *Evaluator) adjoinStep(st replay.Step, cot Cotangents) error {
	rec := st.Rec
	outputs := rec.Outputs()

	outCot := make([]variable.Value, len(outputs))
	carrying := false
	for i, id := range outputs {
		if v, ok := cot[id]; ok && !v.IsZero() {
			outCot[i] = v
			carrying = true
		}
	}
	if !carrying {
		return nil
	}
	for i, id := range outputs {
		if outCot[i] == nil {
			outCot[i] = variable.NewValue(e.tape.Lookup(id).Len())
		}
	}

	adj, ok := rec.Equation().(equation.Adjoint)
	if !ok {
		return fmt.Errorf("adjoint: record %d: %w", rec.Position(), equation.ErrMissingAdjointDescriptor)
	}
	inCot, err := adj.AdjointSolve(st.In, st.Out, outCot)
	if err != nil {
		return fmt.Errorf("adjoint: record %d: %w", rec.Position(), err)
	}

	inputs := rec.Inputs()
	if len(inCot) > len(inputs) {
		return fmt.Errorf("adjoint: record %d: equation produced %d input cotangents, want at most %d",
			rec.Position(), len(inCot), len(inputs))
	}
	for i, v := range inCot {
		if v == nil {
			continue
		}
		if err := cot.Accumulate(inputs[i], v); err != nil {
			return fmt.Errorf("adjoint: record %d: input %s: %w", rec.Position(), e.tape.Lookup(inputs[i]), err)
		}
	}
	return nil
}
