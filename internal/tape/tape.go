// Package tape implements the append-only equation record log at the center
// of the engine.
//
// A tape is built during a forward run: controls and intermediates are
// registered, then equation records are appended in execution order. Once
// frozen, the tape is immutable and can be replayed forward (tangent sweep,
// checkpoint recomputation) or walked backward (adjoint sweep) any number of
// times.
//
// Usage:
//
//	tp := tape.New(nil)
//	x, _ := tp.Control("x", variable.Scalar(4))
//	y, _ := tp.Declare("y", 1)
//	tp.Record(equation.NewScale(y, x, 2, 1))
//	tp.Freeze()
package tape

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Tape usage errors. These indicate forward-solver bugs and are never
// retried.
var (
	// ErrUnregisteredVariable reports a record input that is neither a
	// control nor the output of an earlier record.
	ErrUnregisteredVariable = errors.New("unregistered variable")

	// ErrVariableReassigned reports a second record assigning a variable
	// that already has a producing record.
	ErrVariableReassigned = errors.New("variable already assigned")

	// ErrTapeClosed reports a mutation attempted after Freeze.
	ErrTapeClosed = errors.New("tape is frozen")

	// ErrSegmentBounds reports an out-of-range segment request.
	ErrSegmentBounds = errors.New("segment bounds out of range")
)

// Record is one immutable entry of the tape: an equation plus its position
// in recording order.
type Record struct {
	pos int
	eq  equation.Equation
}

// Position returns the record's index in recording order.
func (r *Record) Position() int { return r.pos }

// Equation returns the recorded equation.
func (r *Record) Equation() equation.Equation { return r.eq }

// Inputs returns the variables the record reads.
func (r *Record) Inputs() []variable.ID { return r.eq.Inputs() }

// Outputs returns the variables the record assigns.
func (r *Record) Outputs() []variable.ID { return r.eq.Outputs() }

// Tape is the append-only ordered log of equation records produced during a
// forward run plus the variables they touch. One goroutine records at a
// time; a frozen tape is safe for concurrent readers.
type Tape struct {
	id     uuid.UUID
	logger *slog.Logger

	records  []*Record
	vars     []*variable.Ref
	controls variable.State // initial control values

	assignedAt map[variable.ID]int // producing record position
	lastReader map[variable.ID]int // highest record position reading the variable
	refCount   map[variable.ID]int // number of records reading the variable

	frozen bool
}

// New creates an open, empty tape. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Tape {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	return &Tape{
		id:         id,
		logger:     logger.With("tape", id.String()[:8]),
		records:    make([]*Record, 0, 64),
		controls:   make(variable.State),
		assignedAt: make(map[variable.ID]int),
		lastReader: make(map[variable.ID]int),
		refCount:   make(map[variable.ID]int),
	}
}

// ID returns the tape's unique identity.
func (t *Tape) ID() uuid.UUID { return t.id }

// Len returns the number of recorded equations.
func (t *Tape) Len() int { return len(t.records) }

// Frozen reports whether the tape has been closed to further recording.
func (t *Tape) Frozen() bool { return t.frozen }

// Control registers an externally supplied input variable with its initial
// value and returns its identity.
func (t *Tape) Control(name string, v variable.Value) (variable.ID, error) {
	if t.frozen {
		return variable.Invalid, fmt.Errorf("control %q: %w", name, ErrTapeClosed)
	}
	id := variable.ID(len(t.vars))
	t.vars = append(t.vars, variable.NewRef(id, name, len(v), variable.Control))
	t.controls.Set(id, v)
	return id, nil
}

// Declare registers an intermediate variable of the given length. It becomes
// usable as a record input only once some record assigns it.
func (t *Tape) Declare(name string, n int) (variable.ID, error) {
	if t.frozen {
		return variable.Invalid, fmt.Errorf("declare %q: %w", name, ErrTapeClosed)
	}
	id := variable.ID(len(t.vars))
	t.vars = append(t.vars, variable.NewRef(id, name, n, variable.Intermediate))
	return id, nil
}

// Lookup returns the metadata for a registered variable, or nil.
func (t *Tape) Lookup(id variable.ID) *variable.Ref {
	if id < 0 || int(id) >= len(t.vars) {
		return nil
	}
	return t.vars[id]
}

// Variables returns the metadata of every registered variable in ID order.
func (t *Tape) Variables() []*variable.Ref {
	out := make([]*variable.Ref, len(t.vars))
	copy(out, t.vars)
	return out
}

// Record appends an equation record. Every input must already exist as a
// variable with a value at this position (a control or a prior output), and
// every output must be a declared, not-yet-assigned intermediate.
func (t *Tape) Record(eq equation.Equation) (*Record, error) {
	if t.frozen {
		return nil, fmt.Errorf("record at %d: %w", len(t.records), ErrTapeClosed)
	}
	pos := len(t.records)

	for _, in := range eq.Inputs() {
		ref := t.Lookup(in)
		if ref == nil {
			return nil, fmt.Errorf("record at %d: input %d: %w", pos, int(in), ErrUnregisteredVariable)
		}
		if !ref.IsControl() {
			if _, assigned := t.assignedAt[in]; !assigned {
				return nil, fmt.Errorf("record at %d: input %s is not assigned yet: %w",
					pos, ref, ErrUnregisteredVariable)
			}
		}
	}
	for _, out := range eq.Outputs() {
		ref := t.Lookup(out)
		if ref == nil {
			return nil, fmt.Errorf("record at %d: output %d: %w", pos, int(out), ErrUnregisteredVariable)
		}
		if ref.IsControl() {
			return nil, fmt.Errorf("record at %d: output %s is a control: %w", pos, ref, ErrVariableReassigned)
		}
		if _, assigned := t.assignedAt[out]; assigned {
			return nil, fmt.Errorf("record at %d: output %s: %w", pos, ref, ErrVariableReassigned)
		}
	}

	for _, in := range eq.Inputs() {
		t.lastReader[in] = pos
		t.refCount[in]++
	}
	for _, out := range eq.Outputs() {
		t.assignedAt[out] = pos
	}

	rec := &Record{pos: pos, eq: eq}
	t.records = append(t.records, rec)
	return rec, nil
}

// Freeze closes the tape. Further Record, Control, and Declare calls fail
// with ErrTapeClosed. Idempotent.
func (t *Tape) Freeze() {
	if t.frozen {
		return
	}
	t.frozen = true
	t.logger.Debug("tape frozen", "records", len(t.records), "variables", len(t.vars))
}

// Segment returns the records in [start, end) in recorded order. The
// returned slice shares the tape's backing array; callers treat it as
// read-only.
func (t *Tape) Segment(start, end int) ([]*Record, error) {
	if start < 0 || end > len(t.records) || start > end {
		return nil, fmt.Errorf("segment [%d,%d) of %d records: %w", start, end, len(t.records), ErrSegmentBounds)
	}
	return t.records[start:end], nil
}

// Records returns all records in recorded order.
func (t *Tape) Records() []*Record {
	return t.records
}

// InitialState returns a copy of the control values, the state from which a
// full forward replay starts.
func (t *Tape) InitialState() variable.State {
	return t.controls.Clone()
}

// RefCount returns the number of records reading the variable. Computed
// incrementally during recording; meaningful for GC decisions once frozen.
func (t *Tape) RefCount(id variable.ID) int {
	return t.refCount[id]
}

// AssignedAt returns the position of the record assigning id, or -1 for
// controls and unassigned intermediates.
func (t *Tape) AssignedAt(id variable.ID) int {
	if pos, ok := t.assignedAt[id]; ok {
		return pos
	}
	return -1
}

// LiveAt returns the IDs whose values are needed to resume a forward replay
// at position pos: all controls, plus every variable assigned before pos
// that is either read at or after pos or never read at all (a terminal
// output, kept so results stay addressable at the end of the tape).
func (t *Tape) LiveAt(pos int) []variable.ID {
	var live []variable.ID
	for _, ref := range t.vars {
		id := ref.ID()
		if ref.IsControl() {
			live = append(live, id)
			continue
		}
		assigned, ok := t.assignedAt[id]
		if !ok || assigned >= pos {
			continue
		}
		last, read := t.lastReader[id]
		if !read || last >= pos {
			live = append(live, id)
		}
	}
	return live
}
