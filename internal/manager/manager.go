// Package manager orchestrates tape lifetime, checkpoint scheduling, and the
// external derivative API.
//
// A Manager is an explicit execution context: it owns at most one tape at a
// time, wires the configured checkpoint policy into the store when the tape
// is closed, and exposes gradient (reverse-mode) and tangent (forward-mode)
// computation over the frozen tape. There is no process-wide state; create
// one Manager per independent computation.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adjoint-ml/adjoint/internal/checkpoint"
	"github.com/adjoint-ml/adjoint/internal/replay"
	"github.com/adjoint-ml/adjoint/internal/reverse"
	"github.com/adjoint-ml/adjoint/internal/tangent"
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Manager lifecycle errors.
var (
	// ErrTapeActive reports BeginTape while a tape is still recording.
	ErrTapeActive = errors.New("a tape is already recording")

	// ErrNoTape reports an operation that needs a tape when none exists.
	ErrNoTape = errors.New("no tape")

	// ErrTapeOpen reports a derivative request against a tape that has
	// not been closed with EndTape yet.
	ErrTapeOpen = errors.New("tape is still recording")
)

// Options configures a Manager.
type Options struct {
	// Checkpoint configures the store installed at EndTape (schedule,
	// storage budget, on-exceed policy).
	Checkpoint checkpoint.Options

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager is the engine's execution context and external API surface.
type Manager struct {
	logger *slog.Logger
	ckpt   checkpoint.Options

	mu        sync.Mutex
	tape      *tape.Tape
	store     *checkpoint.Store
	recording bool
}

// New creates a Manager with the given options.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ckpt := opts.Checkpoint
	if ckpt.Logger == nil {
		ckpt.Logger = logger
	}
	return &Manager{logger: logger.With("component", "manager"), ckpt: ckpt}
}

// BeginTape opens a new empty tape and returns it for recording. A retained
// frozen tape is dropped; an open tape must be closed first.
func (m *Manager) BeginTape() (*tape.Tape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording {
		return nil, ErrTapeActive
	}
	if m.tape != nil {
		m.logger.Debug("dropping retained tape", "tape", m.tape.ID())
		m.dropLocked()
	}
	m.tape = tape.New(m.logger)
	m.recording = true
	return m.tape, nil
}

// EndTape freezes the active tape and installs the checkpoint store,
// capturing snapshots at the schedule's positions from one forward replay of
// the recorded computation. A capacity failure under the fail policy logs a
// warning and leaves the store with the snapshots taken so far
// (recompute-only beyond them).
func (m *Manager) EndTape(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tape == nil || !m.recording {
		return ErrNoTape
	}
	m.tape.Freeze()
	m.recording = false

	store, err := installStore(ctx, m.tape, m.ckpt, m.logger)
	if err != nil {
		return err
	}
	m.store = store
	return nil
}

// installStore builds a store for a frozen tape and captures the scheduled
// snapshots by replaying forward from the initial control state.
func installStore(ctx context.Context, t *tape.Tape, opts checkpoint.Options, logger *slog.Logger) (*checkpoint.Store, error) {
	store := checkpoint.New(t, opts)
	n := t.Len()

	offsets := store.Schedule().Offsets(n)
	if len(offsets) == 0 || offsets[0] != 0 {
		offsets = append([]int{0}, offsets...)
	}

	state := t.InitialState()
	cur := 0
	for _, pos := range offsets {
		if pos >= n && n > 0 {
			break
		}
		if err := replay.Forward(ctx, t, state, cur, pos); err != nil {
			return nil, err
		}
		cur = pos
		if err := store.Snapshot(pos, state); err != nil {
			if errors.Is(err, checkpoint.ErrCheckpointCapacityExceeded) {
				logger.Warn("checkpoint budget reached, later states will be recomputed",
					"position", pos, "held", store.Len())
				break
			}
			return nil, err
		}
	}
	logger.Debug("checkpoint store installed",
		"schedule", checkpoint.ScheduleString(store.Schedule()), "snapshots", store.Len(), "records", n)
	return store, nil
}

// Tape returns the current tape, or nil.
func (m *Manager) Tape() *tape.Tape {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tape
}

// Store returns the checkpoint store installed by EndTape, or nil.
func (m *Manager) Store() *checkpoint.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store
}

// DropTape discards the tape, its checkpoint store, and every cached value.
func (m *Manager) DropTape() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked()
}

func (m *Manager) dropLocked() {
	if m.store != nil {
		m.store.Release()
	}
	m.tape = nil
	m.store = nil
	m.recording = false
}

// frozen returns the tape and store once recording has ended.
func (m *Manager) frozen() (*tape.Tape, *checkpoint.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tape == nil {
		return nil, nil, ErrNoTape
	}
	if m.recording {
		return nil, nil, ErrTapeOpen
	}
	return m.tape, m.store, nil
}

// Forward returns the complete forward state of the tape: controls and every
// assigned variable, rebuilt by deterministic replay from the initial control
// state. Checkpoint snapshots hold only live subsets, so the store cannot
// serve this; replay can.
func (m *Manager) Forward(ctx context.Context) (variable.State, error) {
	t, _, err := m.frozen()
	if err != nil {
		return nil, err
	}
	state := t.InitialState()
	if err := replay.Forward(ctx, t, state, 0, t.Len()); err != nil {
		return nil, err
	}
	return state, nil
}

// ComputeGradient runs a reverse pass seeded at the designated output
// variables and returns the accumulated cotangent at each control. Controls
// the seed does not reach get zero values. The result is independent of the
// checkpoint schedule.
func (m *Manager) ComputeGradient(ctx context.Context, outputs, controls []variable.ID, seed map[variable.ID]variable.Value) (map[variable.ID]variable.Value, error) {
	t, store, err := m.frozen()
	if err != nil {
		return nil, err
	}

	allowed := make(map[variable.ID]bool, len(outputs))
	for _, id := range outputs {
		if t.Lookup(id) == nil {
			return nil, fmt.Errorf("gradient: output %d: %w", int(id), tape.ErrUnregisteredVariable)
		}
		allowed[id] = true
	}
	for id := range seed {
		if !allowed[id] {
			return nil, fmt.Errorf("gradient: seed at %d is not a designated output", int(id))
		}
	}
	for _, id := range controls {
		ref := t.Lookup(id)
		if ref == nil || !ref.IsControl() {
			return nil, fmt.Errorf("gradient: control %d: %w", int(id), tape.ErrUnregisteredVariable)
		}
	}

	cot, err := reverse.New(t, store, m.logger).Evaluate(ctx, seed)
	if err != nil {
		return nil, err
	}

	grad := make(map[variable.ID]variable.Value, len(controls))
	for _, id := range controls {
		if v, ok := cot[id]; ok {
			grad[id] = v.Clone()
		} else {
			grad[id] = variable.NewValue(t.Lookup(id).Len())
		}
	}
	return grad, nil
}

// ComputeTangent runs a forward-mode pass with the given perturbation at the
// controls and returns the tangent of every variable assigned on the tape.
func (m *Manager) ComputeTangent(ctx context.Context, controls []variable.ID, perturbation map[variable.ID]variable.Value) (map[variable.ID]variable.Value, error) {
	t, _, err := m.frozen()
	if err != nil {
		return nil, err
	}

	allowed := make(map[variable.ID]bool, len(controls))
	for _, id := range controls {
		ref := t.Lookup(id)
		if ref == nil || !ref.IsControl() {
			return nil, fmt.Errorf("tangent: control %d: %w", int(id), tape.ErrUnregisteredVariable)
		}
		allowed[id] = true
	}
	for id := range perturbation {
		if !allowed[id] {
			return nil, fmt.Errorf("tangent: perturbation at %d is not a designated control", int(id))
		}
	}

	return tangent.New(t, m.logger).Evaluate(ctx, perturbation)
}

// DeriveTangent records the tangent sweep of the frozen tape as a new tape
// owned by a new Manager (sharing this Manager's checkpoint policy), with
// the perturbation baked into the tangent control slots. Running
// ComputeGradient on the returned Manager yields second derivatives of the
// base computation.
func (m *Manager) DeriveTangent(ctx context.Context, perturbation map[variable.ID]variable.Value) (*Manager, tangent.Maps, error) {
	t, _, err := m.frozen()
	if err != nil {
		return nil, tangent.Maps{}, err
	}

	derived, maps, err := tangent.RecordDerived(t, perturbation, m.logger)
	if err != nil {
		return nil, tangent.Maps{}, err
	}

	dm := New(Options{Checkpoint: m.ckpt, Logger: m.logger})
	store, err := installStore(ctx, derived, dm.ckpt, dm.logger)
	if err != nil {
		return nil, tangent.Maps{}, err
	}
	dm.tape = derived
	dm.store = store
	return dm, maps, nil
}
