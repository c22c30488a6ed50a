package checkpoint

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adjoint-ml/adjoint/internal/replay"
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Checkpoint errors. Capacity is policy-recoverable; the rest are fatal to
// the in-flight derivative computation but leave the tape reusable.
var (
	// ErrCheckpointCapacityExceeded reports a snapshot rejected by a hard
	// storage budget under the fail policy.
	ErrCheckpointCapacityExceeded = errors.New("checkpoint capacity exceeded")

	// ErrUnrestorableState reports a position with no snapshot at or
	// before it to replay from.
	ErrUnrestorableState = errors.New("unrestorable forward state")

	// ErrNonDeterministicReplay reports a recomputed forward state whose
	// checksum disagrees with the snapshot captured during the original
	// run.
	ErrNonDeterministicReplay = errors.New("non-deterministic replay")
)

// OnExceed selects the behavior when a snapshot would exceed the storage
// budget.
type OnExceed int

const (
	// OnExceedEvictOldest evicts the oldest snapshot and retries.
	OnExceedEvictOldest OnExceed = iota
	// OnExceedFail rejects the snapshot with ErrCheckpointCapacityExceeded.
	OnExceedFail
)

// String returns the configuration name of the policy.
func (o OnExceed) String() string {
	switch o {
	case OnExceedEvictOldest:
		return "evict-oldest"
	case OnExceedFail:
		return "fail"
	default:
		return fmt.Sprintf("OnExceed(%d)", int(o))
	}
}

// Options configures a Store.
type Options struct {
	// Schedule decides snapshot placement. Defaults to NoneSchedule
	// (full retention).
	Schedule Schedule

	// StorageBudget is the maximum number of held snapshots; 0 means
	// unlimited.
	StorageBudget int

	// OnExceed selects eviction versus failure at the budget.
	OnExceed OnExceed

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// snapshot is a captured forward state keyed by tape position.
type snapshot struct {
	pos   int
	state variable.State
	sum   [sha256.Size]byte
	at    time.Time
}

// Store caches forward states for one frozen tape and rebuilds any state it
// did not retain by deterministic replay. Snapshot bookkeeping (capacity
// accounting, eviction) is serialized; restores of disjoint positions may
// run concurrently.
type Store struct {
	tape   *tape.Tape
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	snaps map[int]*snapshot
	order []int // insertion order, oldest first
}

// New creates a store for the given frozen tape.
func New(t *tape.Tape, opts Options) *Store {
	if opts.Schedule == nil {
		opts.Schedule = NoneSchedule{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tape:   t,
		opts:   opts,
		logger: logger.With("component", "checkpoint"),
		snaps:  make(map[int]*snapshot),
	}
}

// Schedule returns the placement policy the store was configured with.
func (s *Store) Schedule() Schedule { return s.opts.Schedule }

// Snapshot captures the minimal variable set needed to resume forward
// execution at pos: the tape's live set there, taken from state. Under a
// hard budget the oldest snapshot is evicted (evict-oldest) or the call
// fails (fail).
func (s *Store) Snapshot(pos int, state variable.State) error {
	live := s.tape.LiveAt(pos)
	captured := make(variable.State, len(live))
	for _, id := range live {
		v, ok := state[id]
		if !ok {
			return fmt.Errorf("snapshot at %d: no value for live variable %s", pos, s.tape.Lookup(id))
		}
		captured.Set(id, v)
	}
	sum := checksum(captured)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.snaps[pos]; !held && s.opts.StorageBudget > 0 && len(s.snaps) >= s.opts.StorageBudget {
		if s.opts.OnExceed == OnExceedFail {
			return fmt.Errorf("snapshot at %d (budget %d): %w", pos, s.opts.StorageBudget, ErrCheckpointCapacityExceeded)
		}
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.snaps, evicted)
		s.logger.Debug("evicted oldest snapshot", "evicted", evicted, "for", pos)
	}
	if _, held := s.snaps[pos]; !held {
		s.order = append(s.order, pos)
	}
	s.snaps[pos] = &snapshot{pos: pos, state: captured, sum: sum, at: time.Now()}
	return nil
}

// Positions returns the held snapshot positions in ascending order.
func (s *Store) Positions() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.snaps))
	for pos := range s.snaps {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of held snapshots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

// Release drops every held snapshot.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = make(map[int]*snapshot)
	s.order = nil
}

// Restore returns the forward state at pos, replaying from the nearest
// earlier snapshot when no exact one is held. An exact hit is re-verified
// against its captured checksum.
func (s *Store) Restore(ctx context.Context, pos int) (variable.State, error) {
	base, err := s.base(pos)
	if err != nil {
		return nil, err
	}

	state := base.state.Clone()
	if base.pos == pos {
		if checksum(state) != base.sum {
			return nil, fmt.Errorf("snapshot at %d: %w", pos, ErrNonDeterministicReplay)
		}
		return state, nil
	}
	if err := replay.Forward(ctx, s.tape, state, base.pos, pos); err != nil {
		return nil, err
	}
	return state, nil
}

// base picks the nearest held snapshot at or before pos, under the lock.
func (s *Store) base(pos int) (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var base *snapshot
	for p, snap := range s.snaps {
		if p <= pos && (base == nil || p > base.pos) {
			base = snap
		}
	}
	if base == nil {
		return nil, fmt.Errorf("restore at %d: no snapshot at or before position: %w", pos, ErrUnrestorableState)
	}
	return base, nil
}

// Verify cross-checks a recomputed forward state against the snapshot held
// at pos, if any: the live set's checksum must match what was captured
// during the original run. Replay that reaches a held position is verified
// here rather than silently accepted.
func (s *Store) Verify(pos int, state variable.State) error {
	s.mu.Lock()
	snap, held := s.snaps[pos]
	s.mu.Unlock()
	if !held {
		return nil
	}

	live := s.tape.LiveAt(pos)
	subset := make(variable.State, len(live))
	for _, id := range live {
		v, ok := state[id]
		if !ok {
			return fmt.Errorf("verify at %d: replay lost variable %s: %w",
				pos, s.tape.Lookup(id), ErrNonDeterministicReplay)
		}
		subset[id] = v
	}
	if checksum(subset) != snap.sum {
		return fmt.Errorf("verify at %d: recomputed state disagrees with original run: %w",
			pos, ErrNonDeterministicReplay)
	}
	return nil
}
