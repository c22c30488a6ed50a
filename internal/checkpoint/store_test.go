package checkpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjoint-ml/adjoint/internal/checkpoint"
	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/replay"
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// chainTape records x -> y1 -> ... -> yn (each y = 2*prev) and freezes.
func chainTape(t *testing.T, n int) (*tape.Tape, variable.ID, []variable.ID) {
	t.Helper()
	tp := tape.New(nil)
	x, err := tp.Control("x", variable.Scalar(3))
	require.NoError(t, err)
	prev := x
	var ys []variable.ID
	for i := 0; i < n; i++ {
		y, err := tp.Declare("y", 1)
		require.NoError(t, err)
		_, err = tp.Record(equation.NewScale(y, prev, 2, 1))
		require.NoError(t, err)
		ys = append(ys, y)
		prev = y
	}
	tp.Freeze()
	return tp, x, ys
}

// install snapshots the schedule's offsets from one forward replay.
func install(t *testing.T, tp *tape.Tape, store *checkpoint.Store) {
	t.Helper()
	state := tp.InitialState()
	cur := 0
	for _, pos := range store.Schedule().Offsets(tp.Len()) {
		require.NoError(t, replay.Forward(context.Background(), tp, state, cur, pos))
		cur = pos
		require.NoError(t, store.Snapshot(pos, state))
	}
}

func TestStore_RestoreExact(t *testing.T) {
	tp, x, _ := chainTape(t, 3)
	store := checkpoint.New(tp, checkpoint.Options{Schedule: checkpoint.NoneSchedule{}})
	install(t, tp, store)
	assert.Equal(t, 3, store.Len())

	state, err := store.Restore(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, state[x].Scalar())
}

// TestStore_RecomputeFromSparseCheckpoints keeps only the initial snapshot
// (interval = tape length) and checks every position replays to exactly the
// values of the original forward run.
func TestStore_RecomputeFromSparseCheckpoints(t *testing.T) {
	const n = 5
	tp, x, ys := chainTape(t, n)

	// Original run, full retention, as the reference.
	want := tp.InitialState()
	require.NoError(t, replay.Forward(context.Background(), tp, want, 0, n))

	store := checkpoint.New(tp, checkpoint.Options{
		Schedule: checkpoint.FixedIntervalSchedule{Interval: n},
	})
	install(t, tp, store)
	assert.Equal(t, 1, store.Len())

	for pos := 0; pos <= n; pos++ {
		state, err := store.Restore(context.Background(), pos)
		require.NoError(t, err, "position %d", pos)
		assert.Equal(t, want[x], state[x])
		for i, y := range ys {
			if i < pos {
				assert.Equal(t, want[y], state[y], "position %d variable y%d", pos, i+1)
			}
		}
	}
}

func TestStore_CapacityFail(t *testing.T) {
	tp, _, _ := chainTape(t, 3)
	store := checkpoint.New(tp, checkpoint.Options{
		StorageBudget: 1,
		OnExceed:      checkpoint.OnExceedFail,
	})

	state := tp.InitialState()
	require.NoError(t, replay.Forward(context.Background(), tp, state, 0, 2))

	require.NoError(t, store.Snapshot(1, state))
	err := store.Snapshot(2, state)
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointCapacityExceeded)
	assert.Equal(t, 1, store.Len())

	// Re-snapshotting a held position does not consume budget.
	assert.NoError(t, store.Snapshot(1, state))
}

func TestStore_EvictOldestLosesBase(t *testing.T) {
	tp, _, _ := chainTape(t, 3)
	store := checkpoint.New(tp, checkpoint.Options{
		StorageBudget: 1,
		OnExceed:      checkpoint.OnExceedEvictOldest,
	})

	state := tp.InitialState()
	require.NoError(t, store.Snapshot(0, state))
	require.NoError(t, replay.Forward(context.Background(), tp, state, 0, 2))
	require.NoError(t, store.Snapshot(2, state))

	assert.Equal(t, []int{2}, store.Positions())

	// The initial snapshot is gone; anything before position 2 is lost.
	_, err := store.Restore(context.Background(), 1)
	assert.ErrorIs(t, err, checkpoint.ErrUnrestorableState)

	// At or after the survivor still works.
	_, err = store.Restore(context.Background(), 3)
	assert.NoError(t, err)
}

func TestStore_RestoreEmpty(t *testing.T) {
	tp, _, _ := chainTape(t, 2)
	store := checkpoint.New(tp, checkpoint.Options{})

	_, err := store.Restore(context.Background(), 0)
	assert.ErrorIs(t, err, checkpoint.ErrUnrestorableState)
}

// flakyEq drifts on every solve: replay cannot reproduce the recorded run.
type flakyEq struct {
	x, y  variable.ID
	calls *int
}

func (eq *flakyEq) Inputs() []variable.ID  { return []variable.ID{eq.x} }
func (eq *flakyEq) Outputs() []variable.ID { return []variable.ID{eq.y} }

func (eq *flakyEq) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	*eq.calls++
	return []variable.Value{variable.Scalar(in[0].Scalar() + float64(*eq.calls))}, nil
}

func TestStore_VerifyDetectsNonDeterministicReplay(t *testing.T) {
	tp := tape.New(nil)
	x, err := tp.Control("x", variable.Scalar(1))
	require.NoError(t, err)
	y, err := tp.Declare("y", 1)
	require.NoError(t, err)
	calls := 0
	_, err = tp.Record(&flakyEq{x: x, y: y, calls: &calls})
	require.NoError(t, err)
	tp.Freeze()

	store := checkpoint.New(tp, checkpoint.Options{})
	state := tp.InitialState()
	require.NoError(t, store.Snapshot(0, state))
	require.NoError(t, replay.Forward(context.Background(), tp, state, 0, 1))
	require.NoError(t, store.Snapshot(1, state))

	// Recompute the state at position 1; the equation drifts, so the
	// checksum captured during the original run no longer matches.
	recomputed, err := store.Restore(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, replay.Forward(context.Background(), tp, recomputed, 0, 1))

	err = store.Verify(1, recomputed)
	assert.ErrorIs(t, err, checkpoint.ErrNonDeterministicReplay)

	// Positions without a snapshot verify vacuously.
	assert.NoError(t, store.Verify(5, recomputed))
}

func TestStore_Release(t *testing.T) {
	tp, _, _ := chainTape(t, 2)
	store := checkpoint.New(tp, checkpoint.Options{Schedule: checkpoint.NoneSchedule{}})
	install(t, tp, store)
	require.NotZero(t, store.Len())

	store.Release()
	assert.Zero(t, store.Len())
	_, err := store.Restore(context.Background(), 0)
	assert.ErrorIs(t, err, checkpoint.ErrUnrestorableState)
}
