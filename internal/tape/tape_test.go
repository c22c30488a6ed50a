package tape_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

func TestTape_RecordValidatesInputs(t *testing.T) {
	tp := tape.New(nil)
	x, err := tp.Control("x", variable.Scalar(1))
	require.NoError(t, err)
	y, err := tp.Declare("y", 1)
	require.NoError(t, err)

	// Unknown input ID.
	_, err = tp.Record(equation.NewScale(y, variable.ID(99), 2, 1))
	assert.ErrorIs(t, err, tape.ErrUnregisteredVariable)

	// Declared but not yet assigned intermediate as input.
	z, err := tp.Declare("z", 1)
	require.NoError(t, err)
	_, err = tp.Record(equation.NewScale(y, z, 2, 1))
	assert.ErrorIs(t, err, tape.ErrUnregisteredVariable)

	// Control as input is fine.
	_, err = tp.Record(equation.NewScale(y, x, 2, 1))
	assert.NoError(t, err)

	// Prior output as input is fine.
	_, err = tp.Record(equation.NewScale(z, y, 3, 1))
	assert.NoError(t, err)
}

func TestTape_SingleAssignment(t *testing.T) {
	tp := tape.New(nil)
	x, _ := tp.Control("x", variable.Scalar(1))
	y, _ := tp.Declare("y", 1)

	_, err := tp.Record(equation.NewScale(y, x, 2, 1))
	require.NoError(t, err)

	// Second assignment of y.
	_, err = tp.Record(equation.NewScale(y, x, 3, 1))
	assert.ErrorIs(t, err, tape.ErrVariableReassigned)

	// Controls cannot be assigned.
	_, err = tp.Record(equation.NewScale(x, y, 1, 1))
	assert.ErrorIs(t, err, tape.ErrVariableReassigned)
}

func TestTape_FreezeClosesRecording(t *testing.T) {
	tp := tape.New(nil)
	x, _ := tp.Control("x", variable.Scalar(1))
	y, _ := tp.Declare("y", 1)
	_, err := tp.Record(equation.NewScale(y, x, 2, 1))
	require.NoError(t, err)

	tp.Freeze()
	assert.True(t, tp.Frozen())

	_, err = tp.Record(equation.NewScale(y, x, 2, 1))
	assert.ErrorIs(t, err, tape.ErrTapeClosed)
	_, err = tp.Control("x2", variable.Scalar(0))
	assert.ErrorIs(t, err, tape.ErrTapeClosed)
	_, err = tp.Declare("z", 1)
	assert.ErrorIs(t, err, tape.ErrTapeClosed)

	// Idempotent.
	tp.Freeze()
	assert.Equal(t, 1, tp.Len())
}

func TestTape_Segment(t *testing.T) {
	tp := chain3(t)

	recs, err := tp.Segment(1, 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Position())
	assert.Equal(t, 2, recs[1].Position())

	_, err = tp.Segment(-1, 2)
	assert.ErrorIs(t, err, tape.ErrSegmentBounds)
	_, err = tp.Segment(2, 1)
	assert.ErrorIs(t, err, tape.ErrSegmentBounds)
	_, err = tp.Segment(0, 4)
	assert.ErrorIs(t, err, tape.ErrSegmentBounds)
}

func TestTape_InitialStateIsACopy(t *testing.T) {
	tp := tape.New(nil)
	x, _ := tp.Control("x", variable.Scalar(4))

	st := tp.InitialState()
	st[x][0] = 99

	assert.Equal(t, 4.0, tp.InitialState()[x].Scalar())
}

func TestTape_LiveAt(t *testing.T) {
	// x -> y1 -> y2 -> y3, with y1 read only by record 1.
	tp := chain3(t)
	vars := tp.Variables()
	x, y1, y2, y3 := vars[0].ID(), vars[1].ID(), vars[2].ID(), vars[3].ID()

	assert.ElementsMatch(t, []variable.ID{x}, tp.LiveAt(0))
	assert.ElementsMatch(t, []variable.ID{x, y1}, tp.LiveAt(1))
	assert.ElementsMatch(t, []variable.ID{x, y2}, tp.LiveAt(2))
	// At the end only the control and the terminal output remain.
	assert.ElementsMatch(t, []variable.ID{x, y3}, tp.LiveAt(3))
}

func TestTape_RefCountAndAssignedAt(t *testing.T) {
	tp := tape.New(nil)
	x, _ := tp.Control("x", variable.Scalar(2))
	y, _ := tp.Declare("y", 1)
	z, _ := tp.Declare("z", 1)
	_, err := tp.Record(equation.NewProduct(y, x, x, 1))
	require.NoError(t, err)
	_, err = tp.Record(equation.NewScale(z, y, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, tp.RefCount(x)) // both Product operands
	assert.Equal(t, 1, tp.RefCount(y))
	assert.Equal(t, 0, tp.RefCount(z))
	assert.Equal(t, -1, tp.AssignedAt(x))
	assert.Equal(t, 0, tp.AssignedAt(y))
	assert.Equal(t, 1, tp.AssignedAt(z))
}

// chain3 records x -> y1 -> y2 -> y3 and freezes the tape.
func chain3(t *testing.T) *tape.Tape {
	t.Helper()
	tp := tape.New(nil)
	x, err := tp.Control("x", variable.Scalar(4))
	require.NoError(t, err)
	prev := x
	for _, name := range []string{"y1", "y2", "y3"} {
		y, err := tp.Declare(name, 1)
		require.NoError(t, err)
		_, err = tp.Record(equation.NewScale(y, prev, 2, 1))
		require.NoError(t, err)
		prev = y
	}
	tp.Freeze()
	return tp
}
