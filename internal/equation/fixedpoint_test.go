package equation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/manager"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// coupledSystem builds the contraction x = y/2 + b, y = x/2 for given
// variable IDs. Closed form: x = 4b/3, y = 2b/3, dx/db = 4/3.
func coupledSystem(t *testing.T, x, y, b variable.ID, opts equation.FixedPointOptions) *equation.FixedPoint {
	t.Helper()
	fp, err := equation.NewFixedPoint([]equation.Equation{
		equation.NewLinearCombination(x, []equation.Term{{Coeff: 0.5, X: y}, {Coeff: 1, X: b}}, 0, 1),
		equation.NewScale(y, x, 0.5, 1),
	}, map[variable.ID]int{x: 1, y: 1}, opts)
	require.NoError(t, err)
	return fp
}

func TestFixedPoint_ForwardSolve(t *testing.T) {
	x, y, b := variable.ID(0), variable.ID(1), variable.ID(2)
	fp := coupledSystem(t, x, y, b, equation.FixedPointOptions{})

	assert.Equal(t, []variable.ID{b}, fp.Inputs())
	assert.Equal(t, []variable.ID{x, y}, fp.Outputs())

	out, err := fp.ForwardSolve([]variable.Value{variable.Scalar(1)})
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, out[0].Scalar(), 1e-9)
	assert.InDelta(t, 2.0/3.0, out[1].Scalar(), 1e-9)
}

func TestFixedPoint_TangentSolve(t *testing.T) {
	x, y, b := variable.ID(0), variable.ID(1), variable.ID(2)
	fp := coupledSystem(t, x, y, b, equation.FixedPointOptions{})

	tan, err := fp.TangentSolve(
		[]variable.Value{variable.Scalar(1)},
		[]variable.Value{variable.Scalar(1)})
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, tan[0].Scalar(), 1e-9)
	assert.InDelta(t, 2.0/3.0, tan[1].Scalar(), 1e-9)
}

func TestFixedPoint_AdjointSolve(t *testing.T) {
	x, y, b := variable.ID(0), variable.ID(1), variable.ID(2)
	fp := coupledSystem(t, x, y, b, equation.FixedPointOptions{})

	in := []variable.Value{variable.Scalar(1)}
	out, err := fp.ForwardSolve(in)
	require.NoError(t, err)

	// Seed only x; d x / d b = 4/3.
	inCot, err := fp.AdjointSolve(in, out, []variable.Value{variable.Scalar(1), nil})
	require.NoError(t, err)
	require.Len(t, inCot, 1)
	assert.InDelta(t, 4.0/3.0, inCot[0].Scalar(), 1e-9)
}

func TestFixedPoint_NotConverging(t *testing.T) {
	x, b := variable.ID(0), variable.ID(1)
	// x = 2x + b expands; no fixed point is reached.
	fp, err := equation.NewFixedPoint([]equation.Equation{
		equation.NewLinearCombination(x, []equation.Term{{Coeff: 2, X: x}, {Coeff: 1, X: b}}, 0, 1),
	}, map[variable.ID]int{x: 1}, equation.FixedPointOptions{MaxIterations: 50})
	require.NoError(t, err)

	_, err = fp.ForwardSolve([]variable.Value{variable.Scalar(1)})
	assert.ErrorIs(t, err, equation.ErrFixedPointNotConverged)
}

func TestNewFixedPoint_Rejects(t *testing.T) {
	x, b := variable.ID(0), variable.ID(1)
	one := equation.NewScale(x, b, 0.5, 1)

	_, err := equation.NewFixedPoint(nil, nil, equation.FixedPointOptions{})
	assert.Error(t, err)

	// Two components solving the same variable.
	_, err = equation.NewFixedPoint([]equation.Equation{one, one},
		map[variable.ID]int{x: 1}, equation.FixedPointOptions{})
	assert.Error(t, err)

	// Missing size for a solved variable.
	_, err = equation.NewFixedPoint([]equation.Equation{one},
		nil, equation.FixedPointOptions{})
	assert.Error(t, err)
}

// The composite records on a tape like any other step, and the reverse sweep
// differentiates through the iteration.
func TestFixedPoint_OnTapeGradient(t *testing.T) {
	m := manager.New(manager.Options{})
	tp, err := m.BeginTape()
	require.NoError(t, err)

	b, err := tp.Control("b", variable.Scalar(1))
	require.NoError(t, err)
	x, err := tp.Declare("x", 1)
	require.NoError(t, err)
	y, err := tp.Declare("y", 1)
	require.NoError(t, err)
	fp := coupledSystem(t, x, y, b, equation.FixedPointOptions{})
	_, err = tp.Record(fp)
	require.NoError(t, err)
	require.NoError(t, m.EndTape(context.Background()))

	state, err := m.Forward(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, state[x].Scalar(), 1e-9)

	grad, err := m.ComputeGradient(context.Background(),
		[]variable.ID{x}, []variable.ID{b},
		map[variable.ID]variable.Value{x: variable.Scalar(1)})
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, grad[b].Scalar(), 1e-9)
}

func TestFixedPoint_TangentLinearEquation(t *testing.T) {
	x, y, b := variable.ID(0), variable.ID(1), variable.ID(2)
	fp := coupledSystem(t, x, y, b, equation.FixedPointOptions{})

	// Tangent slots offset by 10.
	m := equation.Remap{
		Primal:  func(id variable.ID) variable.ID { return id },
		Tangent: func(id variable.ID) variable.ID { return id + 10 },
	}
	teq, err := fp.TangentLinearEquation(m)
	require.NoError(t, err)

	// The only external dependency of the tangent system is db; the tangent
	// solution slots are solved internally. With db = 1, dx = 4/3.
	assert.Equal(t, []variable.ID{b + 10}, teq.Inputs())
	assert.Equal(t, []variable.ID{x + 10, y + 10}, teq.Outputs())
	out, err := teq.ForwardSolve([]variable.Value{variable.Scalar(1)})
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, out[0].Scalar(), 1e-9)
}
