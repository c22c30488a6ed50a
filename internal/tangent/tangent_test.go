package tangent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/replay"
	"github.com/adjoint-ml/adjoint/internal/tangent"
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// cubeTape records y = x^3 at x0 and freezes.
func cubeTape(t *testing.T, x0 float64) (*tape.Tape, variable.ID, variable.ID) {
	t.Helper()
	tp := tape.New(nil)
	x, err := tp.Control("x", variable.Scalar(x0))
	require.NoError(t, err)
	y, err := tp.Declare("y", 1)
	require.NoError(t, err)
	_, err = tp.Record(equation.NewPower(y, x, 3, 1))
	require.NoError(t, err)
	tp.Freeze()
	return tp, x, y
}

func TestEvaluator_DirectionalDerivative(t *testing.T) {
	tp, x, y := cubeTape(t, 2)
	eval := tangent.New(tp, nil)

	tan, err := eval.Evaluate(context.Background(), map[variable.ID]variable.Value{
		x: variable.Scalar(1),
	})
	require.NoError(t, err)

	// d(x^3)/dx at 2 is 12.
	assert.InDelta(t, 12.0, tan[y].Scalar(), 1e-12)
	assert.Equal(t, 1.0, tan[x].Scalar())
}

// Scaling the perturbation scales every tangent by the same factor.
func TestEvaluator_Linearity(t *testing.T) {
	tp := tape.New(nil)
	x, err := tp.Control("x", variable.Scalar(1.5))
	require.NoError(t, err)
	y, err := tp.Declare("y", 1)
	require.NoError(t, err)
	z, err := tp.Declare("z", 1)
	require.NoError(t, err)
	_, err = tp.Record(equation.NewPower(y, x, 2, 1))
	require.NoError(t, err)
	_, err = tp.Record(equation.NewProduct(z, y, x, 1))
	require.NoError(t, err)
	tp.Freeze()

	eval := tangent.New(tp, nil)
	one, err := eval.Evaluate(context.Background(), map[variable.ID]variable.Value{
		x: variable.Scalar(1),
	})
	require.NoError(t, err)
	five, err := eval.Evaluate(context.Background(), map[variable.ID]variable.Value{
		x: variable.Scalar(5),
	})
	require.NoError(t, err)

	for _, id := range []variable.ID{x, y, z} {
		assert.InDelta(t, 5*one[id].Scalar(), five[id].Scalar(), 1e-12, "variable %s", tp.Lookup(id))
	}
}

func TestEvaluator_UnseededControlsCarryZero(t *testing.T) {
	tp := tape.New(nil)
	a, err := tp.Control("a", variable.Scalar(2))
	require.NoError(t, err)
	b, err := tp.Control("b", variable.Scalar(3))
	require.NoError(t, err)
	y, err := tp.Declare("y", 1)
	require.NoError(t, err)
	_, err = tp.Record(equation.NewProduct(y, a, b, 1))
	require.NoError(t, err)
	tp.Freeze()

	eval := tangent.New(tp, nil)
	tan, err := eval.Evaluate(context.Background(), map[variable.ID]variable.Value{
		a: variable.Scalar(1),
	})
	require.NoError(t, err)

	// d(ab)/da = b = 3; b itself is unperturbed.
	assert.InDelta(t, 3.0, tan[y].Scalar(), 1e-12)
	if tv, ok := tan[b]; ok {
		assert.True(t, tv.IsZero())
	}
}

func TestEvaluator_PerturbationValidation(t *testing.T) {
	tp, x, y := cubeTape(t, 2)
	eval := tangent.New(tp, nil)

	_, err := eval.Evaluate(context.Background(), map[variable.ID]variable.Value{
		y: variable.Scalar(1), // not a control
	})
	assert.ErrorIs(t, err, tape.ErrUnregisteredVariable)

	_, err = eval.Evaluate(context.Background(), map[variable.ID]variable.Value{
		x: {1, 2}, // wrong length
	})
	assert.ErrorIs(t, err, variable.ErrShapeMismatch)
}

// onlyForward has no tangent rule.
type onlyForward struct{ x, y variable.ID }

func (eq onlyForward) Inputs() []variable.ID  { return []variable.ID{eq.x} }
func (eq onlyForward) Outputs() []variable.ID { return []variable.ID{eq.y} }
func (eq onlyForward) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	return []variable.Value{in[0].Clone()}, nil
}

func TestEvaluator_MissingTangentDescriptor(t *testing.T) {
	tp := tape.New(nil)
	x, err := tp.Control("x", variable.Scalar(1))
	require.NoError(t, err)
	y, err := tp.Declare("y", 1)
	require.NoError(t, err)
	_, err = tp.Record(onlyForward{x: x, y: y})
	require.NoError(t, err)
	tp.Freeze()

	eval := tangent.New(tp, nil)
	_, err = eval.Evaluate(context.Background(), nil)
	assert.ErrorIs(t, err, equation.ErrMissingTangentDescriptor)
}

// shortTangent declares one output but returns none from TangentSolve.
type shortTangent struct{ x, y variable.ID }

func (eq shortTangent) Inputs() []variable.ID  { return []variable.ID{eq.x} }
func (eq shortTangent) Outputs() []variable.ID { return []variable.ID{eq.y} }
func (eq shortTangent) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	return []variable.Value{in[0].Clone()}, nil
}
func (eq shortTangent) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	return nil, nil
}

func TestEvaluator_RejectsWrongOutputCount(t *testing.T) {
	tp := tape.New(nil)
	x, err := tp.Control("x", variable.Scalar(1))
	require.NoError(t, err)
	y, err := tp.Declare("y", 1)
	require.NoError(t, err)
	_, err = tp.Record(shortTangent{x: x, y: y})
	require.NoError(t, err)
	tp.Freeze()

	_, err = tangent.New(tp, nil).Evaluate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tangents")
}

func TestEvaluator_Cancellation(t *testing.T) {
	tp, x, _ := cubeTape(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tangent.New(tp, nil).Evaluate(ctx, map[variable.ID]variable.Value{
		x: variable.Scalar(1),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// The derived tape carries the tangent sweep as first-class records: replaying
// it forward reproduces both the primal values and the directional derivative.
func TestRecordDerived_ReplaysTangentSweep(t *testing.T) {
	tp, x, y := cubeTape(t, 2)

	derived, maps, err := tangent.RecordDerived(tp, map[variable.ID]variable.Value{
		x: variable.Scalar(1),
	}, nil)
	require.NoError(t, err)
	require.True(t, derived.Frozen())

	state := derived.InitialState()
	require.NoError(t, replay.Forward(context.Background(), derived, state, 0, derived.Len()))

	// Primal slots reuse the base IDs.
	assert.Equal(t, 8.0, state[y].Scalar())
	assert.InDelta(t, 12.0, state[maps.Tangent[y]].Scalar(), 1e-12)
	assert.Equal(t, 1.0, state[maps.Tangent[x]].Scalar())
}

func TestRecordDerived_RequiresFrozenBase(t *testing.T) {
	tp := tape.New(nil)
	_, err := tp.Control("x", variable.Scalar(1))
	require.NoError(t, err)

	_, _, err = tangent.RecordDerived(tp, nil, nil)
	assert.Error(t, err)
}

// Differentiating the derived tape in forward mode again gives the second
// derivative: d^2(x^3)/dx^2 at 2 is 12.
func TestRecordDerived_SecondDerivative(t *testing.T) {
	tp, x, y := cubeTape(t, 2)

	derived, maps, err := tangent.RecordDerived(tp, map[variable.ID]variable.Value{
		x: variable.Scalar(1),
	}, nil)
	require.NoError(t, err)

	eval := tangent.New(derived, nil)
	tan, err := eval.Evaluate(context.Background(), map[variable.ID]variable.Value{
		x: variable.Scalar(1),
	})
	require.NoError(t, err)

	dy := maps.Tangent[y]
	assert.InDelta(t, 12.0, tan[dy].Scalar(), 1e-12)
}
