package equation

import (
	"math"

	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Power computes y = xᵏ elementwise for a real exponent k.
//
// Tangent: τy = k·xᵏ⁻¹·τx.
// Adjoint: cot_x = k·xᵏ⁻¹ ⊙ cot_y.
type Power struct {
	x, y variable.ID
	k    float64
	n    int
}

// NewPower creates y = xᵏ over n elements.
func NewPower(y, x variable.ID, k float64, n int) *Power {
	return &Power{x: x, y: y, k: k, n: n}
}

// Inputs returns [x].
func (eq *Power) Inputs() []variable.ID { return []variable.ID{eq.x} }

// Outputs returns [y].
func (eq *Power) Outputs() []variable.ID { return []variable.ID{eq.y} }

// ForwardSolve computes y = xᵏ.
func (eq *Power) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("power", len(in), 1); err != nil {
		return nil, err
	}
	if err := wantLen("power", in[0], eq.n); err != nil {
		return nil, err
	}
	y := variable.NewValue(eq.n)
	for i, x := range in[0] {
		y[i] = math.Pow(x, eq.k)
	}
	return []variable.Value{y}, nil
}

// TangentSolve computes τy = k·xᵏ⁻¹·τx.
func (eq *Power) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	if err := wantLen("power", tanIn[0], eq.n); err != nil {
		return nil, err
	}
	ty := variable.NewValue(eq.n)
	for i, x := range in[0] {
		ty[i] = eq.k * math.Pow(x, eq.k-1) * tanIn[0][i]
	}
	return []variable.Value{ty}, nil
}

// AdjointSolve computes cot_x = k·xᵏ⁻¹ ⊙ cot_y.
func (eq *Power) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("power", outCot[0], eq.n); err != nil {
		return nil, err
	}
	cx := variable.NewValue(eq.n)
	for i, x := range in[0] {
		cx[i] = eq.k * math.Pow(x, eq.k-1) * outCot[0][i]
	}
	return []variable.Value{cx}, nil
}

// TangentLinearEquation generates τy = k·xᵏ⁻¹·τx on a derived tape. The
// generated equation reads the replayed primal x, so it carries second
// derivative information and is itself adjoinable.
func (eq *Power) TangentLinearEquation(m Remap) (Equation, error) {
	return &powerTangent{
		x:  m.Primal(eq.x),
		dx: m.Tangent(eq.x),
		dy: m.Tangent(eq.y),
		k:  eq.k,
		n:  eq.n,
	}, nil
}

// powerTangent is the tangent of Power on a derived tape: dy = k·xᵏ⁻¹·dx.
// Its adjoint differentiates through both x and dx, which is where second
// derivatives of the base tape come from.
type powerTangent struct {
	x, dx, dy variable.ID
	k         float64
	n         int
}

func (eq *powerTangent) Inputs() []variable.ID  { return []variable.ID{eq.x, eq.dx} }
func (eq *powerTangent) Outputs() []variable.ID { return []variable.ID{eq.dy} }

func (eq *powerTangent) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("power-tangent", len(in), 2); err != nil {
		return nil, err
	}
	if err := wantLen("power-tangent", in[0], eq.n); err != nil {
		return nil, err
	}
	if err := wantLen("power-tangent", in[1], eq.n); err != nil {
		return nil, err
	}
	dy := variable.NewValue(eq.n)
	for i, x := range in[0] {
		dy[i] = eq.k * math.Pow(x, eq.k-1) * in[1][i]
	}
	return []variable.Value{dy}, nil
}

func (eq *powerTangent) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	// d(dy) = k(k-1)·xᵏ⁻²·dx·τx + k·xᵏ⁻¹·τdx
	dy := variable.NewValue(eq.n)
	for i, x := range in[0] {
		dy[i] = eq.k*(eq.k-1)*math.Pow(x, eq.k-2)*in[1][i]*tanIn[0][i] +
			eq.k*math.Pow(x, eq.k-1)*tanIn[1][i]
	}
	return []variable.Value{dy}, nil
}

func (eq *powerTangent) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("power-tangent", outCot[0], eq.n); err != nil {
		return nil, err
	}
	cx := variable.NewValue(eq.n)
	cdx := variable.NewValue(eq.n)
	for i, x := range in[0] {
		w := outCot[0][i]
		cx[i] = eq.k * (eq.k - 1) * math.Pow(x, eq.k-2) * in[1][i] * w
		cdx[i] = eq.k * math.Pow(x, eq.k-1) * w
	}
	return []variable.Value{cx, cdx}, nil
}
