package equation

import "github.com/adjoint-ml/adjoint/internal/variable"

// Scale computes y = α·x elementwise.
type Scale struct {
	x, y  variable.ID
	alpha float64
	n     int
}

// NewScale creates y = α·x over n elements.
func NewScale(y, x variable.ID, alpha float64, n int) *Scale {
	return &Scale{x: x, y: y, alpha: alpha, n: n}
}

// Inputs returns [x].
func (eq *Scale) Inputs() []variable.ID { return []variable.ID{eq.x} }

// Outputs returns [y].
func (eq *Scale) Outputs() []variable.ID { return []variable.ID{eq.y} }

// ForwardSolve computes y = α·x.
func (eq *Scale) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("scale", len(in), 1); err != nil {
		return nil, err
	}
	if err := wantLen("scale", in[0], eq.n); err != nil {
		return nil, err
	}
	y := variable.NewValue(eq.n)
	if err := y.AddScaled(eq.alpha, in[0]); err != nil {
		return nil, err
	}
	return []variable.Value{y}, nil
}

// TangentSolve computes τy = α·τx.
func (eq *Scale) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	ty := variable.NewValue(eq.n)
	if err := ty.AddScaled(eq.alpha, tanIn[0]); err != nil {
		return nil, err
	}
	return []variable.Value{ty}, nil
}

// AdjointSolve computes cot_x = α·cot_y.
func (eq *Scale) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	cx := variable.NewValue(eq.n)
	if err := cx.AddScaled(eq.alpha, outCot[0]); err != nil {
		return nil, err
	}
	return []variable.Value{cx}, nil
}

// TangentLinearEquation generates τy = α·τx on a derived tape.
func (eq *Scale) TangentLinearEquation(m Remap) (Equation, error) {
	return NewScale(m.Tangent(eq.y), m.Tangent(eq.x), eq.alpha, eq.n), nil
}
