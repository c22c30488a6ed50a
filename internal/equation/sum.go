package equation

import "github.com/adjoint-ml/adjoint/internal/variable"

// Sum reduces a vector to the scalar y = Σᵢ xᵢ.
//
// Adjoint: every element of x receives the scalar output cotangent.
type Sum struct {
	x, y variable.ID
	n    int
}

// NewSum creates the scalar y = Σ xᵢ over an n-element operand.
func NewSum(y, x variable.ID, n int) *Sum {
	return &Sum{x: x, y: y, n: n}
}

// Inputs returns [x].
func (eq *Sum) Inputs() []variable.ID { return []variable.ID{eq.x} }

// Outputs returns [y].
func (eq *Sum) Outputs() []variable.ID { return []variable.ID{eq.y} }

// ForwardSolve computes y = Σ xᵢ.
func (eq *Sum) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("sum", len(in), 1); err != nil {
		return nil, err
	}
	if err := wantLen("sum", in[0], eq.n); err != nil {
		return nil, err
	}
	total := 0.0
	for _, x := range in[0] {
		total += x
	}
	return []variable.Value{variable.Scalar(total)}, nil
}

// TangentSolve computes τy = Σ τxᵢ.
func (eq *Sum) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	if err := wantLen("sum", tanIn[0], eq.n); err != nil {
		return nil, err
	}
	total := 0.0
	for _, x := range tanIn[0] {
		total += x
	}
	return []variable.Value{variable.Scalar(total)}, nil
}

// AdjointSolve broadcasts the scalar cotangent to every element of x.
func (eq *Sum) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("sum", outCot[0], 1); err != nil {
		return nil, err
	}
	w := outCot[0].Scalar()
	cx := variable.NewValue(eq.n)
	for i := range cx {
		cx[i] = w
	}
	return []variable.Value{cx}, nil
}

// TangentLinearEquation generates τy = Σ τxᵢ on a derived tape.
func (eq *Sum) TangentLinearEquation(m Remap) (Equation, error) {
	return NewSum(m.Tangent(eq.y), m.Tangent(eq.x), eq.n), nil
}
