package equation

import "github.com/adjoint-ml/adjoint/internal/variable"

// Zero assigns y = 0. It has no inputs, so its adjoint discards the output
// cotangent entirely. Useful for resetting state slots between segments of
// a longer computation.
type Zero struct {
	y variable.ID
	n int
}

// NewZero creates y = 0 over n elements.
func NewZero(y variable.ID, n int) *Zero {
	return &Zero{y: y, n: n}
}

// Inputs returns the empty set.
func (eq *Zero) Inputs() []variable.ID { return nil }

// Outputs returns [y].
func (eq *Zero) Outputs() []variable.ID { return []variable.ID{eq.y} }

// ForwardSolve assigns zeros.
func (eq *Zero) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("zero", len(in), 0); err != nil {
		return nil, err
	}
	return []variable.Value{variable.NewValue(eq.n)}, nil
}

// TangentSolve assigns a zero tangent.
func (eq *Zero) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	return []variable.Value{variable.NewValue(eq.n)}, nil
}

// AdjointSolve drops the cotangent: there are no inputs to push it to.
func (eq *Zero) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	return nil, nil
}

// TangentLinearEquation generates τy = 0 on a derived tape.
func (eq *Zero) TangentLinearEquation(m Remap) (Equation, error) {
	return NewZero(m.Tangent(eq.y), eq.n), nil
}
