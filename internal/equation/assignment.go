package equation

import "github.com/adjoint-ml/adjoint/internal/variable"

// Assignment copies one variable into another: y = x.
//
// Tangent: τy = τx. Adjoint: the output cotangent flows unchanged to x.
type Assignment struct {
	x, y variable.ID
	n    int
}

// NewAssignment creates y = x over n elements.
func NewAssignment(y, x variable.ID, n int) *Assignment {
	return &Assignment{x: x, y: y, n: n}
}

// Inputs returns [x].
func (eq *Assignment) Inputs() []variable.ID { return []variable.ID{eq.x} }

// Outputs returns [y].
func (eq *Assignment) Outputs() []variable.ID { return []variable.ID{eq.y} }

// ForwardSolve computes y = x.
func (eq *Assignment) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("assignment", len(in), 1); err != nil {
		return nil, err
	}
	if err := wantLen("assignment", in[0], eq.n); err != nil {
		return nil, err
	}
	return []variable.Value{in[0].Clone()}, nil
}

// TangentSolve computes τy = τx.
func (eq *Assignment) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	if err := wantLen("assignment", tanIn[0], eq.n); err != nil {
		return nil, err
	}
	return []variable.Value{tanIn[0].Clone()}, nil
}

// AdjointSolve propagates the output cotangent to x unchanged.
func (eq *Assignment) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("assignment", outCot[0], eq.n); err != nil {
		return nil, err
	}
	return []variable.Value{outCot[0].Clone()}, nil
}

// TangentLinearEquation generates τy = τx on a derived tape.
func (eq *Assignment) TangentLinearEquation(m Remap) (Equation, error) {
	return NewAssignment(m.Tangent(eq.y), m.Tangent(eq.x), eq.n), nil
}
