package equation

import "github.com/adjoint-ml/adjoint/internal/variable"

// Term is one coefficient/variable pair of a linear combination.
type Term struct {
	Coeff float64
	X     variable.ID
}

// LinearCombination computes y = Σᵢ cᵢ·xᵢ + b elementwise, where b is a
// scalar offset broadcast over all elements.
//
// This single equation covers scaling (y = 2x), shifts (y = x + 3), sums,
// and differences.
//
// Tangent: τy = Σᵢ cᵢ·τxᵢ (the offset drops out).
// Adjoint: each xᵢ receives cᵢ times the output cotangent.
type LinearCombination struct {
	y      variable.ID
	terms  []Term
	offset float64
	n      int
}

// NewLinearCombination creates y = Σ cᵢ·xᵢ + offset over n elements.
func NewLinearCombination(y variable.ID, terms []Term, offset float64, n int) *LinearCombination {
	ts := make([]Term, len(terms))
	copy(ts, terms)
	return &LinearCombination{y: y, terms: ts, offset: offset, n: n}
}

// Inputs returns the term variables in term order.
func (eq *LinearCombination) Inputs() []variable.ID {
	ids := make([]variable.ID, len(eq.terms))
	for i, t := range eq.terms {
		ids[i] = t.X
	}
	return ids
}

// Outputs returns [y].
func (eq *LinearCombination) Outputs() []variable.ID { return []variable.ID{eq.y} }

// ForwardSolve computes y = Σ cᵢ·xᵢ + offset.
func (eq *LinearCombination) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("linear-combination", len(in), len(eq.terms)); err != nil {
		return nil, err
	}
	y := variable.NewValue(eq.n)
	for i := range y {
		y[i] = eq.offset
	}
	for i, t := range eq.terms {
		if err := wantLen("linear-combination", in[i], eq.n); err != nil {
			return nil, err
		}
		if err := y.AddScaled(t.Coeff, in[i]); err != nil {
			return nil, err
		}
	}
	return []variable.Value{y}, nil
}

// TangentSolve computes τy = Σ cᵢ·τxᵢ.
func (eq *LinearCombination) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	ty := variable.NewValue(eq.n)
	for i, t := range eq.terms {
		if err := wantLen("linear-combination", tanIn[i], eq.n); err != nil {
			return nil, err
		}
		if err := ty.AddScaled(t.Coeff, tanIn[i]); err != nil {
			return nil, err
		}
	}
	return []variable.Value{ty}, nil
}

// AdjointSolve gives each input cᵢ times the output cotangent.
func (eq *LinearCombination) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("linear-combination", outCot[0], eq.n); err != nil {
		return nil, err
	}
	cots := make([]variable.Value, len(eq.terms))
	for i, t := range eq.terms {
		c := variable.NewValue(eq.n)
		if err := c.AddScaled(t.Coeff, outCot[0]); err != nil {
			return nil, err
		}
		cots[i] = c
	}
	return cots, nil
}

// TangentLinearEquation generates τy = Σ cᵢ·τxᵢ on a derived tape.
func (eq *LinearCombination) TangentLinearEquation(m Remap) (Equation, error) {
	terms := make([]Term, len(eq.terms))
	for i, t := range eq.terms {
		terms[i] = Term{Coeff: t.Coeff, X: m.Tangent(t.X)}
	}
	return NewLinearCombination(m.Tangent(eq.y), terms, 0, eq.n), nil
}
