package equation

import "github.com/adjoint-ml/adjoint/internal/variable"

// Dot computes the inner product y = ⟨a, b⟩, producing a scalar output.
//
// Tangent: τy = ⟨a, τb⟩ + ⟨b, τa⟩.
// Adjoint: cot_a = w·b, cot_b = w·a for the scalar output cotangent w.
type Dot struct {
	a, b, y variable.ID
	n       int
}

// NewDot creates the scalar y = ⟨a, b⟩ over n-element operands.
func NewDot(y, a, b variable.ID, n int) *Dot {
	return &Dot{a: a, b: b, y: y, n: n}
}

// Inputs returns [a, b].
func (eq *Dot) Inputs() []variable.ID { return []variable.ID{eq.a, eq.b} }

// Outputs returns [y].
func (eq *Dot) Outputs() []variable.ID { return []variable.ID{eq.y} }

// ForwardSolve computes y = ⟨a, b⟩.
func (eq *Dot) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("dot", len(in), 2); err != nil {
		return nil, err
	}
	if err := wantLen("dot", in[0], eq.n); err != nil {
		return nil, err
	}
	d, err := variable.Dot(in[0], in[1])
	if err != nil {
		return nil, err
	}
	return []variable.Value{variable.Scalar(d)}, nil
}

// TangentSolve computes τy = ⟨a, τb⟩ + ⟨b, τa⟩.
func (eq *Dot) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	d1, err := variable.Dot(in[0], tanIn[1])
	if err != nil {
		return nil, err
	}
	d2, err := variable.Dot(in[1], tanIn[0])
	if err != nil {
		return nil, err
	}
	return []variable.Value{variable.Scalar(d1 + d2)}, nil
}

// AdjointSolve computes cot_a = w·b and cot_b = w·a.
func (eq *Dot) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("dot", outCot[0], 1); err != nil {
		return nil, err
	}
	w := outCot[0].Scalar()
	ca := variable.NewValue(eq.n)
	cb := variable.NewValue(eq.n)
	if err := ca.AddScaled(w, in[1]); err != nil {
		return nil, err
	}
	if err := cb.AddScaled(w, in[0]); err != nil {
		return nil, err
	}
	return []variable.Value{ca, cb}, nil
}

// TangentLinearEquation generates τy = ⟨a, τb⟩ + ⟨b, τa⟩ on a derived tape.
func (eq *Dot) TangentLinearEquation(m Remap) (Equation, error) {
	return &dotTangent{
		a:  m.Primal(eq.a),
		b:  m.Primal(eq.b),
		da: m.Tangent(eq.a),
		db: m.Tangent(eq.b),
		dy: m.Tangent(eq.y),
		n:  eq.n,
	}, nil
}

// dotTangent is the tangent of Dot on a derived tape: dy = ⟨a,db⟩ + ⟨b,da⟩.
type dotTangent struct {
	a, b, da, db, dy variable.ID
	n                int
}

func (eq *dotTangent) Inputs() []variable.ID {
	return []variable.ID{eq.a, eq.b, eq.da, eq.db}
}

func (eq *dotTangent) Outputs() []variable.ID { return []variable.ID{eq.dy} }

func (eq *dotTangent) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("dot-tangent", len(in), 4); err != nil {
		return nil, err
	}
	d1, err := variable.Dot(in[0], in[3])
	if err != nil {
		return nil, err
	}
	d2, err := variable.Dot(in[1], in[2])
	if err != nil {
		return nil, err
	}
	return []variable.Value{variable.Scalar(d1 + d2)}, nil
}

func (eq *dotTangent) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	total := 0.0
	pairs := [][2]variable.Value{
		{tanIn[0], in[3]}, {in[0], tanIn[3]},
		{tanIn[1], in[2]}, {in[1], tanIn[2]},
	}
	for _, p := range pairs {
		d, err := variable.Dot(p[0], p[1])
		if err != nil {
			return nil, err
		}
		total += d
	}
	return []variable.Value{variable.Scalar(total)}, nil
}

func (eq *dotTangent) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("dot-tangent", outCot[0], 1); err != nil {
		return nil, err
	}
	w := outCot[0].Scalar()
	cots := make([]variable.Value, 4)
	// ∂dy/∂a = db, ∂dy/∂b = da, ∂dy/∂da = b, ∂dy/∂db = a
	sources := []variable.Value{in[3], in[2], in[1], in[0]}
	for i, src := range sources {
		c := variable.NewValue(eq.n)
		if err := c.AddScaled(w, src); err != nil {
			return nil, err
		}
		cots[i] = c
	}
	return cots, nil
}
