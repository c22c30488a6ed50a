package equation

import "github.com/adjoint-ml/adjoint/internal/variable"

// Product computes y = a ⊙ b elementwise.
//
// Tangent: τy = a⊙τb + b⊙τa.
// Adjoint: cot_a = b⊙cot_y, cot_b = a⊙cot_y.
type Product struct {
	a, b, y variable.ID
	n       int
}

// NewProduct creates y = a ⊙ b over n elements.
func NewProduct(y, a, b variable.ID, n int) *Product {
	return &Product{a: a, b: b, y: y, n: n}
}

// Inputs returns [a, b].
func (eq *Product) Inputs() []variable.ID { return []variable.ID{eq.a, eq.b} }

// Outputs returns [y].
func (eq *Product) Outputs() []variable.ID { return []variable.ID{eq.y} }

// ForwardSolve computes y = a ⊙ b.
func (eq *Product) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("product", len(in), 2); err != nil {
		return nil, err
	}
	if err := wantLen("product", in[0], eq.n); err != nil {
		return nil, err
	}
	if err := wantLen("product", in[1], eq.n); err != nil {
		return nil, err
	}
	y := variable.NewValue(eq.n)
	for i := range y {
		y[i] = in[0][i] * in[1][i]
	}
	return []variable.Value{y}, nil
}

// TangentSolve computes τy = a⊙τb + b⊙τa.
func (eq *Product) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	ty := variable.NewValue(eq.n)
	for i := range ty {
		ty[i] = in[0][i]*tanIn[1][i] + in[1][i]*tanIn[0][i]
	}
	return []variable.Value{ty}, nil
}

// AdjointSolve computes cot_a = b⊙w and cot_b = a⊙w.
func (eq *Product) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("product", outCot[0], eq.n); err != nil {
		return nil, err
	}
	ca := variable.NewValue(eq.n)
	cb := variable.NewValue(eq.n)
	for i := range ca {
		ca[i] = in[1][i] * outCot[0][i]
		cb[i] = in[0][i] * outCot[0][i]
	}
	return []variable.Value{ca, cb}, nil
}

// TangentLinearEquation generates τy = a⊙τb + b⊙τa on a derived tape.
func (eq *Product) TangentLinearEquation(m Remap) (Equation, error) {
	return &productTangent{
		a:  m.Primal(eq.a),
		b:  m.Primal(eq.b),
		da: m.Tangent(eq.a),
		db: m.Tangent(eq.b),
		dy: m.Tangent(eq.y),
		n:  eq.n,
	}, nil
}

// productTangent is the tangent of Product on a derived tape:
// dy = a⊙db + b⊙da.
type productTangent struct {
	a, b, da, db, dy variable.ID
	n                int
}

func (eq *productTangent) Inputs() []variable.ID {
	return []variable.ID{eq.a, eq.b, eq.da, eq.db}
}

func (eq *productTangent) Outputs() []variable.ID { return []variable.ID{eq.dy} }

func (eq *productTangent) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	if err := wantArgs("product-tangent", len(in), 4); err != nil {
		return nil, err
	}
	for _, v := range in {
		if err := wantLen("product-tangent", v, eq.n); err != nil {
			return nil, err
		}
	}
	dy := variable.NewValue(eq.n)
	for i := range dy {
		dy[i] = in[0][i]*in[3][i] + in[1][i]*in[2][i]
	}
	return []variable.Value{dy}, nil
}

func (eq *productTangent) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	dy := variable.NewValue(eq.n)
	for i := range dy {
		dy[i] = tanIn[0][i]*in[3][i] + in[0][i]*tanIn[3][i] +
			tanIn[1][i]*in[2][i] + in[1][i]*tanIn[2][i]
	}
	return []variable.Value{dy}, nil
}

func (eq *productTangent) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	if err := wantLen("product-tangent", outCot[0], eq.n); err != nil {
		return nil, err
	}
	ca := variable.NewValue(eq.n)
	cb := variable.NewValue(eq.n)
	cda := variable.NewValue(eq.n)
	cdb := variable.NewValue(eq.n)
	for i := range ca {
		w := outCot[0][i]
		ca[i] = in[3][i] * w
		cb[i] = in[2][i] * w
		cda[i] = in[1][i] * w
		cdb[i] = in[0][i] * w
	}
	return []variable.Value{ca, cb, cda, cdb}, nil
}
