package equation

import (
	"errors"
	"fmt"
	"math"

	"github.com/adjoint-ml/adjoint/internal/variable"
)

// ErrFixedPointNotConverged reports a fixed-point iteration that hit its
// iteration cap before the change norm fell below tolerance.
var ErrFixedPointNotConverged = errors.New("fixed-point iteration did not converge")

// FixedPointOptions control a fixed-point iteration. Convergence is declared
// when the squared change norm over one sweep falls below
// max(atol², rtol²·‖X‖²).
type FixedPointOptions struct {
	// AbsoluteTolerance on the change norm. Defaults to 1e-12.
	AbsoluteTolerance float64

	// RelativeTolerance on the change norm, scaled by the solution norm.
	// Zero disables the relative test.
	RelativeTolerance float64

	// MaxIterations caps the sweep count. Defaults to 1000.
	MaxIterations int
}

func (o FixedPointOptions) withDefaults() FixedPointOptions {
	if o.AbsoluteTolerance == 0 {
		o.AbsoluteTolerance = 1e-12
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 1000
	}
	return o
}

// FixedPoint solves a coupled set of component equations by iteration: one
// sweep computes every component in order, and sweeps repeat until the
// solution stops changing. It records as a single step whose outputs are the
// union of the component outputs and whose inputs are the component
// dependencies no component solves for.
//
// Tangent and adjoint values satisfy fixed points of their own linearized
// systems and are solved by the same sweep-until-converged iteration, the
// adjoint one in reverse component order (Christianson, 'Reverse accumulation
// and attractive fixed points', 1994).
type FixedPoint struct {
	eqs     []Equation
	inputs  []variable.ID
	outputs []variable.ID
	sizes   map[variable.ID]int
	opts    FixedPointOptions
}

// NewFixedPoint creates a composite fixed-point equation over the component
// equations. sizes gives the element count of every component output (needed
// for the zero initial guess). No two components may solve for the same
// variable.
func NewFixedPoint(eqs []Equation, sizes map[variable.ID]int, opts FixedPointOptions) (*FixedPoint, error) {
	if len(eqs) == 0 {
		return nil, fmt.Errorf("fixed-point: no component equations")
	}

	solved := make(map[variable.ID]int, len(eqs))
	var outputs []variable.ID
	for _, eq := range eqs {
		for _, id := range eq.Outputs() {
			if _, dup := solved[id]; dup {
				return nil, fmt.Errorf("fixed-point: variable %d solved by two components", int(id))
			}
			n, ok := sizes[id]
			if !ok || n < 1 {
				return nil, fmt.Errorf("fixed-point: no size for solved variable %d", int(id))
			}
			solved[id] = n
			outputs = append(outputs, id)
		}
	}

	seen := make(map[variable.ID]bool)
	var inputs []variable.ID
	for _, eq := range eqs {
		for _, id := range eq.Inputs() {
			if _, internal := solved[id]; internal || seen[id] {
				continue
			}
			seen[id] = true
			inputs = append(inputs, id)
		}
	}

	return &FixedPoint{
		eqs:     eqs,
		inputs:  inputs,
		outputs: outputs,
		sizes:   solved,
		opts:    opts.withDefaults(),
	}, nil
}

// Inputs returns the external dependencies, in first-appearance order.
func (eq *FixedPoint) Inputs() []variable.ID { return eq.inputs }

// Outputs returns every component's solved variables, in component order.
func (eq *FixedPoint) Outputs() []variable.ID { return eq.outputs }

// vals builds the working value map from the composite's input values.
func (eq *FixedPoint) vals(in []variable.Value) (map[variable.ID]variable.Value, error) {
	if err := wantArgs("fixed-point", len(in), len(eq.inputs)); err != nil {
		return nil, err
	}
	vals := make(map[variable.ID]variable.Value, len(eq.inputs)+len(eq.outputs))
	for i, id := range eq.inputs {
		vals[id] = in[i]
	}
	return vals, nil
}

// gather pulls one component's input values out of the working map.
func gather(ids []variable.ID, vals map[variable.ID]variable.Value) []variable.Value {
	out := make([]variable.Value, len(ids))
	for i, id := range ids {
		out[i] = vals[id]
	}
	return out
}

func normSq(v variable.Value) float64 {
	s, _ := variable.Dot(v, v)
	return s
}

// converged applies the tolerance test to one sweep's squared change norm.
func (eq *FixedPoint) converged(it int, changeSq, solSq float64) (bool, error) {
	if math.IsNaN(changeSq) {
		return false, fmt.Errorf("fixed-point: iteration %d: NaN encountered", it)
	}
	tolSq := eq.opts.AbsoluteTolerance * eq.opts.AbsoluteTolerance
	if eq.opts.RelativeTolerance != 0 {
		tolSq = math.Max(tolSq, solSq*eq.opts.RelativeTolerance*eq.opts.RelativeTolerance)
	}
	return changeSq < tolSq || changeSq == 0, nil
}

// ForwardSolve iterates forward sweeps from a zero initial guess until the
// solution stops changing.
func (eq *FixedPoint) ForwardSolve(in []variable.Value) ([]variable.Value, error) {
	vals, err := eq.vals(in)
	if err != nil {
		return nil, err
	}
	for id, n := range eq.sizes {
		vals[id] = variable.NewValue(n)
	}

	for it := 1; it <= eq.opts.MaxIterations; it++ {
		prev := make(map[variable.ID]variable.Value, len(eq.outputs))
		for _, id := range eq.outputs {
			prev[id] = vals[id]
		}

		for i, comp := range eq.eqs {
			out, err := comp.ForwardSolve(gather(comp.Inputs(), vals))
			if err != nil {
				return nil, fmt.Errorf("fixed-point: component %d: %w", i, err)
			}
			compOut := comp.Outputs()
			if len(out) != len(compOut) {
				return nil, fmt.Errorf("fixed-point: component %d: produced %d outputs, want %d",
					i, len(out), len(compOut))
			}
			for j, id := range compOut {
				if err := wantLen("fixed-point", out[j], eq.sizes[id]); err != nil {
					return nil, err
				}
				vals[id] = out[j]
			}
		}

		changeSq, solSq := 0.0, 0.0
		for _, id := range eq.outputs {
			d := vals[id].Clone()
			if err := d.AddScaled(-1, prev[id]); err != nil {
				return nil, err
			}
			changeSq += normSq(d)
			solSq += normSq(vals[id])
		}
		done, err := eq.converged(it, changeSq, solSq)
		if err != nil {
			return nil, err
		}
		if done {
			result := make([]variable.Value, len(eq.outputs))
			for i, id := range eq.outputs {
				result[i] = vals[id]
			}
			return result, nil
		}
	}
	return nil, fmt.Errorf("fixed-point: after %d iterations: %w",
		eq.opts.MaxIterations, ErrFixedPointNotConverged)
}

// TangentSolve solves the linearized fixed point: the tangent of the solution
// satisfies τX = (∂F/∂X)·τX + (∂F/∂u)·τu, iterated with the primal solution
// held fixed.
func (eq *FixedPoint) TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error) {
	sol, err := eq.ForwardSolve(in)
	if err != nil {
		return nil, err
	}
	vals, err := eq.vals(in)
	if err != nil {
		return nil, err
	}
	for i, id := range eq.outputs {
		vals[id] = sol[i]
	}

	tan := make(map[variable.ID]variable.Value, len(vals))
	for i, id := range eq.inputs {
		if i < len(tanIn) && tanIn[i] != nil {
			tan[id] = tanIn[i]
		} else {
			tan[id] = variable.NewValue(len(in[i]))
		}
	}
	for id, n := range eq.sizes {
		tan[id] = variable.NewValue(n)
	}

	for it := 1; it <= eq.opts.MaxIterations; it++ {
		prev := make(map[variable.ID]variable.Value, len(eq.outputs))
		for _, id := range eq.outputs {
			prev[id] = tan[id]
		}

		for i, comp := range eq.eqs {
			lin, ok := comp.(Tangent)
			if !ok {
				return nil, fmt.Errorf("fixed-point: component %d: %w", i, ErrMissingTangentDescriptor)
			}
			tanOut, err := lin.TangentSolve(gather(comp.Inputs(), vals), gather(comp.Inputs(), tan))
			if err != nil {
				return nil, fmt.Errorf("fixed-point: component %d: %w", i, err)
			}
			compOut := comp.Outputs()
			if len(tanOut) != len(compOut) {
				return nil, fmt.Errorf("fixed-point: component %d: produced %d tangents, want %d",
					i, len(tanOut), len(compOut))
			}
			for j, id := range compOut {
				tan[id] = tanOut[j]
			}
		}

		changeSq, solSq := 0.0, 0.0
		for _, id := range eq.outputs {
			d := tan[id].Clone()
			if err := d.AddScaled(-1, prev[id]); err != nil {
				return nil, err
			}
			changeSq += normSq(d)
			solSq += normSq(tan[id])
		}
		done, err := eq.converged(it, changeSq, solSq)
		if err != nil {
			return nil, err
		}
		if done {
			result := make([]variable.Value, len(eq.outputs))
			for i, id := range eq.outputs {
				result[i] = tan[id]
			}
			return result, nil
		}
	}
	return nil, fmt.Errorf("fixed-point: tangent after %d iterations: %w",
		eq.opts.MaxIterations, ErrFixedPointNotConverged)
}

// AdjointSolve solves the adjoint fixed point λ = w + (∂F/∂X)ᵀ·λ by reverse
// sweeps over the components, then returns each external input's accumulated
// cotangent (∂F/∂u)ᵀ·λ.
func (eq *FixedPoint) AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error) {
	vals, err := eq.vals(in)
	if err != nil {
		return nil, err
	}
	for i, id := range eq.outputs {
		vals[id] = out[i]
	}

	seed := make(map[variable.ID]variable.Value, len(eq.outputs))
	for i, id := range eq.outputs {
		if i < len(outCot) && outCot[i] != nil {
			seed[id] = outCot[i]
		} else {
			seed[id] = variable.NewValue(eq.sizes[id])
		}
	}
	lambda := make(map[variable.ID]variable.Value, len(seed))
	for id, v := range seed {
		lambda[id] = v.Clone()
	}

	for it := 1; it <= eq.opts.MaxIterations; it++ {
		next := make(map[variable.ID]variable.Value, len(seed))
		for id, v := range seed {
			next[id] = v.Clone()
		}
		ext := make(map[variable.ID]variable.Value, len(eq.inputs))

		for i := len(eq.eqs) - 1; i >= 0; i-- {
			comp := eq.eqs[i]
			adj, ok := comp.(Adjoint)
			if !ok {
				return nil, fmt.Errorf("fixed-point: component %d: %w", i, ErrMissingAdjointDescriptor)
			}
			compIn := comp.Inputs()
			inCot, err := adj.AdjointSolve(
				gather(compIn, vals), gather(comp.Outputs(), vals), gather(comp.Outputs(), lambda))
			if err != nil {
				return nil, fmt.Errorf("fixed-point: component %d: %w", i, err)
			}
			if len(inCot) > len(compIn) {
				return nil, fmt.Errorf("fixed-point: component %d: produced %d input cotangents, want at most %d",
					i, len(inCot), len(compIn))
			}
			for j, v := range inCot {
				if v == nil {
					continue
				}
				id := compIn[j]
				if _, internal := eq.sizes[id]; internal {
					if err := next[id].Add(v); err != nil {
						return nil, err
					}
				} else if cur, held := ext[id]; held {
					if err := cur.Add(v); err != nil {
						return nil, err
					}
				} else {
					ext[id] = v.Clone()
				}
			}
		}

		changeSq, solSq := 0.0, 0.0
		for id, v := range next {
			d := v.Clone()
			if err := d.AddScaled(-1, lambda[id]); err != nil {
				return nil, err
			}
			changeSq += normSq(d)
			solSq += normSq(v)
		}
		lambda = next
		done, err := eq.converged(it, changeSq, solSq)
		if err != nil {
			return nil, err
		}
		if done {
			result := make([]variable.Value, len(eq.inputs))
			for i, id := range eq.inputs {
				result[i] = ext[id]
			}
			return result, nil
		}
	}
	return nil, fmt.Errorf("fixed-point: adjoint after %d iterations: %w",
		eq.opts.MaxIterations, ErrFixedPointNotConverged)
}

// TangentLinearEquation generates the tangent fixed point on a derived tape:
// a FixedPoint over the components' tangent-linear equations, solving for
// the tangent slots of the solved variables.
func (eq *FixedPoint) TangentLinearEquation(m Remap) (Equation, error) {
	teqs := make([]Equation, len(eq.eqs))
	for i, comp := range eq.eqs {
		tl, ok := comp.(TangentLinear)
		if !ok {
			return nil, fmt.Errorf("fixed-point: component %d: %w", i, ErrMissingTangentDescriptor)
		}
		teq, err := tl.TangentLinearEquation(m)
		if err != nil {
			return nil, fmt.Errorf("fixed-point: component %d: %w", i, err)
		}
		teqs[i] = teq
	}
	sizes := make(map[variable.ID]int, len(eq.sizes))
	for id, n := range eq.sizes {
		sizes[m.Tangent(id)] = n
	}
	return NewFixedPoint(teqs, sizes, eq.opts)
}
