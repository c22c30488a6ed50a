// Package equation defines the equation record interfaces and a library of
// built-in equations for the tape engine.
//
// An Equation describes one forward computation step: which variables it
// reads, which it assigns, and how to re-execute it deterministically.
// Derivative behavior is expressed through optional capabilities detected by
// interface assertion:
//   - Tangent: propagate directional derivatives through the step
//   - Adjoint: push an output cotangent back to input cotangents
//   - TangentLinear: generate a new equation for a derived (higher-order) tape
//
// Forward solvers register their own Equation implementations; the built-in
// library (Assignment, LinearCombination, Power, Product, Dot, Scale, Sum,
// Zero, FixedPoint) covers common scalar and vector steps.
package equation

import (
	"errors"
	"fmt"

	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Derivative capability errors, surfaced by the evaluators with the tape
// position at fault.
var (
	// ErrMissingAdjointDescriptor reports a record whose equation cannot
	// compute input cotangents.
	ErrMissingAdjointDescriptor = errors.New("equation has no adjoint descriptor")

	// ErrMissingTangentDescriptor reports a record whose equation cannot
	// propagate a directional derivative.
	ErrMissingTangentDescriptor = errors.New("equation has no tangent descriptor")
)

// Equation is one recorded forward computation step.
//
// ForwardSolve must be deterministic: identical inputs produce bit-identical
// outputs. Checkpoint recomputation relies on this contract.
type Equation interface {
	// Inputs returns the variables the step reads, in descriptor order.
	Inputs() []variable.ID

	// Outputs returns the variables the step assigns, in descriptor order.
	Outputs() []variable.ID

	// ForwardSolve computes output values from input values. The in slice
	// matches Inputs() order; the returned slice matches Outputs() order.
	ForwardSolve(in []variable.Value) ([]variable.Value, error)
}

// Tangent is the linearization descriptor: given input values and input
// tangents, compute output tangents. Linearity in tanIn is required.
type Tangent interface {
	Equation

	// TangentSolve computes output tangents. in and tanIn both match
	// Inputs() order; the result matches Outputs() order.
	TangentSolve(in, tanIn []variable.Value) ([]variable.Value, error)
}

// Adjoint is the adjoint descriptor: given the step's forward input/output
// values and a cotangent for each output, compute input cotangents.
type Adjoint interface {
	Equation

	// AdjointSolve computes input cotangents. outCot matches Outputs()
	// order (entries are zero values for outputs without a cotangent);
	// the result matches Inputs() order. A nil entry in the result means
	// no cotangent flows to that input.
	AdjointSolve(in, out, outCot []variable.Value) ([]variable.Value, error)
}

// Remap describes where a base record's variables live on a derived tape:
// Primal maps a base variable to its replayed primal slot, Tangent maps it
// to its tangent slot.
type Remap struct {
	Primal  func(variable.ID) variable.ID
	Tangent func(variable.ID) variable.ID
}

// TangentLinear generates the equation that propagates this step's tangent
// on a derived tape, enabling tape-of-a-tape differentiation. The generated
// equation assigns the tangent of each output and may read both primal and
// tangent slots.
type TangentLinear interface {
	Equation

	TangentLinearEquation(m Remap) (Equation, error)
}

// wantArgs validates the number of values handed to a descriptor.
func wantArgs(eq string, got, want int) error {
	if got != want {
		return fmt.Errorf("%s: got %d values, want %d", eq, got, want)
	}
	return nil
}

// wantLen validates one value's length against the equation's element count.
func wantLen(eq string, v variable.Value, n int) error {
	if len(v) != n {
		return fmt.Errorf("%s: %w: got length %d, want %d", eq, variable.ErrShapeMismatch, len(v), n)
	}
	return nil
}
