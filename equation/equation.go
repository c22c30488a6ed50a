// Copyright 2026 Adjoint ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package equation exposes the equation record interfaces and the built-in
// equation library.
//
// Forward solvers implement Equation (plus the optional Tangent, Adjoint,
// and TangentLinear capabilities) for their own computation steps; the
// built-ins cover common scalar and vector algebra.
package equation

import "github.com/adjoint-ml/adjoint/internal/equation"

// Equation is one recorded forward computation step.
type Equation = equation.Equation

// Tangent is the linearization descriptor capability.
type Tangent = equation.Tangent

// Adjoint is the adjoint descriptor capability.
type Adjoint = equation.Adjoint

// TangentLinear generates derived-tape equations for higher-order
// differentiation.
type TangentLinear = equation.TangentLinear

// Remap locates a base record's variables on a derived tape.
type Remap = equation.Remap

// Term is one coefficient/variable pair of a linear combination.
type Term = equation.Term

// FixedPoint solves coupled component equations by sweep-until-converged
// iteration, recording as a single composite step.
type FixedPoint = equation.FixedPoint

// FixedPointOptions control a fixed-point iteration's tolerances and cap.
type FixedPointOptions = equation.FixedPointOptions

// Built-in equations.
var (
	// NewAssignment creates y = x.
	NewAssignment = equation.NewAssignment
	// NewLinearCombination creates y = Σ cᵢ·xᵢ + offset.
	NewLinearCombination = equation.NewLinearCombination
	// NewScale creates y = α·x.
	NewScale = equation.NewScale
	// NewPower creates y = xᵏ elementwise.
	NewPower = equation.NewPower
	// NewProduct creates y = a ⊙ b elementwise.
	NewProduct = equation.NewProduct
	// NewDot creates the scalar y = ⟨a, b⟩.
	NewDot = equation.NewDot
	// NewSum creates the scalar y = Σ xᵢ.
	NewSum = equation.NewSum
	// NewZero creates y = 0.
	NewZero = equation.NewZero
	// NewFixedPoint creates a composite equation solving coupled
	// components by fixed-point iteration.
	NewFixedPoint = equation.NewFixedPoint
)

// Derivative capability errors.
var (
	ErrMissingAdjointDescriptor = equation.ErrMissingAdjointDescriptor
	ErrMissingTangentDescriptor = equation.ErrMissingTangentDescriptor
)

// ErrFixedPointNotConverged reports a fixed-point iteration that hit its
// iteration cap.
var ErrFixedPointNotConverged = equation.ErrFixedPointNotConverged
