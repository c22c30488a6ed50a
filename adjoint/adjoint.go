// Copyright 2026 Adjoint ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package adjoint provides the external derivative API: tape lifecycle,
// gradient (reverse-mode) and tangent-linear (forward-mode) computation with
// checkpointed replay.
//
// Example:
//
//	import (
//	    "github.com/adjoint-ml/adjoint/adjoint"
//	    "github.com/adjoint-ml/adjoint/equation"
//	    "github.com/adjoint-ml/adjoint/tape"
//	)
//
//	func main() {
//	    mgr := adjoint.New(adjoint.Options{})
//	    tp, _ := mgr.BeginTape()
//	    x, _ := tp.Control("x", tape.Scalar(4))
//	    y, _ := tp.Declare("y", 1)
//	    tp.Record(equation.NewScale(y, x, 2, 1))
//	    mgr.EndTape(ctx)
//
//	    grad, _ := mgr.ComputeGradient(ctx,
//	        []tape.ID{y}, []tape.ID{x},
//	        map[tape.ID]tape.Value{y: tape.Scalar(1)})
//	    _ = grad[x] // dy/dx = 2
//	}
package adjoint

import (
	"github.com/adjoint-ml/adjoint/internal/equation"
	"github.com/adjoint-ml/adjoint/internal/manager"
	"github.com/adjoint-ml/adjoint/internal/reverse"
	"github.com/adjoint-ml/adjoint/internal/tangent"
)

// Manager is the engine's execution context: it owns at most one tape at a
// time and exposes the derivative API over it.
type Manager = manager.Manager

// Options configures a Manager.
type Options = manager.Options

// New creates a Manager.
func New(opts Options) *Manager {
	return manager.New(opts)
}

// TangentMaps relates base-tape variables to their slots on a derived tape.
type TangentMaps = tangent.Maps

// Cotangents is the per-variable adjoint accumulation of one reverse pass.
type Cotangents = reverse.Cotangents

// Manager lifecycle errors.
var (
	ErrTapeActive = manager.ErrTapeActive
	ErrNoTape     = manager.ErrNoTape
	ErrTapeOpen   = manager.ErrTapeOpen
)

// Derivative capability errors.
var (
	ErrMissingAdjointDescriptor = equation.ErrMissingAdjointDescriptor
	ErrMissingTangentDescriptor = equation.ErrMissingTangentDescriptor
)
