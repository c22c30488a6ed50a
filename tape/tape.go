// Copyright 2026 Adjoint ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tape exposes the equation-recording tape and its variable model.
//
// A tape is the append-only ordered log of equation records produced during
// a forward run. Controls and intermediates are registered on the tape,
// records appended in execution order, then the tape is frozen for replay.
package tape

import (
	"github.com/adjoint-ml/adjoint/internal/tape"
	"github.com/adjoint-ml/adjoint/internal/variable"
)

// Tape is the append-only equation record log.
type Tape = tape.Tape

// Record is one immutable tape entry.
type Record = tape.Record

// New creates an open, empty tape. A nil logger defaults to slog.Default().
var New = tape.New

// ID identifies a variable within one tape.
type ID = variable.ID

// Value is a variable's numeric payload; scalars are length-1.
type Value = variable.Value

// State maps variables to values during replay or inside a snapshot.
type State = variable.State

// Ref is a registered variable's immutable metadata.
type Ref = variable.Ref

// Scalar wraps a float64 as a length-1 value.
func Scalar(x float64) Value {
	return variable.Scalar(x)
}

// NewValue returns a zero value of the given length.
func NewValue(n int) Value {
	return variable.NewValue(n)
}

// Dot returns the inner product of two equal-length values.
var Dot = variable.Dot

// Tape usage errors.
var (
	ErrUnregisteredVariable = tape.ErrUnregisteredVariable
	ErrVariableReassigned   = tape.ErrVariableReassigned
	ErrTapeClosed           = tape.ErrTapeClosed
	ErrSegmentBounds        = tape.ErrSegmentBounds
	ErrShapeMismatch        = variable.ErrShapeMismatch
)
