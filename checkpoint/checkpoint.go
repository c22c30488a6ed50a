// Copyright 2026 Adjoint ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint exposes the checkpoint store and its placement
// schedules.
//
// The store trades memory for recomputation: it retains a policy-chosen
// subset of forward states and rebuilds the rest by deterministic replay,
// verifying recomputed states against checksums captured during the
// original run.
package checkpoint

import "github.com/adjoint-ml/adjoint/internal/checkpoint"

// Store caches forward states for one frozen tape.
type Store = checkpoint.Store

// Options configures a Store.
type Options = checkpoint.Options

// New creates a store for a frozen tape.
var New = checkpoint.New

// Schedule decides snapshot placement along a tape.
type Schedule = checkpoint.Schedule

// NoneSchedule retains every forward state.
type NoneSchedule = checkpoint.NoneSchedule

// FixedIntervalSchedule snapshots every Interval records.
type FixedIntervalSchedule = checkpoint.FixedIntervalSchedule

// BinomialSchedule places a fixed snapshot count with binomial segment
// lengths (the revolve family).
type BinomialSchedule = checkpoint.BinomialSchedule

// OnExceed selects the behavior at the storage budget.
type OnExceed = checkpoint.OnExceed

// Budget policies.
const (
	OnExceedEvictOldest = checkpoint.OnExceedEvictOldest
	OnExceedFail        = checkpoint.OnExceedFail
)

// Checkpoint errors.
var (
	ErrCheckpointCapacityExceeded = checkpoint.ErrCheckpointCapacityExceeded
	ErrUnrestorableState          = checkpoint.ErrUnrestorableState
	ErrNonDeterministicReplay     = checkpoint.ErrNonDeterministicReplay
)
