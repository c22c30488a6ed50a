// Package checkpoint trades memory for recomputation: it decides which
// forward states to retain verbatim and rebuilds the rest by replaying tape
// segments.
//
// Placement is a pluggable Schedule; the store's restore contract holds for
// any schedule, only the recompute cost differs.
package checkpoint

import "fmt"

// Schedule decides where snapshots are placed along an n-record tape.
type Schedule interface {
	// Name identifies the policy in logs and configuration.
	Name() string

	// Offsets returns the record positions to snapshot, strictly
	// increasing, each in [0, n). Position 0 is where the initial
	// (control) state lives.
	Offsets(n int) []int
}

// NoneSchedule retains every forward state. Maximum memory, zero
// recomputation.
type NoneSchedule struct{}

// Name returns "none".
func (NoneSchedule) Name() string { return "none" }

// Offsets returns every position.
func (NoneSchedule) Offsets(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// FixedIntervalSchedule snapshots every Interval records, always including
// position 0.
type FixedIntervalSchedule struct {
	Interval int
}

// Name returns "fixed-interval".
func (s FixedIntervalSchedule) Name() string { return "fixed-interval" }

// Offsets returns 0, k, 2k, ... for interval k (minimum 1).
func (s FixedIntervalSchedule) Offsets(n int) []int {
	k := s.Interval
	if k < 1 {
		k = 1
	}
	var out []int
	for pos := 0; pos < n; pos += k {
		out = append(out, pos)
	}
	return out
}

// BinomialSchedule places a fixed number of snapshots using
// binomial-coefficient segment lengths (the revolve family): with s
// snapshots over n records, the first segment takes C(s+t-1, s) records for
// the smallest t with C(s+t, s) >= n, then recurses with one fewer snapshot.
type BinomialSchedule struct {
	// Snapshots is the number of snapshots to place (minimum 1).
	Snapshots int
}

// Name returns "binomial".
func (s BinomialSchedule) Name() string { return "binomial" }

// Offsets returns the placement positions.
func (s BinomialSchedule) Offsets(n int) []int {
	snaps := s.Snapshots
	if snaps < 1 {
		snaps = 1
	}
	var out []int
	place(0, n, snaps, &out)
	return out
}

// place appends snapshot positions covering [start, start+n).
func place(start, n, snaps int, out *[]int) {
	if n <= 0 {
		return
	}
	*out = append(*out, start)
	if snaps <= 1 || n <= 1 {
		return
	}
	l := advance(n, snaps)
	place(start+l, n-l, snaps-1, out)
}

// advance returns the length of the first segment when distributing snaps
// snapshots over n records.
func advance(n, snaps int) int {
	t := 1
	for binom(snaps+t, snaps) < n {
		t++
	}
	l := binom(snaps+t-1, snaps)
	if l < 1 {
		l = 1
	}
	if l > n-1 {
		l = n - 1
	}
	return l
}

// binom computes C(n, k) without overflow for the small arguments schedules
// use.
func binom(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 0; i < k; i++ {
		c = c * (n - i) / (i + 1)
	}
	return c
}

// String formats a schedule for logs.
func ScheduleString(s Schedule) string {
	switch v := s.(type) {
	case FixedIntervalSchedule:
		return fmt.Sprintf("%s(interval=%d)", v.Name(), v.Interval)
	case BinomialSchedule:
		return fmt.Sprintf("%s(snapshots=%d)", v.Name(), v.Snapshots)
	default:
		return s.Name()
	}
}
