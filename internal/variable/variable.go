// Package variable defines the variable identity and value model used by the
// tape engine.
//
// A Variable is a named, versionless numeric slot: either a control (an
// externally supplied input that derivatives are requested with respect to)
// or an intermediate assigned by exactly one equation record. The engine
// never interprets values beyond their length; all numerics live in the
// equations themselves.
package variable

import "fmt"

// ID identifies a variable within one tape. IDs are dense integers assigned
// in registration order.
type ID int

// Invalid marks the absence of a variable; it is never assigned during
// registration.
const Invalid ID = -1

// Kind distinguishes externally supplied controls from equation outputs.
type Kind int

const (
	// Control is an externally supplied input variable.
	Control Kind = iota
	// Intermediate is assigned by exactly one equation record.
	Intermediate
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case Control:
		return "control"
	case Intermediate:
		return "intermediate"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Ref is the immutable metadata for a registered variable.
type Ref struct {
	id     ID
	name   string
	length int
	kind   Kind
}

// NewRef creates variable metadata. Used by the tape during registration.
func NewRef(id ID, name string, length int, kind Kind) *Ref {
	return &Ref{id: id, name: name, length: length, kind: kind}
}

// ID returns the variable's identity.
func (r *Ref) ID() ID { return r.id }

// Name returns the registration name.
func (r *Ref) Name() string { return r.name }

// Len returns the number of elements in the variable's value.
func (r *Ref) Len() int { return r.length }

// Kind returns whether the variable is a control or an intermediate.
func (r *Ref) Kind() Kind { return r.kind }

// IsControl reports whether the variable is an externally supplied input.
func (r *Ref) IsControl() bool { return r.kind == Control }

// String formats the ref for logs and error messages.
func (r *Ref) String() string {
	return fmt.Sprintf("%s#%d(%s,len=%d)", r.name, int(r.id), r.kind, r.length)
}
