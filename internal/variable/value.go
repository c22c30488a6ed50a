package variable

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrShapeMismatch reports a value whose length disagrees with the variable
// it is bound to, detected at solve or seed time.
var ErrShapeMismatch = errors.New("value shape mismatch")

// Value is the numeric payload of a variable: a dense float64 vector.
// Scalars are length-1 values.
type Value []float64

// NewValue returns a zero value of the given length.
func NewValue(n int) Value {
	return make(Value, n)
}

// Scalar wraps a float64 as a length-1 value.
func Scalar(x float64) Value {
	return Value{x}
}

// Clone returns an independent copy.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	copy(out, v)
	return out
}

// Scalar returns the single element of a length-1 value.
// Panics on other lengths; callers validate shapes first.
func (v Value) Scalar() float64 {
	if len(v) != 1 {
		panic(fmt.Sprintf("variable: Scalar() on value of length %d", len(v)))
	}
	return v[0]
}

// IsZero reports whether every element is exactly zero.
func (v Value) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// AddScaled accumulates alpha*w into v in place.
func (v Value) AddScaled(alpha float64, w Value) error {
	if len(v) != len(w) {
		return fmt.Errorf("%w: add-scaled %d into %d", ErrShapeMismatch, len(w), len(v))
	}
	floats.AddScaled(v, alpha, w)
	return nil
}

// Add accumulates w into v in place.
func (v Value) Add(w Value) error {
	if len(v) != len(w) {
		return fmt.Errorf("%w: add %d into %d", ErrShapeMismatch, len(w), len(v))
	}
	floats.Add(v, w)
	return nil
}

// Scale multiplies v by alpha in place.
func (v Value) Scale(alpha float64) {
	floats.Scale(alpha, v)
}

// Dot returns the inner product of two values of equal length.
func Dot(a, b Value) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dot of %d with %d", ErrShapeMismatch, len(a), len(b))
	}
	return floats.Dot(a, b), nil
}

// State maps variable IDs to their current values during a forward replay or
// inside a checkpoint snapshot.
type State map[ID]Value

// Clone deep-copies the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for id, v := range s {
		out[id] = v.Clone()
	}
	return out
}

// Set stores an independent copy of v under id.
func (s State) Set(id ID, v Value) {
	s[id] = v.Clone()
}
