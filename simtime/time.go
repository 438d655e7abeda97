// Package simtime implements the monotonic, arbitrary-precision
// simulation clock. Scheduling arithmetic is always integer; a
// real-valued timescale is tracked separately, purely for display.
package simtime

import "math/big"

// Time is a non-negative arbitrary-precision tick count.
type Time struct {
	v *big.Int
}

// Zero is simulation time 0.
var Zero = Time{v: big.NewInt(0)}

// FromInt64 builds a Time from a non-negative int64.
func FromInt64(n int64) Time {
	return Time{v: big.NewInt(n)}
}

func (t Time) big() *big.Int {
	if t.v == nil {
		return big.NewInt(0)
	}
	return t.v
}

// Add returns t + delta.
func (t Time) Add(delta Time) Time {
	return Time{v: new(big.Int).Add(t.big(), delta.big())}
}

// AddInt64 returns t + delta where delta is a non-negative tick count.
func (t Time) AddInt64(delta int64) Time {
	return Time{v: new(big.Int).Add(t.big(), big.NewInt(delta))}
}

// Cmp compares two Time values, returning -1, 0 or +1.
func (t Time) Cmp(o Time) int {
	return t.big().Cmp(o.big())
}

// Before reports whether t < o.
func (t Time) Before(o Time) bool { return t.Cmp(o) < 0 }

// Int64 returns the value truncated to an int64; callers that need
// arbitrary precision should use Big instead.
func (t Time) Int64() int64 { return t.big().Int64() }

// Big returns a copy of the underlying big.Int.
func (t Time) Big() *big.Int { return new(big.Int).Set(t.big()) }

func (t Time) String() string { return t.big().String() }
