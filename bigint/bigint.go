// Package bigint implements arbitrary-width unsigned integers with a fixed
// declared bitwidth, the representation used for Int slots and simulation
// time throughout actsim.
package bigint

import (
	"fmt"
	"math/big"
)

// Uint is an unsigned integer value constrained to a declared bitwidth W.
// A zero Uint is width 0, value 0 and is only useful as a placeholder.
type Uint struct {
	width uint
	v     *big.Int
}

// New returns a zero-valued Uint of the given width. It takes no initial
// value; FromUint64 and FromBigInt build a non-zero one.
func New(width uint) Uint {
	return Uint{width: width, v: new(big.Int)}
}

// FromUint64 builds a width-bounded Uint from a machine integer. The value
// is not checked against the width; use InRange to validate before storing
// it in a Slot.
func FromUint64(width uint, val uint64) Uint {
	return Uint{width: width, v: new(big.Int).SetUint64(val)}
}

// FromBigInt builds a width-bounded Uint from an existing big.Int. The
// big.Int is copied so the caller retains ownership of the original.
func FromBigInt(width uint, val *big.Int) Uint {
	return Uint{width: width, v: new(big.Int).Set(val)}
}

// Width reports the declared bitwidth.
func (u Uint) Width() uint { return u.width }

// Big returns a copy of the underlying magnitude as a *big.Int.
func (u Uint) Big() *big.Int {
	if u.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(u.v)
}

// Uint64 returns the low 64 bits of the value. Use only when the caller
// knows the width fits.
func (u Uint) Uint64() uint64 {
	if u.v == nil {
		return 0
	}
	return u.v.Uint64()
}

// bound returns 2^width as a big.Int.
func bound(width uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), width)
}

// InRange reports whether the value currently held fits in [0, 2^width).
func (u Uint) InRange() bool {
	if u.v == nil {
		return true
	}
	if u.v.Sign() < 0 {
		return false
	}
	return u.v.Cmp(bound(u.width)) < 0
}

// Mask returns a copy of u with the value reduced modulo 2^width.
func (u Uint) Mask() Uint {
	out := new(big.Int).And(u.v, new(big.Int).Sub(bound(u.width), big.NewInt(1)))
	return Uint{width: u.width, v: out}
}

// WithWidth reasserts the logical bitwidth of the value without touching
// its magnitude. Used when declaring an Int slot from a literal.
func (u Uint) WithWidth(width uint) Uint {
	return Uint{width: width, v: new(big.Int).Set(u.v)}
}

func (u Uint) binop(o Uint, f func(z, x, y *big.Int) *big.Int) Uint {
	w := u.width
	if o.width > w {
		w = o.width
	}
	out := new(big.Int)
	f(out, u.v, o.v)
	return Uint{width: w, v: out}
}

// Add, Sub, Mul, Div, Mod are unsigned arithmetic operations. The result
// keeps the wider of the two operand widths but is not re-masked, except
// that Sub adds 2^w (w being the receiver's width) to a negative
// difference so the result stays non-negative; callers
// writing the result into a Slot must check InRange first (per the
// TypeDomain overflow rule in the simulator's assignment semantics).
func (u Uint) Add(o Uint) Uint { return u.binop(o, func(z, x, y *big.Int) *big.Int { return z.Add(x, y) }) }
func (u Uint) Sub(o Uint) Uint {
	return u.binop(o, func(z, x, y *big.Int) *big.Int {
		z.Sub(x, y)
		if z.Sign() < 0 {
			z.Add(z, bound(u.width))
		}
		return z
	})
}
func (u Uint) Mul(o Uint) Uint { return u.binop(o, func(z, x, y *big.Int) *big.Int { return z.Mul(x, y) }) }

func (u Uint) Div(o Uint) (Uint, error) {
	if o.v.Sign() == 0 {
		return Uint{}, fmt.Errorf("division by zero")
	}
	return u.binop(o, func(z, x, y *big.Int) *big.Int { return z.Div(x, y) }), nil
}

func (u Uint) Mod(o Uint) (Uint, error) {
	if o.v.Sign() == 0 {
		return Uint{}, fmt.Errorf("modulo by zero")
	}
	return u.binop(o, func(z, x, y *big.Int) *big.Int { return z.Mod(x, y) }), nil
}

func (u Uint) And(o Uint) Uint { return u.binop(o, func(z, x, y *big.Int) *big.Int { return z.And(x, y) }) }
func (u Uint) Or(o Uint) Uint  { return u.binop(o, func(z, x, y *big.Int) *big.Int { return z.Or(x, y) }) }
func (u Uint) Xor(o Uint) Uint { return u.binop(o, func(z, x, y *big.Int) *big.Int { return z.Xor(x, y) }) }

// Shl and Shr shift by a machine-sized amount; the declared width of the
// result is unchanged.
func (u Uint) Shl(bits uint) Uint {
	return Uint{width: u.width, v: new(big.Int).Lsh(u.v, bits)}
}
func (u Uint) Shr(bits uint) Uint {
	return Uint{width: u.width, v: new(big.Int).Rsh(u.v, bits)}
}

// Cmp compares magnitudes only (width is ignored), mirroring big.Int.Cmp.
func (u Uint) Cmp(o Uint) int { return u.v.Cmp(o.v) }

// IsZero reports whether the value is zero.
func (u Uint) IsZero() bool { return u.v.Sign() == 0 }

// Bit returns bit i (0 = least significant) of the value.
func (u Uint) Bit(i uint) uint {
	return u.v.Bit(int(i))
}

func (u Uint) String() string {
	if u.v == nil {
		return "0"
	}
	return u.v.String()
}
