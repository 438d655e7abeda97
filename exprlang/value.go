// Package exprlang compiles and evaluates the small pure-expression
// language used for CHP/HSE guards, assignment right-hand sides and PRS
// rule guards: no statements, no functions, no loops, just ternary
// Boolean and fixed-width unsigned integer arithmetic over named
// variables supplied by an Env at evaluation time.
package exprlang

import (
	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// Kind distinguishes which half of a Value is live.
type Kind int

const (
	KindBool Kind = iota
	KindInt
)

// Value is the tagged union every expression evaluates to. Int values
// carry a Lit flag: a bare integer literal has no fixed width of its
// own and takes on its partner's width the first time it meets one in a
// binary operation, defaulting to defaultLitWidth if both sides are
// literals.
type Value struct {
	Kind Kind
	Bool state.Tern
	Int  bigint.Uint
	Lit  bool
}

const defaultLitWidth = 64

func BoolValue(t state.Tern) Value { return Value{Kind: KindBool, Bool: t} }

func IntValue(v bigint.Uint) Value { return Value{Kind: KindInt, Int: v} }

func LitValue(v int64) Value {
	return Value{Kind: KindInt, Int: bigint.FromUint64(defaultLitWidth, uint64(v)), Lit: true}
}

func (v Value) String() string {
	if v.Kind == KindBool {
		return v.Bool.String()
	}
	return v.Int.String()
}

func wantBool(v Value) (state.Tern, error) {
	if v.Kind != KindBool {
		return 0, simerr.New(simerr.TypeDomain, "expected a Bool value, got an Int")
	}
	return v.Bool, nil
}

func wantInt(v Value) (bigint.Uint, error) {
	if v.Kind != KindInt {
		return bigint.Uint{}, simerr.New(simerr.TypeDomain, "expected an Int value, got a Bool")
	}
	return v.Int, nil
}

// reconcile picks a common width for a binary Int operation, promoting
// whichever side is a bare literal to the other side's declared width.
func reconcile(a, b bigint.Uint, aLit, bLit bool) (bigint.Uint, bigint.Uint) {
	switch {
	case aLit && !bLit:
		return a.WithWidth(b.Width()), b
	case bLit && !aLit:
		return a, b.WithWidth(a.Width())
	default:
		return a, b
	}
}

func notTern(t state.Tern) state.Tern {
	switch t {
	case state.Zero:
		return state.One
	case state.One:
		return state.Zero
	default:
		return state.X
	}
}

func andTern(a, b state.Tern) state.Tern {
	if a == state.Zero || b == state.Zero {
		return state.Zero
	}
	if a == state.X || b == state.X {
		return state.X
	}
	return state.One
}

func orTern(a, b state.Tern) state.Tern {
	if a == state.One || b == state.One {
		return state.One
	}
	if a == state.X || b == state.X {
		return state.X
	}
	return state.Zero
}

func ternFromBool(b bool) state.Tern {
	if b {
		return state.One
	}
	return state.Zero
}

// Not implements ternary negation.
func Not(v Value) (Value, error) {
	b, err := wantBool(v)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(notTern(b)), nil
}

// And, Or implement ternary conjunction/disjunction.
func And(a, b Value) (Value, error) {
	ba, err := wantBool(a)
	if err != nil {
		return Value{}, err
	}
	bb, err := wantBool(b)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(andTern(ba, bb)), nil
}

func Or(a, b Value) (Value, error) {
	ba, err := wantBool(a)
	if err != nil {
		return Value{}, err
	}
	bb, err := wantBool(b)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(orTern(ba, bb)), nil
}

// Neg implements unary two's-complement negation: 0 - v.
func Neg(v Value) (Value, error) {
	iv, err := wantInt(v)
	if err != nil {
		return Value{}, err
	}
	zero := bigint.New(iv.Width())
	return IntValue(zero.Sub(iv)), nil
}

type arith func(bigint.Uint, bigint.Uint) (bigint.Uint, error)

func arithOp(a, b Value, f arith) (Value, error) {
	ia, err := wantInt(a)
	if err != nil {
		return Value{}, err
	}
	ib, err := wantInt(b)
	if err != nil {
		return Value{}, err
	}
	ia, ib = reconcile(ia, ib, a.Lit, b.Lit)
	r, err := f(ia, ib)
	if err != nil {
		return Value{}, err
	}
	return IntValue(r), nil
}

func Add(a, b Value) (Value, error) {
	return arithOp(a, b, func(x, y bigint.Uint) (bigint.Uint, error) { return x.Add(y), nil })
}

func Sub(a, b Value) (Value, error) {
	return arithOp(a, b, func(x, y bigint.Uint) (bigint.Uint, error) { return x.Sub(y), nil })
}

func Mul(a, b Value) (Value, error) {
	return arithOp(a, b, func(x, y bigint.Uint) (bigint.Uint, error) { return x.Mul(y), nil })
}

func Div(a, b Value) (Value, error) {
	return arithOp(a, b, func(x, y bigint.Uint) (bigint.Uint, error) { return x.Div(y) })
}

func Mod(a, b Value) (Value, error) {
	return arithOp(a, b, func(x, y bigint.Uint) (bigint.Uint, error) { return x.Mod(y) })
}

func BitAnd(a, b Value) (Value, error) {
	return arithOp(a, b, func(x, y bigint.Uint) (bigint.Uint, error) { return x.And(y), nil })
}

func BitOr(a, b Value) (Value, error) {
	return arithOp(a, b, func(x, y bigint.Uint) (bigint.Uint, error) { return x.Or(y), nil })
}

func BitXor(a, b Value) (Value, error) {
	return arithOp(a, b, func(x, y bigint.Uint) (bigint.Uint, error) { return x.Xor(y), nil })
}

func Shl(a, b Value) (Value, error) {
	ia, err := wantInt(a)
	if err != nil {
		return Value{}, err
	}
	ib, err := wantInt(b)
	if err != nil {
		return Value{}, err
	}
	return IntValue(ia.Shl(uint(ib.Uint64()))), nil
}

func Shr(a, b Value) (Value, error) {
	ia, err := wantInt(a)
	if err != nil {
		return Value{}, err
	}
	ib, err := wantInt(b)
	if err != nil {
		return Value{}, err
	}
	return IntValue(ia.Shr(uint(ib.Uint64()))), nil
}

func cmp(a, b Value) (int, error) {
	ia, err := wantInt(a)
	if err != nil {
		return 0, err
	}
	ib, err := wantInt(b)
	if err != nil {
		return 0, err
	}
	ia, ib = reconcile(ia, ib, a.Lit, b.Lit)
	return ia.Cmp(ib), nil
}

func Lt(a, b Value) (Value, error) {
	c, err := cmp(a, b)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(ternFromBool(c < 0)), nil
}

func Le(a, b Value) (Value, error) {
	c, err := cmp(a, b)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(ternFromBool(c <= 0)), nil
}

func Gt(a, b Value) (Value, error) {
	c, err := cmp(a, b)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(ternFromBool(c > 0)), nil
}

func Ge(a, b Value) (Value, error) {
	c, err := cmp(a, b)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(ternFromBool(c >= 0)), nil
}

// Eq, Neq compare either Bool or Int operands, as long as both sides
// agree on kind.
func Eq(a, b Value) (Value, error) {
	if a.Kind != b.Kind {
		return Value{}, simerr.New(simerr.TypeDomain, "cannot compare a Bool to an Int")
	}
	if a.Kind == KindBool {
		return BoolValue(ternFromBool(a.Bool == b.Bool)), nil
	}
	c, err := cmp(a, b)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(ternFromBool(c == 0)), nil
}

func Neq(a, b Value) (Value, error) {
	v, err := Eq(a, b)
	if err != nil {
		return Value{}, err
	}
	return Not(v)
}

func (k Kind) String() string {
	if k == KindBool {
		return "Bool"
	}
	return "Int"
}
