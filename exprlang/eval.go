package exprlang

import (
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// Env resolves the free variables and probe() calls a compiled Program
// references. The chp and prs packages each implement this over their
// own notion of "current scope" (a thread's local variables plus the
// enclosing instance, or a PRS node's fanin set).
type Env interface {
	Get(name string) (Value, error)
	Probe(channelName string, fromSenderSide bool) (bool, error)
}

// Eval runs p against env using a small value stack, returning the
// single value the expression reduces to.
func Eval(p *Program, env Env) (Value, error) {
	var stack []Value
	push := func(v Value) { stack = append(stack, v) }
	pop := func() (Value, error) {
		if len(stack) == 0 {
			return Value{}, simerr.New(simerr.Usage, "expression %q: stack underflow", p.Source)
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}
	pop2 := func() (Value, Value, error) {
		b, err := pop()
		if err != nil {
			return Value{}, Value{}, err
		}
		a, err := pop()
		if err != nil {
			return Value{}, Value{}, err
		}
		return a, b, nil
	}

	pc := 0
	for pc < len(p.Code) {
		op := p.Code[pc]
		switch op.Code {
		case PUSH_BOOL:
			if op.Arg == nil {
				push(BoolValue(state.X))
			} else if op.Arg.(bool) {
				push(BoolValue(state.One))
			} else {
				push(BoolValue(state.Zero))
			}
		case PUSH_INT:
			push(LitValue(op.Arg.(int64)))
		case LOAD:
			v, err := env.Get(op.Arg.(string))
			if err != nil {
				return Value{}, err
			}
			push(v)
		case PROBE:
			pa := op.Arg.(ProbeArg)
			ok, err := env.Probe(pa.Name, pa.FromSender)
			if err != nil {
				return Value{}, err
			}
			push(BoolValue(ternFromBool(ok)))
		case NOT:
			a, err := pop()
			if err != nil {
				return Value{}, err
			}
			v, err := Not(a)
			if err != nil {
				return Value{}, err
			}
			push(v)
		case NEG:
			a, err := pop()
			if err != nil {
				return Value{}, err
			}
			v, err := Neg(a)
			if err != nil {
				return Value{}, err
			}
			push(v)
		case AND, OR, ADD, SUB, MUL, DIV, MOD, BIT_AND, BIT_OR, BIT_XOR, SHL, SHR, LT, LE, GT, GE, EQ, NEQ:
			a, b, err := pop2()
			if err != nil {
				return Value{}, err
			}
			v, err := applyBinary(op.Code, a, b)
			if err != nil {
				return Value{}, err
			}
			push(v)
		case JMP:
			pc = op.Arg.(int)
			continue
		case JFALSE:
			a, err := pop()
			if err != nil {
				return Value{}, err
			}
			t, err := wantBool(a)
			if err != nil {
				return Value{}, err
			}
			if t == state.X {
				return Value{}, simerr.New(simerr.TypeDomain, "expression %q: conditional guard is unknown (X)", p.Source)
			}
			if t == state.Zero {
				pc = op.Arg.(int)
				continue
			}
		default:
			return Value{}, simerr.New(simerr.Usage, "expression %q: unhandled opcode %s", p.Source, op.Code)
		}
		pc++
	}
	return pop()
}

func applyBinary(code Opcode, a, b Value) (Value, error) {
	switch code {
	case AND:
		return And(a, b)
	case OR:
		return Or(a, b)
	case ADD:
		return Add(a, b)
	case SUB:
		return Sub(a, b)
	case MUL:
		return Mul(a, b)
	case DIV:
		return Div(a, b)
	case MOD:
		return Mod(a, b)
	case BIT_AND:
		return BitAnd(a, b)
	case BIT_OR:
		return BitOr(a, b)
	case BIT_XOR:
		return BitXor(a, b)
	case SHL:
		return Shl(a, b)
	case SHR:
		return Shr(a, b)
	case LT:
		return Lt(a, b)
	case LE:
		return Le(a, b)
	case GT:
		return Gt(a, b)
	case GE:
		return Ge(a, b)
	case EQ:
		return Eq(a, b)
	case NEQ:
		return Neq(a, b)
	default:
		return Value{}, simerr.New(simerr.Usage, "unhandled binary opcode %s", code)
	}
}
