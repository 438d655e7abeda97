package exprlang

import (
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/google/uuid"
	"go.starlark.net/syntax"
)

type compileContext struct {
	ops []Op
}

func (cc *compileContext) emit(op Opcode, arg any) {
	cc.ops = append(cc.ops, Op{Code: op, Arg: arg})
}

func (cc *compileContext) newLabel() string { return uuid.NewString() }

func (cc *compileContext) emitLabel(name string) { cc.emit(LABEL, name) }

// CompileExpr parses src as a single starlark-syntax expression and
// compiles it to a linked Program. Only the operators and literals
// meaningful over ternary Bool and fixed-width Int survive: no strings,
// lists, dicts, comprehensions, lambdas or function definitions.
func CompileExpr(src string) (*Program, error) {
	opts := syntax.FileOptions{}
	expr, err := opts.ParseExpr("<expr>", src, 0)
	if err != nil {
		return nil, simerr.Wrap(simerr.Usage, err, "parsing expression %q", src)
	}
	cc := &compileContext{}
	if err := cc.expr(expr); err != nil {
		return nil, err
	}
	return cc.link(src)
}

// link resolves LABEL pseudo-ops and string-named jump targets into
// concrete instruction offsets, and drops the LABEL markers themselves.
func (cc *compileContext) link(src string) (*Program, error) {
	offsets := make(map[string]int)
	var code []Op
	for _, op := range cc.ops {
		if op.Code == LABEL {
			offsets[op.Arg.(string)] = len(code)
			continue
		}
		code = append(code, op)
	}
	for i, op := range code {
		switch op.Code {
		case JMP, JFALSE:
			name, ok := op.Arg.(string)
			if !ok {
				continue
			}
			off, ok := offsets[name]
			if !ok {
				return nil, simerr.New(simerr.Usage, "unresolved label %q", name)
			}
			code[i].Arg = off
		}
	}
	return &Program{Code: code, Source: src}, nil
}

func (cc *compileContext) expr(e syntax.Expr) error {
	switch v := e.(type) {
	case *syntax.BinaryExpr:
		if v.Op == syntax.AND || v.Op == syntax.OR {
			return cc.logicalBinOp(v)
		}
		if err := cc.expr(v.X); err != nil {
			return err
		}
		if err := cc.expr(v.Y); err != nil {
			return err
		}
		return cc.binOp(v.Op)
	case *syntax.UnaryExpr:
		return cc.unary(v)
	case *syntax.CondExpr:
		return cc.cond(v)
	case *syntax.ParenExpr:
		return cc.expr(unparen(v))
	case *syntax.Ident:
		return cc.ident(v)
	case *syntax.Literal:
		return cc.literal(v)
	case *syntax.CallExpr:
		return cc.call(v)
	default:
		return simerr.New(simerr.Usage, "unsupported expression syntax: %T", e)
	}
}

func (cc *compileContext) ident(v *syntax.Ident) error {
	switch v.Name {
	case "True":
		cc.emit(PUSH_BOOL, true)
	case "False":
		cc.emit(PUSH_BOOL, false)
	case "X":
		cc.emit(PUSH_BOOL, nil)
	default:
		cc.emit(LOAD, v.Name)
	}
	return nil
}

func (cc *compileContext) literal(v *syntax.Literal) error {
	switch t := v.Value.(type) {
	case int64:
		cc.emit(PUSH_INT, t)
	default:
		return simerr.New(simerr.Usage, "unsupported literal %v of type %T", v.Value, v.Value)
	}
	return nil
}

// call handles only the single `probe(name, side)` special form,
// standing in for the "#C" probe syntax, which starlark's grammar has
// no operator for. side must be the bare identifier send or recv,
// naming which side of the channel the enclosing process sits on --
// there is no way to infer that from the channel name alone, since the
// same channel can appear in both a sender's and a receiver's guards
// elsewhere in a design.
func (cc *compileContext) call(v *syntax.CallExpr) error {
	fn, ok := v.Fn.(*syntax.Ident)
	if !ok || fn.Name != "probe" {
		return simerr.New(simerr.Usage, "unsupported function call %v", v.Fn)
	}
	if len(v.Args) != 2 {
		return simerr.New(simerr.Usage, "probe() takes exactly two arguments: probe(channel, send|recv)")
	}
	id, ok := v.Args[0].(*syntax.Ident)
	if !ok {
		return simerr.New(simerr.Usage, "probe()'s first argument must be a channel name")
	}
	side, ok := v.Args[1].(*syntax.Ident)
	if !ok {
		return simerr.New(simerr.Usage, "probe()'s second argument must be send or recv")
	}
	var fromSender bool
	switch side.Name {
	case "send":
		fromSender = true
	case "recv":
		fromSender = false
	default:
		return simerr.New(simerr.Usage, "probe()'s second argument must be send or recv, got %q", side.Name)
	}
	cc.emit(PROBE, ProbeArg{Name: id.Name, FromSender: fromSender})
	return nil
}

func (cc *compileContext) unary(e *syntax.UnaryExpr) error {
	if err := cc.expr(e.X); err != nil {
		return err
	}
	switch e.Op {
	case syntax.NOT:
		cc.emit(NOT, nil)
	case syntax.MINUS:
		cc.emit(NEG, nil)
	case syntax.PLUS:
		// no-op
	default:
		return simerr.New(simerr.Usage, "unsupported unary operator %v", e.Op)
	}
	return nil
}

// logicalBinOp implements `and`/`or` as eager ternary AND/OR rather than
// Python-style short-circuit: a ternary X on either side can still flip
// the result of the side that would otherwise have been skipped, so
// short-circuiting would be unsound.
func (cc *compileContext) logicalBinOp(e *syntax.BinaryExpr) error {
	if err := cc.expr(e.X); err != nil {
		return err
	}
	if err := cc.expr(e.Y); err != nil {
		return err
	}
	if e.Op == syntax.AND {
		cc.emit(AND, nil)
	} else {
		cc.emit(OR, nil)
	}
	return nil
}

func (cc *compileContext) cond(v *syntax.CondExpr) error {
	if err := cc.expr(v.Cond); err != nil {
		return err
	}
	falseLabel := cc.newLabel()
	cc.emit(JFALSE, falseLabel)
	if err := cc.expr(v.True); err != nil {
		return err
	}
	endLabel := cc.newLabel()
	cc.emit(JMP, endLabel)
	cc.emitLabel(falseLabel)
	if err := cc.expr(v.False); err != nil {
		return err
	}
	cc.emitLabel(endLabel)
	return nil
}

func (cc *compileContext) binOp(op syntax.Token) error {
	switch op {
	case syntax.PLUS:
		cc.emit(ADD, nil)
	case syntax.MINUS:
		cc.emit(SUB, nil)
	case syntax.STAR:
		cc.emit(MUL, nil)
	case syntax.SLASH, syntax.SLASHSLASH:
		cc.emit(DIV, nil)
	case syntax.PERCENT:
		cc.emit(MOD, nil)
	case syntax.AMP:
		cc.emit(BIT_AND, nil)
	case syntax.PIPE:
		cc.emit(BIT_OR, nil)
	case syntax.CIRCUMFLEX:
		cc.emit(BIT_XOR, nil)
	case syntax.LTLT:
		cc.emit(SHL, nil)
	case syntax.GTGT:
		cc.emit(SHR, nil)
	case syntax.LT:
		cc.emit(LT, nil)
	case syntax.LE:
		cc.emit(LE, nil)
	case syntax.GT:
		cc.emit(GT, nil)
	case syntax.GE:
		cc.emit(GE, nil)
	case syntax.EQL:
		cc.emit(EQ, nil)
	case syntax.NEQ:
		cc.emit(NEQ, nil)
	default:
		return simerr.New(simerr.Usage, "unsupported binary operator %v", op)
	}
	return nil
}

func unparen(e syntax.Expr) syntax.Expr {
	if p, ok := e.(*syntax.ParenExpr); ok {
		return unparen(p.X)
	}
	return e
}
