package exprlang

import (
	"testing"

	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
	"github.com/stretchr/testify/require"
)

type mapEnv struct {
	vars      map[string]Value
	probes    map[string]bool
	gotSender *bool
}

func (e mapEnv) Get(name string) (Value, error) {
	v, ok := e.vars[name]
	if !ok {
		return Value{}, simerr.New(simerr.Resolution, "no such variable %q", name)
	}
	return v, nil
}

func (e mapEnv) Probe(name string, fromSenderSide bool) (bool, error) {
	if e.gotSender != nil {
		*e.gotSender = fromSenderSide
	}
	return e.probes[name], nil
}

func compileAndEval(t *testing.T, src string, env mapEnv) Value {
	t.Helper()
	p, err := CompileExpr(src)
	require.NoError(t, err)
	v, err := Eval(p, env)
	require.NoError(t, err)
	return v
}

func TestArithmetic(t *testing.T) {
	env := mapEnv{vars: map[string]Value{"x": IntValue(bigint.FromUint64(8, 5))}}
	v := compileAndEval(t, "x + 3", env)
	require.Equal(t, KindInt, v.Kind)
	require.Equal(t, uint64(8), v.Int.Uint64())
}

func TestComparisonAndConditional(t *testing.T) {
	env := mapEnv{vars: map[string]Value{"x": IntValue(bigint.FromUint64(8, 5))}}
	v := compileAndEval(t, "1 if x > 3 else 0", env)
	require.Equal(t, uint64(1), v.Int.Uint64())
}

func TestTernaryAnd(t *testing.T) {
	env := mapEnv{vars: map[string]Value{
		"a": BoolValue(state.X),
		"b": BoolValue(state.Zero),
	}}
	v := compileAndEval(t, "a and b", env)
	require.Equal(t, state.Zero, v.Bool)
}

func TestProbe(t *testing.T) {
	var gotSender bool
	env := mapEnv{probes: map[string]bool{"C": true}, gotSender: &gotSender}
	v := compileAndEval(t, "probe(C, send)", env)
	require.Equal(t, state.One, v.Bool)
	require.True(t, gotSender)

	v = compileAndEval(t, "probe(C, recv)", env)
	require.Equal(t, state.One, v.Bool)
	require.False(t, gotSender)
}

func TestProbeRejectsUnknownSide(t *testing.T) {
	_, err := CompileExpr("probe(C, sideways)")
	require.Error(t, err)
}

func TestUnknownGuardInConditionalErrors(t *testing.T) {
	env := mapEnv{vars: map[string]Value{"g": BoolValue(state.X)}}
	p, err := CompileExpr("1 if g else 0")
	require.NoError(t, err)
	_, err = Eval(p, env)
	require.Error(t, err)
}

func TestDivByZeroPropagates(t *testing.T) {
	env := mapEnv{vars: map[string]Value{"x": IntValue(bigint.FromUint64(8, 5))}}
	p, err := CompileExpr("x / 0")
	require.NoError(t, err)
	_, err = Eval(p, env)
	require.Error(t, err)
}
