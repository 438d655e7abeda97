package chp

import (
	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// chpEnv resolves the free variables of a compiled guard/assignment
// expression against one process's instance scope and the shared
// Store, implementing exprlang.Env.
type chpEnv struct {
	scope *instance.Node
	store *state.Store
}

func (e chpEnv) Get(name string) (exprlang.Value, error) {
	ref, err := e.scope.Resolve(name)
	if err != nil {
		return exprlang.Value{}, err
	}
	switch ref.Kind {
	case state.KindBool:
		v, err := e.store.GetBool(ref)
		if err != nil {
			return exprlang.Value{}, err
		}
		return exprlang.BoolValue(v), nil
	case state.KindInt:
		v, err := e.store.GetInt(ref)
		if err != nil {
			return exprlang.Value{}, err
		}
		return exprlang.IntValue(v), nil
	default:
		return exprlang.Value{}, simerr.New(simerr.TypeDomain, "%s: a channel cannot be used as an expression value", name)
	}
}

func (e chpEnv) Probe(name string, fromSenderSide bool) (bool, error) {
	ref, err := e.scope.Resolve(name)
	if err != nil {
		return false, err
	}
	if ref.Kind != state.KindChannel {
		return false, simerr.New(simerr.TypeDomain, "%s: probe() requires a channel", name)
	}
	fsm, err := e.store.Channel(ref)
	if err != nil {
		return false, err
	}
	return fsm.Probe(fromSenderSide), nil
}

// valueToUint converts an evaluated expression result into the
// bigint.Uint a channel's wire format uses, the representation every
// Send/Recv deals in regardless of whether the CHP-level type was Bool
// or Int.
func valueToUint(v exprlang.Value, width uint) (bigint.Uint, error) {
	switch v.Kind {
	case exprlang.KindInt:
		bounded := v.Int.WithWidth(width)
		if !bounded.InRange() {
			return bigint.Uint{}, simerr.New(simerr.TypeDomain, "sent value does not fit into the channel's declared width")
		}
		return bounded, nil
	case exprlang.KindBool:
		if v.Bool == state.X {
			return bigint.Uint{}, simerr.New(simerr.TypeDomain, "cannot send an unknown (X) Bool value over a channel")
		}
		n := uint64(0)
		if v.Bool == state.One {
			n = 1
		}
		return bigint.FromUint64(width, n), nil
	default:
		return bigint.Uint{}, simerr.New(simerr.TypeDomain, "unsupported value kind in send expression")
	}
}

// uintToRef writes a channel-delivered bigint.Uint into a Bool or Int
// Slot, converting to ternary 0/1 for a Bool target (channel data never
// carries X).
func uintToRef(store *state.Store, ref state.Ref, v bigint.Uint) error {
	switch ref.Kind {
	case state.KindBool:
		t := state.Zero
		if !v.IsZero() {
			t = state.One
		}
		return store.SetBool(ref, t)
	case state.KindInt:
		return store.SetInt(ref, v)
	default:
		return simerr.New(simerr.TypeDomain, "cannot deliver a channel value into a non-data slot")
	}
}
