package prs

import (
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// prsEnv resolves a production rule's guard against the shared instance
// scope, the same Resolve/Get pair chp's own env uses. A PRS guard never
// probes a channel -- #C is a CHP-only operator over rendezvous state --
// so Probe always reports a TypeDomain error.
type prsEnv struct {
	scope *instance.Node
	store *state.Store
}

func (e prsEnv) Get(name string) (exprlang.Value, error) {
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
		return exprlang.Value{}, simerr.New(simerr.TypeDomain, "%s: a channel cannot appear in a production rule guard", name)
	}
}

func (e prsEnv) Probe(name string, fromSenderSide bool) (bool, error) {
	return false, simerr.New(simerr.TypeDomain, "%s: probe() is not valid in a production-rule guard", name)
}
