// Package prs evaluates a production-rule network: ternary Bool nodes
// driven by pull-up and pull-down guards over other Bool nodes, with
// inertial-delay propagation and optional exclusive-high/low monitor
// groups, sharing the same instance scope and fanout mechanism the chp
// package uses for guard waits.
package prs

import (
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// Node is one PRS-driven Bool slot: the pull-up and pull-down rule sets
// that together decide its value, and its declared propagation delay.
// PullUp and PullDown are OR'd together internally -- a node with more
// than one pull-up rule is driven high when any of them holds.
type Node struct {
	Ref  state.Ref
	Name string

	PullUp   []*exprlang.Program
	PullDown []*exprlang.Program

	// Delay is nil when the node declared none, leaving the kernel's
	// DelayPolicy free to substitute a random delay per the
	// random-unspecified-only policy.
	Delay *int64

	// Steps counts every transition this node has actually driven, the
	// same metering hook chp.Thread exposes; nothing in this package
	// interprets it.
	Steps uint64

	pendingValid  bool
	pendingHandle int
	pendingTarget state.Tern
}

// evalResult is the outcome of combining one node's pull-up and
// pull-down guards.
type evalResult struct {
	hold     bool
	conflict bool
	target   state.Tern
}

func (net *Network) combine(n *Node) (evalResult, error) {
	up, err := orGuards(n.PullUp, net.env())
	if err != nil {
		return evalResult{}, err
	}
	down, err := orGuards(n.PullDown, net.env())
	if err != nil {
		return evalResult{}, err
	}
	switch {
	case up == state.One && down == state.One:
		return evalResult{target: state.X, conflict: true}, nil
	case up == state.One:
		return evalResult{target: state.One}, nil
	case down == state.One:
		return evalResult{target: state.Zero}, nil
	default:
		return evalResult{hold: true}, nil
	}
}

// orGuards evaluates every guard in progs and combines them with
// ternary OR, the semantics of a node with several independent pull-up
// (or pull-down) paths: the node side is active if any path is.
func orGuards(progs []*exprlang.Program, env exprlang.Env) (state.Tern, error) {
	result := state.Zero
	for _, p := range progs {
		v, err := exprlang.Eval(p, env)
		if err != nil {
			return state.X, err
		}
		if v.Kind != exprlang.KindBool {
			return state.X, simerr.New(simerr.TypeDomain, "production rule guard did not evaluate to a Bool")
		}
		result = ternOr(result, v.Bool)
		if result == state.One {
			return state.One, nil
		}
	}
	return result, nil
}

func ternOr(a, b state.Tern) state.Tern {
	if a == state.One || b == state.One {
		return state.One
	}
	if a == state.Zero && b == state.Zero {
		return state.Zero
	}
	return state.X
}
