package main

import (
	"github.com/asyncvlsi/actsim/chp"
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/simulator"
	"github.com/asyncvlsi/actsim/state"
)

// registerBuiltins installs the small set of named circuits actsim ships
// with, since parsing an actual hardware description language is out of
// scope: a run configuration selects one of these by name as a
// process's entrypoint instead of pointing at source text.
func registerBuiltins(s *simulator.Simulator) {
	s.RegisterBuilder("handshake.sender", buildHandshakeSender)
	s.RegisterBuilder("handshake.receiver", buildHandshakeReceiver)
	s.RegisterBuilder("inverter.toggle", buildInverterToggle)
}

func mustCompile(src string) *exprlang.Program {
	p, err := exprlang.CompileExpr(src)
	if err != nil {
		panic(err)
	}
	return p
}

// buildHandshakeSender repeatedly sends an incrementing counter over the
// top-level channel "req", the sending half of the S1 handshake
// scenario. Each iteration blocks in the channel's rendezvous until
// buildHandshakeReceiver is ready. x has the channel's width and the
// increment is not wrapped, so after 2^width-1 sends the assignment of
// x + 1 fails with a TypeDomain error.
func buildHandshakeSender(s *simulator.Simulator, scope *instance.Node) (*chp.Node, error) {
	req, err := s.Tree().Root().Resolve("req")
	if err != nil {
		return nil, simerr.Wrap(simerr.Usage, err, "handshake.sender: resolving channel \"req\"")
	}
	width, err := s.Tree().Root().Width("req")
	if err != nil {
		return nil, err
	}
	x, err := scope.DeclareInt("x", width)
	if err != nil {
		return nil, err
	}
	s.NameSignal(scope.FullName()+".x", x)

	body := chp.InfiniteLoop(chp.Seq(
		chp.Assign(x, mustCompile("x + 1")),
		chp.Send(req, mustCompile("x")),
	))
	return body, nil
}

// buildHandshakeReceiver repeatedly receives from "req" into a local
// variable, never inspecting or forwarding the value: it exists purely
// to complete the rendezvous the sender is blocked on.
func buildHandshakeReceiver(s *simulator.Simulator, scope *instance.Node) (*chp.Node, error) {
	req, err := s.Tree().Root().Resolve("req")
	if err != nil {
		return nil, simerr.Wrap(simerr.Usage, err, "handshake.receiver: resolving channel \"req\"")
	}
	width, err := s.Tree().Root().Width("req")
	if err != nil {
		return nil, err
	}
	y, err := scope.DeclareInt("y", width)
	if err != nil {
		return nil, err
	}
	s.NameSignal(scope.FullName()+".y", y)

	body := chp.InfiniteLoop(chp.Recv(req, y))
	return body, nil
}

// buildInverterToggle drives a production-rule inverter from a CHP
// loop. The prs.Network shared by the whole run resolves a node's guard
// fanins against the root instance scope (the same flat namespace
// top-level channels live in, per simconfig), while a CHP process's own
// assignments resolve against its own instance scope -- two different
// scopes a single named variable cannot satisfy at once. The loop
// therefore flips a Bool local to its own scope and mirrors it onto a
// root-level Bool through a plain state.Store subscription, the same
// fanout primitive prs.Network.AddNode itself uses for its fanins; the
// production rule then reads only that root-level mirror.
func buildInverterToggle(s *simulator.Simulator, scope *instance.Node) (*chp.Node, error) {
	in, err := scope.DeclareBool("in")
	if err != nil {
		return nil, err
	}
	s.NameSignal(scope.FullName()+".in", in)

	root := s.Tree().Root()
	mirror, err := root.DeclareBool(scope.FullName() + "_mirror_in")
	if err != nil {
		return nil, err
	}
	out, err := root.DeclareBool(scope.FullName() + "_gate_out")
	if err != nil {
		return nil, err
	}
	s.NameSignal(scope.FullName()+"_mirror_in", mirror)
	s.NameSignal(scope.FullName()+"_gate_out", out)

	if _, err := s.Store().Subscribe(in, state.WatcherFunc(func(state.Ref) {
		v, err := s.Store().GetBool(in)
		if err != nil {
			return
		}
		_ = s.Store().SetBool(mirror, v)
	})); err != nil {
		return nil, err
	}

	pullUp := []*exprlang.Program{mustCompile("not " + scope.FullName() + "_mirror_in")}
	pullDown := []*exprlang.Program{mustCompile(scope.FullName() + "_mirror_in")}
	if _, err := s.Network().AddNode(out, scope.FullName()+"_gate_out", pullUp, pullDown, nil); err != nil {
		return nil, err
	}

	body := chp.InfiniteLoop(chp.Assign(in, mustCompile("not in")))
	return body, nil
}
