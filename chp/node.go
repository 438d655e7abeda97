// Package chp interprets compiled CHP/HSE program graphs: sequencing,
// parallel composition, deterministic and non-deterministic selection,
// guarded and infinite loops, assignment, and channel communication.
package chp

import (
	"github.com/asyncvlsi/actsim/exprlang"
	"github.com/asyncvlsi/actsim/state"
)

// NodeKind tags the variant a Node holds, replacing the virtual-method
// dispatch of the original simulator's statement hierarchy.
type NodeKind int

const (
	NAssign NodeKind = iota
	NSend
	NRecv
	NSeq
	NPar
	NDetSel
	NNondetSel
	NLoop
	NSkip
	NGoto
	NLabel
)

// Guard pairs a condition (nil for the trailing `else` arm of a
// NNondetSel) with the statement to run when it is selected.
type Guard struct {
	Cond *exprlang.Program
	Body *Node
}

// Node is one statement in a compiled CHP/HSE program graph. Only the
// fields relevant to Kind are populated; this is the arena-style tagged
// variant the design notes call for in place of a class hierarchy.
type Node struct {
	Kind NodeKind

	// NAssign
	Target state.Ref
	Expr   *exprlang.Program

	// NSend
	Chan     state.Ref
	SendExpr *exprlang.Program

	// NRecv
	RecvChan state.Ref
	RecvVar  state.Ref

	// NSeq, NPar
	Children []*Node

	// NDetSel, NNondetSel
	Guards []Guard

	// NLoop: LoopGuards non-empty means a guarded loop `*[ G -> S ]`
	// (repeated while its first true guard holds, plain exit otherwise);
	// empty LoopGuards with Body set means the infinite `*[ [...] ]` form
	// wrapping an inner selection.
	LoopGuards []Guard
	Body       *Node

	// NGoto, NLabel
	Label string
}

func Assign(target state.Ref, expr *exprlang.Program) *Node {
	return &Node{Kind: NAssign, Target: target, Expr: expr}
}

func Send(ch state.Ref, expr *exprlang.Program) *Node {
	return &Node{Kind: NSend, Chan: ch, SendExpr: expr}
}

func Recv(ch state.Ref, target state.Ref) *Node {
	return &Node{Kind: NRecv, RecvChan: ch, RecvVar: target}
}

func Seq(children ...*Node) *Node { return &Node{Kind: NSeq, Children: children} }

func Par(children ...*Node) *Node { return &Node{Kind: NPar, Children: children} }

func DetSel(guards ...Guard) *Node { return &Node{Kind: NDetSel, Guards: guards} }

func NondetSel(guards ...Guard) *Node { return &Node{Kind: NNondetSel, Guards: guards} }

func GuardedLoop(guards ...Guard) *Node { return &Node{Kind: NLoop, LoopGuards: guards} }

func InfiniteLoop(body *Node) *Node { return &Node{Kind: NLoop, Body: body} }

func Skip() *Node { return &Node{Kind: NSkip} }

func GotoLabel(name string) *Node { return &Node{Kind: NGoto, Label: name} }

func LabelNode(name string) *Node { return &Node{Kind: NLabel, Label: name} }
