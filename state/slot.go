// Package state implements the flat Bool/Int/Channel slot arrays of the
// single Store every process of a run shares, together with the
// global-offset fanout propagation that PRS nodes and CHP guards rely on
// to learn when one of their inputs has changed.
package state

import (
	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/channel"
)

// Tern is a ternary logic value: 0, 1, or X (unknown/undefined).
type Tern uint8

const (
	Zero Tern = iota
	One
	X
)

func (t Tern) String() string {
	switch t {
	case Zero:
		return "0"
	case One:
		return "1"
	default:
		return "X"
	}
}

// ParseTern accepts the literal forms used by the `set`/`status`/`assert`
// commands: "0", "1", "x" or "X".
func ParseTern(s string) (Tern, bool) {
	switch s {
	case "0":
		return Zero, true
	case "1":
		return One, true
	case "x", "X":
		return X, true
	default:
		return 0, false
	}
}

// Kind distinguishes the three Slot varieties.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Ref is the global-offset address of a slot: its Kind plus a dense index
// within that kind's array. WatchBreak, fanout propagation and the
// set/get command surface all address slots through a Ref.
type Ref struct {
	Kind   Kind
	Offset int
}

// Watcher is notified when the value at a Ref changes. PRS rules and CHP
// guard/probe waits register as watchers on every Ref their evaluation
// depends on; the StateStore fans a mutation out to all registered
// watchers synchronously before returning control to the caller.
type Watcher interface {
	Wake(ref Ref)
}

// WatcherFunc adapts a plain function to the Watcher interface.
type WatcherFunc func(ref Ref)

func (f WatcherFunc) Wake(ref Ref) { f(ref) }

// subscription pairs a registered Watcher with the handle returned to the
// caller so it can later be cancelled -- function values are not
// comparable in Go, so identity-based unsubscribe is not an option.
type subscription struct {
	handle int
	w      Watcher
}

// boolSlot is one entry of the Bool array.
type boolSlot struct {
	value    Tern
	watchers []subscription
}

// intSlot is one entry of the Int array.
type intSlot struct {
	width    uint
	value    bigint.Uint
	watchers []subscription
}

// chanSlot is one entry of the Channel array. The rendezvous state machine
// itself lives in package channel; the slot only owns it and the probe
// watcher list (probe subscribers are woken on every phase transition).
type chanSlot struct {
	fsm      *channel.FSM
	watchers []subscription
}
