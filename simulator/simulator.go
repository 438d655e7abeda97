// Package simulator is the top-level orchestrator: it owns the single
// event.Kernel, state.Store and instance.Tree a run shares, wires every
// chp.Process and the prs.Network to it, and implements the external
// command surface as ordinary Go methods (Initialize, Step, Advance,
// Set, Get, Watch, ...) in place of the original tool's Lisp-driven
// interactive shell, per SPEC_FULL.md §1 and §6.
package simulator

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/asyncvlsi/actsim/chp"
	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/instance"
	"github.com/asyncvlsi/actsim/prs"
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
	"github.com/asyncvlsi/actsim/trace"
	"github.com/asyncvlsi/actsim/watch"
)

// startSignal is the Payload of the one-shot event Initialize posts for
// every process's entry point, per §4.2 "posts initial events for every
// process's entry point". It is distinct from chp.ResumeToken so
// Dispatch can tell "spawn this process's first thread" apart from
// "resume an already-live thread".
type startSignal struct {
	procIndex int
}

// Builder compiles one top-level process instance: given the instance
// scope Initialize has already created for it, it declares that
// instance's local Bool/Int/Channel variables (and, if the process
// drives PRS nodes, registers them against s.Network()) and returns the
// compiled chp.Node program graph AddProcess will run. Frontend parsing
// of an actual hardware description language is out of scope
// (SPEC_FULL.md §1); a Builder is the Go-native replacement for what
// that frontend would otherwise hand the kernel -- an already-elaborated
// process body.
type Builder func(s *Simulator, scope *instance.Node) (*chp.Node, error)

// Simulator is the single owning value collecting every simulation
// global the original tool kept as file-scope singletons (glob_sim,
// glob_sp, glob_act), per Design Note "Process-wide singletons". It
// implements event.Dispatcher, routing each popped Event to the chp
// Process or prs Network its Owner names.
type Simulator struct {
	store  *state.Store
	tree   *instance.Tree
	kernel *event.Kernel

	watch    *watch.Registry
	traceReg *trace.Registry
	traceSes *trace.Session
	coverage *trace.CoverageStore

	network *prs.Network

	processes []*chp.Process
	procIndex map[string]int
	refName   map[state.Ref]string

	warnPolicy  simerr.Policy
	lastWarning *simerr.Error

	builders map[string]Builder

	log zerolog.Logger
}

// New builds an idle Simulator. out is where watch/breakpoint lines are
// printed (nil discards them); log receives a Warn record for every
// warning raised during a run (see onWarning).
func New(out io.Writer, log zerolog.Logger) *Simulator {
	s := &Simulator{
		builders:  make(map[string]Builder),
		procIndex: make(map[string]int),
		log:       log,
	}
	s.resetState(out, 0)
	return s
}

// resetState rebuilds every per-run singleton from scratch: called by
// New and by Initialize, since `initialize <process>` is defined as a
// full reset-and-rebuild, not an incremental rewiring.
func (s *Simulator) resetState(out io.Writer, seed int64) {
	s.store = state.New()
	s.tree = instance.NewTree(s.store)
	s.kernel = event.NewKernel(s, seed)
	s.watch = watch.NewRegistry(s.store, s.kernel, out, s.log)
	s.traceReg = trace.NewRegistry()
	s.traceSes = trace.NewSession(s.store)
	s.coverage = trace.NewCoverageStore()
	s.network = prs.NewNetwork(s.store, s.tree.Root(), s.kernel)
	s.network.SetPolicy(s.warnPolicy)
	s.network.OnWarning(s.onWarning)
	s.processes = nil
	s.lastWarning = nil
	s.procIndex = make(map[string]int)
	s.refName = make(map[state.Ref]string)

	s.store.AddMutateHook(func(ref state.Ref) {
		name, ok := s.refName[ref]
		if !ok {
			return
		}
		_ = s.traceSes.Observe(name, s.kernel.Now())
		_, _ = s.coverage.Observe(name, mustRenderValue(s.store, ref))
	})
}

func (s *Simulator) onWarning(err *simerr.Error) {
	s.lastWarning = err
	s.log.Warn().Str("kind", err.Kind.String()).Msg(err.Error())
}

// RegisterBuilder adds a named process constructor, selected by a
// simconfig.ProcessSpec's Entrypoint field at Initialize time.
// cmd/actsim registers its small built-in demo processes this way at
// startup.
func (s *Simulator) RegisterBuilder(name string, b Builder) { s.builders[name] = b }

// Tree, Store, Kernel, Network expose the underlying components to a
// Builder while it constructs a circuit; nothing outside this package
// and a Builder should need them once a run is underway.
func (s *Simulator) Tree() *instance.Tree { return s.tree }
func (s *Simulator) Store() *state.Store  { return s.store }
func (s *Simulator) Kernel() *event.Kernel { return s.kernel }
func (s *Simulator) Network() *prs.Network { return s.network }

// AddProcess registers a compiled CHP/HSE program graph as a new
// process instance scoped at scope, wiring its Wake callback to post a
// follow-up event through the kernel rather than resolving synchronously
// -- the actual "post follow-up events" half of §2's data flow -- and
// returns the process so the Builder can label declared identifiers
// under it if it wants a reverse name for trace/watch labels.
func (s *Simulator) AddProcess(name string, scope *instance.Node, body *chp.Node) *chp.Process {
	idx := len(s.processes)
	p := chp.NewProcess(name, idx, s.store, scope, s.kernel, body)
	p.Wake = func(tok chp.ResumeToken) {
		s.kernel.Push(&event.Event{
			Deadline: s.kernel.Now(),
			Owner:    event.Owner{Tag: event.OwnerChp, Index: tok.ProcIndex},
			Kind:     event.KindChpResume,
			Payload:  tok,
		})
	}
	s.processes = append(s.processes, p)
	s.procIndex[name] = idx
	return p
}

// NameSignal registers name as the display/trace identifier for ref,
// used by watch/breakpoint labels, VCD signal names and the coverage
// store. A Builder calls this once per declared identifier right after
// instance.Node.Declare*, mirroring the way the original tool's
// canonicalized identifier doubles as both the resolvable key and the
// trace/log label.
func (s *Simulator) NameSignal(name string, ref state.Ref) { s.refName[ref] = name }

// Dispatch implements event.Dispatcher, routing a popped Event to the
// chp.Process or prs.Network its Owner.Tag names, per §2's "the callee
// may post follow-ups" data flow.
func (s *Simulator) Dispatch(ev *event.Event) error {
	switch ev.Owner.Tag {
	case event.OwnerPrs:
		return s.network.Dispatch(ev)
	case event.OwnerChp:
		if ev.Owner.Index < 0 || ev.Owner.Index >= len(s.processes) {
			return simerr.New(simerr.Fatal, "chp event for unknown process index %d", ev.Owner.Index)
		}
		proc := s.processes[ev.Owner.Index]
		switch payload := ev.Payload.(type) {
		case startSignal:
			return proc.Start()
		case chp.ResumeToken:
			return proc.Resume(payload)
		default:
			return simerr.New(simerr.Fatal, "chp event with unrecognized payload %T", ev.Payload)
		}
	default:
		return simerr.New(simerr.Fatal, "event with unsupported owner tag %v", ev.Owner.Tag)
	}
}

func mustRenderValue(store *state.Store, ref state.Ref) string {
	v, err := renderValue(store, ref)
	if err != nil {
		return "?"
	}
	return v
}
