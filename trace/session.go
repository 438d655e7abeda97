package trace

import (
	"sort"

	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/simtime"
	"github.com/asyncvlsi/actsim/state"
)

// Session is the simulator's single attach point for one trace/vcd/lxt2
// backend at a time. `vcd_start`/`lxt2_start`/`trace_start` all route
// through Start with a different registered backend name; `*_stop`
// routes through Stop.
type Session struct {
	store *state.Store

	backend Emitter
	handle  Handle
	signals map[string]state.Ref
	active  bool
}

func NewSession(store *state.Store) *Session {
	return &Session{store: store}
}

// Start attaches backend to path, declaring signals up front the way
// the trace-emitter contract's `open(path, timescale, signal_list)`
// requires. Only one session may be active at a time; starting while
// already attached is a StateIllegal error.
func (s *Session) Start(backend Emitter, path string, timescale float64, signals map[string]state.Ref) error {
	if s.active {
		return simerr.New(simerr.StateIllegal, "a trace session is already attached; stop it first")
	}
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	h, err := backend.Open(path, timescale, names)
	if err != nil {
		return err
	}
	s.backend = backend
	s.handle = h
	s.signals = signals
	s.active = true
	return nil
}

// Stop detaches the current session, closing its backend handle. It is
// a no-op if no session is attached.
func (s *Session) Stop() error {
	if !s.active {
		return nil
	}
	err := s.backend.Close(s.handle)
	s.active = false
	s.backend = nil
	s.signals = nil
	return err
}

func (s *Session) Active() bool { return s.active }

// Observe is the mutation-side half of the contract: the simulator
// calls this for every mutated ref, and Observe is a no-op unless name
// is one of this session's declared signals.
func (s *Session) Observe(name string, t simtime.Time) error {
	if !s.active {
		return nil
	}
	ref, ok := s.signals[name]
	if !ok {
		return nil
	}
	bits, err := RenderBits(s.store, ref)
	if err != nil {
		return err
	}
	return s.backend.Emit(s.handle, name, t, bits)
}
