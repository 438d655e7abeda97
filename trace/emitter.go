// Package trace implements the trace-emitter contract behind the
// `vcd_start`/`vcd_stop`, `lxt2_start`/`lxt2_stop`, and `trace_start`/
// `trace_stop` commands, plus a coverage-dedup store backing the
// `coverage` command.
package trace

import (
	"github.com/google/uuid"

	"github.com/asyncvlsi/actsim/simtime"
)

// Handle identifies one open emitter session; a google/uuid value gives
// every session a collision-free identity without the emitter needing
// to hand out its own counters.
type Handle = uuid.UUID

// Emitter is the trace-emitter contract: a backend registers under a
// short name and exposes open/emit/close. The simulator calls Emit on
// every mutation of a signal that session declared interest in.
type Emitter interface {
	Open(path string, timescale float64, signals []string) (Handle, error)
	Emit(h Handle, signal string, t simtime.Time, bits string) error
	Close(h Handle) error
}

// Registry maps the short format names the command surface accepts
// ("vcd", "lxt2", "text") to the backend that implements them.
type Registry struct {
	backends map[string]Emitter
}

// NewRegistry builds a Registry with the stock backends already
// registered: a real (if minimal) VCD writer under "vcd", the same
// writer again under "lxt2" (see DESIGN.md for why), and a plain
// timestamped-line writer under "text".
func NewRegistry() *Registry {
	r := &Registry{backends: make(map[string]Emitter)}
	vcd := NewVCDEmitter()
	r.Register("vcd", vcd)
	r.Register("lxt2", vcd)
	r.Register("text", NewTextEmitter())
	return r
}

func (r *Registry) Register(name string, e Emitter) { r.backends[name] = e }

func (r *Registry) Backend(name string) (Emitter, bool) {
	e, ok := r.backends[name]
	return e, ok
}
