// Package watch implements the watched-signal and breakpoint registry:
// WatchBreak observes every StateStore mutation through the Store's
// single onMutate hook, renders a time-stamped log line for anything in
// its watched set, and raises the kernel's breakpoint flag for anything
// in its breakpoint set.
package watch

import (
	"fmt"
	"io"
	"regexp"

	"github.com/gookit/color"
	"github.com/rs/zerolog"

	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/state"
)

// Registry owns the watched and breakpoint sets for one simulation run.
// Entries are keyed by global offset (state.Ref) per the data model;
// the display label for a ref -- normally "[instance] name" -- is
// supplied by the caller at registration time, since only the
// instance.Tree layer knows how to render a Ref back into a dotted
// path.
type Registry struct {
	store  *state.Store
	kernel *event.Kernel

	watched     map[state.Ref]string
	breakpoints map[state.Ref]string

	filter *regexp.Regexp

	out io.Writer
	log zerolog.Logger
}

// NewRegistry builds a Registry over store, installing itself as the
// store's mutate hook so every Bool/Int write and every channel phase
// change is observed without store depending on this package.
func NewRegistry(store *state.Store, kernel *event.Kernel, out io.Writer, log zerolog.Logger) *Registry {
	r := &Registry{
		store:       store,
		kernel:      kernel,
		watched:     make(map[state.Ref]string),
		breakpoints: make(map[state.Ref]string),
		out:         out,
		log:         log,
	}
	store.SetMutateHook(r.onMutate)
	return r
}

// Watch adds ref to the watched set, logged as label on every mutation.
func (r *Registry) Watch(ref state.Ref, label string) { r.watched[ref] = label }

// Unwatch removes ref from the watched set; a no-op if it was never
// there, matching the idempotent-on-invalid-argument command contract.
func (r *Registry) Unwatch(ref state.Ref) { delete(r.watched, ref) }

// Breakpt adds ref to the breakpoint set.
func (r *Registry) Breakpt(ref state.Ref, label string) { r.breakpoints[ref] = label }

func (r *Registry) Unbreakpt(ref state.Ref) { delete(r.breakpoints, ref) }

// Watched and Breakpoints return copies of the current watch and
// breakpoint sets, keyed by Ref with their labels.
func (r *Registry) Watched() map[state.Ref]string     { return copyLabels(r.watched) }
func (r *Registry) Breakpoints() map[state.Ref]string { return copyLabels(r.breakpoints) }

func copyLabels(m map[state.Ref]string) map[state.Ref]string {
	out := make(map[state.Ref]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Filter installs a regular expression a rendered watch line's text
// must match to actually be printed; nil clears it and prints
// everything again.
func (r *Registry) Filter(re *regexp.Regexp) { r.filter = re }

// Logfile redirects rendered watch lines to w; the structured zerolog
// sink is unaffected, since it is configured independently by whoever
// built this Registry's logger.
func (r *Registry) Logfile(w io.Writer) { r.out = w }

func (r *Registry) onMutate(ref state.Ref) {
	wlabel, watched := r.watched[ref]
	blabel, broken := r.breakpoints[ref]
	if !watched && !broken {
		return
	}
	val, err := renderValue(r.store, ref)
	if err != nil {
		r.log.Warn().Err(err).Msg("watch: failed to render mutated value")
		return
	}
	if watched {
		r.emit(wlabel, val)
	}
	if broken {
		if !watched {
			r.emit(blabel, val)
		}
		r.kernel.RaiseBreakpoint()
	}
}

func (r *Registry) emit(label, val string) {
	line := fmt.Sprintf("[%s] %s := %s", r.kernel.Now(), label, val)
	if r.filter != nil && !r.filter.MatchString(line) {
		return
	}
	if r.out != nil {
		fmt.Fprintln(r.out, color.Cyan.Sprint(line))
	}
	r.log.Trace().Str("name", label).Str("value", val).Str("time", r.kernel.Now().String()).Msg("watch")
}
