package trace

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/simtime"
)

type textSession struct {
	w        io.WriteCloser
	declared map[string]bool
}

// TextEmitter is the backend registered as "text": one
// "<time> <signal> <bits>" line per emitted change, after a
// "# timescale" header line.
type TextEmitter struct {
	mu       sync.Mutex
	sessions map[Handle]*textSession
}

func NewTextEmitter() *TextEmitter {
	return &TextEmitter{sessions: make(map[Handle]*textSession)}
}

func (e *TextEmitter) Open(path string, timescale float64, signals []string) (Handle, error) {
	f, err := os.Create(path)
	if err != nil {
		return Handle{}, err
	}
	declared := make(map[string]bool, len(signals))
	for _, name := range signals {
		declared[name] = true
	}
	fmt.Fprintf(f, "# timescale %g s\n", timescale)

	h := uuid.New()
	e.mu.Lock()
	e.sessions[h] = &textSession{w: f, declared: declared}
	e.mu.Unlock()
	return h, nil
}

func (e *TextEmitter) Emit(h Handle, signal string, t simtime.Time, bits string) error {
	e.mu.Lock()
	s, ok := e.sessions[h]
	e.mu.Unlock()
	if !ok {
		return simerr.New(simerr.Resolution, "trace: no such open text session")
	}
	if !s.declared[signal] {
		return simerr.New(simerr.Resolution, "trace: %q was not in this session's declared signal list", signal)
	}
	_, err := fmt.Fprintf(s.w, "%s %s %s\n", t.String(), signal, bits)
	return err
}

func (e *TextEmitter) Close(h Handle) error {
	e.mu.Lock()
	s, ok := e.sessions[h]
	delete(e.sessions, h)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return s.w.Close()
}
