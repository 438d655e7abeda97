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

// vcdSession is one open VCD file and the identifier-code table assigned
// to its declared signal list at Open time.
type vcdSession struct {
	w      io.WriteCloser
	ids    map[string]byte
	nextID byte
}

// vcdIDStart and vcdIDEnd bound the printable-ASCII identifier-code
// range VCD readers expect; this writer hands out single-character
// codes only, good for up to 94 signals per session -- ample for a
// watch/breakpoint-driven simulator trace, not a full-chip waveform dump.
const (
	vcdIDStart = '!'
	vcdIDEnd   = '~'
)

func (s *vcdSession) allocID() (byte, error) {
	if s.nextID == 0 {
		s.nextID = vcdIDStart
	}
	if s.nextID > vcdIDEnd {
		return 0, simerr.New(simerr.Resolution, "trace: vcd session ran out of single-character identifier codes")
	}
	id := s.nextID
	s.nextID++
	return id, nil
}

// VCDEmitter writes the textual Value Change Dump format GTKWave and
// similar viewers read: a $var declaration per signal followed by
// #<time>/value-change pairs.
type VCDEmitter struct {
	mu       sync.Mutex
	sessions map[Handle]*vcdSession
}

func NewVCDEmitter() *VCDEmitter {
	return &VCDEmitter{sessions: make(map[Handle]*vcdSession)}
}

func (e *VCDEmitter) Open(path string, timescale float64, signals []string) (Handle, error) {
	f, err := os.Create(path)
	if err != nil {
		return Handle{}, err
	}
	s := &vcdSession{ids: make(map[string]byte), nextID: vcdIDStart}

	fmt.Fprintf(f, "$timescale %s $end\n", vcdTimescale(timescale))
	fmt.Fprintln(f, "$scope module top $end")
	for _, name := range signals {
		id, err := s.allocID()
		if err != nil {
			f.Close()
			return Handle{}, err
		}
		s.ids[name] = id
		fmt.Fprintf(f, "$var wire 64 %c %s $end\n", id, vcdSafeName(name))
	}
	fmt.Fprintln(f, "$upscope $end")
	fmt.Fprintln(f, "$enddefinitions $end")
	fmt.Fprintln(f, "#0")

	s.w = f
	h := uuid.New()
	e.mu.Lock()
	e.sessions[h] = s
	e.mu.Unlock()
	return h, nil
}

func (e *VCDEmitter) Emit(h Handle, signal string, t simtime.Time, bits string) error {
	e.mu.Lock()
	s, ok := e.sessions[h]
	e.mu.Unlock()
	if !ok {
		return simerr.New(simerr.Resolution, "trace: no such open vcd session")
	}
	id, ok := s.ids[signal]
	if !ok {
		return simerr.New(simerr.Resolution, "trace: %q was not in this session's declared signal list", signal)
	}
	_, err := fmt.Fprintf(s.w, "#%s\nb%s %c\n", t.String(), bits, id)
	return err
}

func (e *VCDEmitter) Close(h Handle) error {
	e.mu.Lock()
	s, ok := e.sessions[h]
	delete(e.sessions, h)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return s.w.Close()
}

func vcdTimescale(seconds float64) string {
	switch {
	case seconds >= 1:
		return "1 s"
	case seconds >= 1e-3:
		return "1 ms"
	case seconds >= 1e-6:
		return "1 us"
	case seconds >= 1e-9:
		return "1 ns"
	default:
		return "1 ps"
	}
}

// vcdSafeName replaces each space in a dotted instance path with '_',
// since VCD identifiers are whitespace-delimited tokens; other
// whitespace characters are left as they are.
func vcdSafeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == ' ' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}
