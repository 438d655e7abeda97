package state

import (
	"github.com/asyncvlsi/actsim/bigint"
	"github.com/asyncvlsi/actsim/channel"
	"github.com/asyncvlsi/actsim/simerr"
)

// Store is the flat, dense per-kind array of simulation state. A single
// Store backs the whole instance tree: InstanceTree base offsets turn a
// process-local offset into a Ref into this Store, so all identifier
// resolution, watchpoints and the set/get command surface ultimately
// bottom out in Store.Get*/Set*.
type Store struct {
	bools []boolSlot
	ints  []intSlot
	chans []chanSlot

	// onMutate is invoked, in registration order, after every successful
	// mutation (Bool, Int, or a channel phase change) with the ref that
	// changed. WatchBreak and the trace session both hook this to drive
	// watchpoint/breakpoint observation and signal emission without the
	// Store depending on either of them.
	onMutate []func(ref Ref)

	nextHandle int
}

func New() *Store {
	return &Store{}
}

// SetMutateHook replaces the mutate-hook list with the single hook f (or
// clears it entirely, with nil). WatchBreak uses this to claim the
// primary observation slot.
func (s *Store) SetMutateHook(f func(ref Ref)) {
	if f == nil {
		s.onMutate = nil
		return
	}
	s.onMutate = []func(ref Ref){f}
}

// AddMutateHook appends an additional post-mutation observer without
// disturbing any hook already installed, used by a trace session that
// needs to observe mutations alongside WatchBreak rather than replace
// it.
func (s *Store) AddMutateHook(f func(ref Ref)) { s.onMutate = append(s.onMutate, f) }

func (s *Store) notifyMutate(ref Ref) {
	for _, f := range s.onMutate {
		f(ref)
	}
}

// AllocBool appends a new Bool slot initialized to X and returns its
// global offset.
func (s *Store) AllocBool() Ref {
	s.bools = append(s.bools, boolSlot{value: X})
	return Ref{Kind: KindBool, Offset: len(s.bools) - 1}
}

// AllocInt appends a new Int slot of the given width, initialized to 0.
func (s *Store) AllocInt(width uint) Ref {
	s.ints = append(s.ints, intSlot{width: width, value: bigint.FromUint64(width, 0)})
	return Ref{Kind: KindInt, Offset: len(s.ints) - 1}
}

// AllocChannel appends a new Channel slot of the given width.
func (s *Store) AllocChannel(width uint) Ref {
	s.chans = append(s.chans, chanSlot{fsm: channel.New(width)})
	return Ref{Kind: KindChannel, Offset: len(s.chans) - 1}
}

// NumBools, NumInts, NumChannels report the current dense sizes; the
// simulator's Status command walks the Bool slots with NumBools.
func (s *Store) NumBools() int    { return len(s.bools) }
func (s *Store) NumInts() int     { return len(s.ints) }
func (s *Store) NumChannels() int { return len(s.chans) }

func (s *Store) boolAt(ref Ref) (*boolSlot, error) {
	if ref.Kind != KindBool || ref.Offset < 0 || ref.Offset >= len(s.bools) {
		return nil, simerr.New(simerr.Resolution, "no such bool slot: %v", ref)
	}
	return &s.bools[ref.Offset], nil
}

func (s *Store) intAt(ref Ref) (*intSlot, error) {
	if ref.Kind != KindInt || ref.Offset < 0 || ref.Offset >= len(s.ints) {
		return nil, simerr.New(simerr.Resolution, "no such int slot: %v", ref)
	}
	return &s.ints[ref.Offset], nil
}

func (s *Store) chanAt(ref Ref) (*chanSlot, error) {
	if ref.Kind != KindChannel || ref.Offset < 0 || ref.Offset >= len(s.chans) {
		return nil, simerr.New(simerr.Resolution, "no such channel slot: %v", ref)
	}
	return &s.chans[ref.Offset], nil
}

// GetBool reads the current ternary value of a Bool slot.
func (s *Store) GetBool(ref Ref) (Tern, error) {
	b, err := s.boolAt(ref)
	if err != nil {
		return X, err
	}
	return b.value, nil
}

// SetBool writes a Bool slot and fans the mutation out to its watchers.
// The suppress-when-unchanged rule means that writing the value already
// held is a no-op that does not notify watchers or the mutate hook.
func (s *Store) SetBool(ref Ref, v Tern) error {
	b, err := s.boolAt(ref)
	if err != nil {
		return err
	}
	if b.value == v {
		return nil
	}
	b.value = v
	s.fanoutBool(ref, b)
	return nil
}

func (s *Store) fanoutBool(ref Ref, b *boolSlot) {
	for _, sub := range b.watchers {
		sub.w.Wake(ref)
	}
	s.notifyMutate(ref)
}

// GetInt reads the current value of an Int slot.
func (s *Store) GetInt(ref Ref) (bigint.Uint, error) {
	i, err := s.intAt(ref)
	if err != nil {
		return bigint.Uint{}, err
	}
	return i.value, nil
}

// SetInt writes an Int slot after checking the value against its
// declared bitwidth; a value outside [0, 2^W) is a TypeDomain error and
// leaves the slot unchanged.
func (s *Store) SetInt(ref Ref, v bigint.Uint) error {
	i, err := s.intAt(ref)
	if err != nil {
		return err
	}
	bounded := v.WithWidth(i.width)
	if !bounded.InRange() {
		return simerr.New(simerr.TypeDomain, "value does not fit into variable's bitwidth")
	}
	if i.value.Cmp(bounded) == 0 {
		return nil
	}
	i.value = bounded
	for _, sub := range i.watchers {
		sub.w.Wake(ref)
	}
	s.notifyMutate(ref)
	return nil
}

// IntWidth reports the declared bitwidth of an Int slot.
func (s *Store) IntWidth(ref Ref) (uint, error) {
	i, err := s.intAt(ref)
	if err != nil {
		return 0, err
	}
	return i.width, nil
}

// Channel returns the FSM backing a Channel slot.
func (s *Store) Channel(ref Ref) (*channel.FSM, error) {
	c, err := s.chanAt(ref)
	if err != nil {
		return nil, err
	}
	return c.fsm, nil
}

// NotifyChannel fans a channel phase change out to its probe watchers
// and the mutate hook. Called by higher layers (the channel package
// itself has no notion of watchers) after any FSM transition.
func (s *Store) NotifyChannel(ref Ref) error {
	c, err := s.chanAt(ref)
	if err != nil {
		return err
	}
	for _, sub := range c.watchers {
		sub.w.Wake(ref)
	}
	s.notifyMutate(ref)
	return nil
}

// Handle identifies a single Subscribe call so it can later be cancelled,
// mirroring the EventQueue's push/cancel handle pattern.
type Handle int

// Subscribe registers w to be woken whenever the slot at ref mutates and
// returns a handle that Unsubscribe can later use to remove it.
func (s *Store) Subscribe(ref Ref, w Watcher) (Handle, error) {
	s.nextHandle++
	h := s.nextHandle
	sub := subscription{handle: h, w: w}
	switch ref.Kind {
	case KindBool:
		b, err := s.boolAt(ref)
		if err != nil {
			return 0, err
		}
		b.watchers = append(b.watchers, sub)
	case KindInt:
		i, err := s.intAt(ref)
		if err != nil {
			return 0, err
		}
		i.watchers = append(i.watchers, sub)
	case KindChannel:
		c, err := s.chanAt(ref)
		if err != nil {
			return 0, err
		}
		c.watchers = append(c.watchers, sub)
	default:
		return 0, simerr.New(simerr.Resolution, "unknown slot kind %v", ref.Kind)
	}
	return Handle(h), nil
}

// Unsubscribe removes the subscription identified by h from ref's
// watcher list. It is a no-op if h was never registered there.
func (s *Store) Unsubscribe(ref Ref, h Handle) error {
	rm := func(ws []subscription) []subscription {
		out := ws[:0]
		for _, cur := range ws {
			if cur.handle != int(h) {
				out = append(out, cur)
			}
		}
		return out
	}
	switch ref.Kind {
	case KindBool:
		b, err := s.boolAt(ref)
		if err != nil {
			return err
		}
		b.watchers = rm(b.watchers)
	case KindInt:
		i, err := s.intAt(ref)
		if err != nil {
			return err
		}
		i.watchers = rm(i.watchers)
	case KindChannel:
		c, err := s.chanAt(ref)
		if err != nil {
			return err
		}
		c.watchers = rm(c.watchers)
	default:
		return simerr.New(simerr.Resolution, "unknown slot kind %v", ref.Kind)
	}
	return nil
}
