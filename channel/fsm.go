// Package channel implements the rendezvous synchronous channel state
// machine: a send and a receive on the same channel must meet before
// either completes. The FSM never blocks a goroutine -- the kernel is
// single-threaded and cooperative -- it only records which side is
// waiting and returns enough information for the caller to suspend a
// CHP thread and later resume it.
package channel

import "github.com/asyncvlsi/actsim/bigint"

// Phase is one of the five rendezvous states in the transition table.
type Phase int

const (
	Idle Phase = iota
	WaitingSender
	WaitingReceiver
	WaitingSendProbe
	WaitingRecvProbe
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case WaitingSender:
		return "WaitingSender"
	case WaitingReceiver:
		return "WaitingReceiver"
	case WaitingSendProbe:
		return "WaitingSendProbe"
	case WaitingRecvProbe:
		return "WaitingRecvProbe"
	default:
		return "Unknown"
	}
}

// Resume identifies the continuation the FSM must wake once a rendezvous
// completes. It is opaque to the channel package: the chp package hands
// in a token (typically a thread ID) and gets it back unchanged from
// Recv/Send/SkipSend/SkipRecv.
type Resume any

// FSM is one channel's rendezvous state. Width is the declared channel
// width in bits; Data sent outside [0, 2^Width) is rejected by the caller
// before it ever reaches Send.
type FSM struct {
	Width uint

	phase Phase
	data  bigint.Uint

	senderResume   Resume
	receiverResume Resume

	completedCount uint64

	probeSendResume []Resume
	probeRecvResume []Resume
}

// New creates an Idle channel of the given width.
func New(width uint) *FSM {
	return &FSM{Width: width, phase: Idle}
}

func (f *FSM) Phase() Phase           { return f.phase }
func (f *FSM) CompletedCount() uint64 { return f.completedCount }
func (f *FSM) Data() bigint.Uint      { return f.data }

// Result describes the effect of a transition: whether it completed a
// rendezvous immediately (delivering a value to the peer) or left the
// caller suspended.
type Result struct {
	// Completed is true when the rendezvous finished as part of this call.
	Completed bool
	// PeerResume is the peer's Resume token to wake, valid when Completed.
	PeerResume Resume
	// Delivered is the value handed to the receiver, valid when Completed
	// and this call was a Send or a Recv that matched a waiting sender.
	Delivered bigint.Uint
}

// Send attempts side C!v. If a receiver is already waiting the
// rendezvous completes immediately and the receiver's Resume token is
// returned so the caller can wake it; otherwise the sender suspends and
// `resume` is latched for a later Recv to find.
func (f *FSM) Send(value bigint.Uint, resume Resume) (Result, error) {
	switch f.phase {
	case Idle:
		f.phase = WaitingSender
		f.data = value
		f.senderResume = resume
		return Result{}, nil
	case WaitingReceiver:
		peer := f.receiverResume
		f.receiverResume = nil
		f.phase = Idle
		f.completedCount++
		return Result{Completed: true, PeerResume: peer, Delivered: value}, nil
	default:
		return Result{}, ErrBusy(f.phase, "send")
	}
}

// Recv attempts side C?x. Symmetric to Send.
func (f *FSM) Recv(resume Resume) (Result, error) {
	switch f.phase {
	case Idle:
		f.phase = WaitingReceiver
		f.receiverResume = resume
		return Result{}, nil
	case WaitingSender:
		peer := f.senderResume
		delivered := f.data
		f.senderResume = nil
		f.phase = Idle
		f.completedCount++
		return Result{Completed: true, PeerResume: peer, Delivered: delivered}, nil
	default:
		return Result{}, ErrBusy(f.phase, "recv")
	}
}

// Probe reports whether a peer is blocked on the opposite side of the
// channel -- the value of a `#C` guard expression. It never blocks and
// never transitions the FSM.
func (f *FSM) Probe(fromSenderSide bool) bool {
	if fromSenderSide {
		return f.phase == WaitingReceiver
	}
	return f.phase == WaitingSender
}

// SendProbe and RecvProbe implement the probe-wait phases used when a
// select statement's guard is exactly `#C` and the channel is not
// already satisfiable: the thread suspends until the peer state changes,
// at which point the probe resume token is notified so the guard can be
// re-evaluated. They do not complete a rendezvous themselves.
func (f *FSM) SendProbe(resume Resume) error {
	if f.phase != Idle {
		return ErrBusy(f.phase, "send_probe")
	}
	f.phase = WaitingSendProbe
	f.probeSendResume = append(f.probeSendResume, resume)
	return nil
}

func (f *FSM) RecvProbe(resume Resume) error {
	if f.phase != Idle {
		return ErrBusy(f.phase, "recv_probe")
	}
	f.phase = WaitingRecvProbe
	f.probeRecvResume = append(f.probeRecvResume, resume)
	return nil
}

// DrainProbeWaiters returns and clears all probe-wait continuations and
// resets the FSM to Idle, used when a probe phase is satisfied from the
// peer side or abandoned.
func (f *FSM) DrainProbeWaiters() []Resume {
	var out []Resume
	out = append(out, f.probeSendResume...)
	out = append(out, f.probeRecvResume...)
	f.probeSendResume = nil
	f.probeRecvResume = nil
	f.phase = Idle
	return out
}

// SkipSend drops a pending send from WaitingSender back to Idle without
// completing it, per the skip-comm recovery command. The sender's own
// Resume token is returned so its thread can be woken with no delivered
// value.
func (f *FSM) SkipSend() (Resume, error) {
	if f.phase != WaitingSender {
		return nil, ErrIllegal("skip-comm send: channel is not waiting on a sender")
	}
	r := f.senderResume
	f.senderResume = nil
	f.phase = Idle
	return r, nil
}

// SkipRecv is symmetric to SkipSend.
func (f *FSM) SkipRecv() (Resume, error) {
	if f.phase != WaitingReceiver {
		return nil, ErrIllegal("skip-comm recv: channel is not waiting on a receiver")
	}
	r := f.receiverResume
	f.receiverResume = nil
	f.phase = Idle
	return r, nil
}
