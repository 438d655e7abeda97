package chp

import (
	"encoding/binary"
	"sort"

	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
	"github.com/dgryski/go-farm"
)

// Deadlocked reports whether every live thread of this Process is
// blocked on a selection/loop guard whose fanins have not changed since
// they were last evaluated, the gc-retry command's trigger condition. A
// thread parked on a channel rendezvous (WaitSend/WaitRecv) or a PAR
// join (WaitJoin) is legitimately waiting on a peer, not deadlocked, so
// it does not count: a process with any such thread is not reported
// deadlocked even if another thread is guard-blocked.
func (p *Process) Deadlocked() bool {
	ids := p.threads.IDs()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		th, ok := p.threads.get(id)
		if !ok || th.Wait != WaitGuard {
			return false
		}
	}
	return true
}

// DeadlockSignature hashes the set of fanins every guard-blocked thread
// is waiting on, so a caller repeating gc-retry can tell a genuinely
// stuck deadlock (same signature before and after) from one that only
// looked stuck because a fanin subscription was stale. ok is false when
// the process is not currently Deadlocked.
func (p *Process) DeadlockSignature() (sig uint64, ok bool) {
	if !p.Deadlocked() {
		return 0, false
	}
	ids := p.threads.IDs()
	sort.Ints(ids)
	buf := make([]byte, 0, 24*len(ids))
	for _, id := range ids {
		th, found := p.threads.get(id)
		if !found {
			continue
		}
		refs := make([]state.Ref, len(th.fanins))
		for i, f := range th.fanins {
			refs[i] = f.ref
		}
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].Kind != refs[j].Kind {
				return refs[i].Kind < refs[j].Kind
			}
			return refs[i].Offset < refs[j].Offset
		})
		var idBytes [8]byte
		binary.LittleEndian.PutUint64(idBytes[:], uint64(id))
		buf = append(buf, idBytes[:]...)
		for _, ref := range refs {
			var refBytes [16]byte
			binary.LittleEndian.PutUint64(refBytes[:8], uint64(ref.Kind))
			binary.LittleEndian.PutUint64(refBytes[8:], uint64(ref.Offset))
			buf = append(buf, refBytes[:]...)
		}
	}
	return farm.Hash64(buf), true
}

// GCRetry forces every guard-blocked thread to re-evaluate its
// selection or loop guard from scratch, escaping a spurious deadlock
// left behind after an external `set` that this process's own fanin
// subscriptions did not observe (e.g. the variable was not yet declared
// when the guard first blocked). It is not an error to call on a
// process with nothing blocked.
func (p *Process) GCRetry() error {
	var blocked []int
	for _, id := range p.threads.IDs() {
		th, ok := p.threads.get(id)
		if ok && th.Wait == WaitGuard {
			blocked = append(blocked, id)
		}
	}
	for _, id := range blocked {
		th, ok := p.threads.get(id)
		if !ok {
			continue
		}
		p.clearFanins(th)
		th.Wait = WaitNone
		if err := p.runThread(th); err != nil {
			return err
		}
	}
	return nil
}

// BlockedChannelThread reports the thread, if any, that is currently
// parked sending or receiving on ch, for the skip-comm command to
// locate which side to release.
func (p *Process) BlockedChannelThread(ch state.Ref) (threadID int, isSend bool, found bool) {
	for _, id := range p.threads.IDs() {
		th, ok := p.threads.get(id)
		if !ok {
			continue
		}
		if (th.Wait == WaitSend || th.Wait == WaitRecv) && th.Chan == ch {
			return th.ID, th.Wait == WaitSend, true
		}
	}
	return 0, false, false
}

// TotalSteps sums the metering-hook step count of every thread this
// Process has run, finished threads included, for a future
// energy/leakage command to read; this package
// does not interpret the number itself.
func (p *Process) TotalSteps() uint64 {
	total := p.retiredSteps
	for _, id := range p.threads.IDs() {
		if th, ok := p.threads.get(id); ok {
			total += th.Steps
		}
	}
	return total
}

// ThreadWait reports a live thread's current block state and, if it is
// blocked on a channel, which one, used by the simulator's procinfo
// command.
func (p *Process) ThreadWait(threadID int) (WaitKind, state.Ref, bool) {
	th, ok := p.threads.get(threadID)
	if !ok {
		return WaitNone, state.Ref{}, false
	}
	return th.Wait, th.Chan, true
}

// Goto is the `goto <label>` surgical-edit command: it forces this
// process's single live thread's control stack to the labeled
// statement and resumes running from there, bypassing the guard/channel
// state the thread was in. Only valid with exactly one live thread, the
// same restriction the compiled GOTO node itself enforces.
func (p *Process) Goto(label string) error {
	ids := p.threads.IDs()
	if len(ids) != 1 {
		return simerr.New(simerr.StateIllegal, "goto %q: only valid with a single live thread in the process", label)
	}
	th, ok := p.threads.get(ids[0])
	if !ok {
		return simerr.New(simerr.Fatal, "goto: live thread vanished")
	}
	target, ok := p.labels[label]
	if !ok {
		return simerr.New(simerr.Resolution, "no such label %q", label)
	}
	p.clearFanins(th)
	th.Wait = WaitNone
	th.Chan = state.Ref{}
	th.Frames = []frame{target}
	return p.runThread(th)
}

// SkipComm forcibly abandons threadID's pending send or receive on its
// blocked channel without completing the rendezvous, per §4.4
// "skip-communication": the FSM transition itself (SkipSend/SkipRecv)
// is the caller's job, since it alone knows which channel and which
// direction; this just advances the released thread past the
// NSend/NRecv node with no value delivered and resumes it.
func (p *Process) SkipComm(threadID int) error {
	th, ok := p.threads.get(threadID)
	if !ok {
		return simerr.New(simerr.StateIllegal, "skip-comm: no such thread")
	}
	if th.Wait != WaitSend && th.Wait != WaitRecv {
		return simerr.New(simerr.StateIllegal, "skip-comm: thread is not blocked on a channel")
	}
	fr := th.top()
	if fr == nil || fr.idx >= len(fr.seq) {
		return simerr.New(simerr.Fatal, "skip-comm on a thread with nothing pending")
	}
	fr.idx++
	th.Wait = WaitNone
	th.Chan = state.Ref{}
	return p.runThread(th)
}
