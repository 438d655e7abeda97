package channel

import "github.com/asyncvlsi/actsim/simerr"

// ErrBusy reports a StateIllegal error: the requested transition is not
// valid from the channel's current phase.
func ErrBusy(phase Phase, action string) error {
	return simerr.New(simerr.StateIllegal, "channel is in phase %s, cannot %s", phase, action)
}

// ErrIllegal wraps an arbitrary StateIllegal condition.
func ErrIllegal(msg string) error {
	return simerr.New(simerr.StateIllegal, "%s", msg)
}
