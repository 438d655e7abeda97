// Package simerr defines the error-kind taxonomy used at every command
// boundary of the simulator, and the warning policy that funnels runtime
// anomalies (assert mismatches, exclusive-monitor violations, X-driven
// nodes) through a single decision point.
package simerr

import "fmt"

// Kind distinguishes the error categories a command handler can report.
// Usage, Resolution, TypeDomain and StateIllegal are always recovered at
// the command boundary without disturbing kernel state; Warning is routed
// through the active Policy; Fatal means a kernel invariant broke and the
// process cannot continue.
type Kind int

const (
	Usage Kind = iota
	Resolution
	TypeDomain
	StateIllegal
	Warning
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Usage:
		return "Usage"
	case Resolution:
		return "Resolution"
	case TypeDomain:
		return "TypeDomain"
	case StateIllegal:
		return "StateIllegal"
	case Warning:
		return "Warning"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with a message and an optional underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is a *Error of the given Kind, unwrapping along
// the way.
func Is(err error, kind Kind) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			return se.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Policy controls how a Warning-kind anomaly is handled once raised.
type Policy int

const (
	// PolicyIgnore logs the warning and continues.
	PolicyIgnore Policy = iota
	// PolicyBreak stops the current run (as a breakpoint would) but keeps
	// the process alive.
	PolicyBreak
	// PolicyExit terminates the process with ExitWarning.
	PolicyExit
)

func (p Policy) String() string {
	switch p {
	case PolicyIgnore:
		return "ignore"
	case PolicyBreak:
		return "break"
	case PolicyExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Exit codes from §6 of the simulator's external-interface contract.
const (
	ExitOK       = 0
	ExitUsage    = 1
	ExitWarning  = 2
)
