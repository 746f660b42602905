// Package errs defines the error kinds returned by the stack-trace
// collection subsystem, per spec.md §7. Operations in threadstack,
// snapshot, and their internal packages report their documented failure
// modes as one of these kinds (wrapped with a call-site stack via
// github.com/pkg/errors), so callers can branch on KindOf without string
// matching. Errors outside those modes, such as a failed rt_sigaction
// during install or a thread-name read failing for a reason other than
// the thread having exited, are wrapped with context but carry no Kind.
package errs

import "github.com/pkg/errors"

// Kind identifies which of the documented failure modes an operation hit.
type Kind int

const (
	// None is returned by KindOf for errors not produced by this module.
	None Kind = iota

	// InvalidArgument: the requested signal is already bound to a
	// foreign handler.
	InvalidArgument

	// NotSupported: running on a platform without the required
	// signal/syscall surface.
	NotSupported

	// NotFound: signal delivery failed because the thread has exited.
	NotFound

	// TimedOut: the target did not respond before the deadline, usually
	// because it has the collection signal blocked.
	TimedOut

	// Incomplete: refused because a debugger/tracer is attached.
	Incomplete

	// IOError: failure to read the kernel thread listing or
	// /proc/self/status.
	IOError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotSupported:
		return "NotSupported"
	case NotFound:
		return "NotFound"
	case TimedOut:
		return "TimedOut"
	case Incomplete:
		return "Incomplete"
	case IOError:
		return "IOError"
	default:
		return "None"
	}
}

// sentinel is the Kind's causeless base error, the thing errors.Is and
// KindOf actually match against once github.com/pkg/errors has wrapped
// it with context and a construction-site stack.
type sentinel struct {
	kind Kind
	msg  string
}

func (s *sentinel) Error() string { return s.msg }

var sentinels = map[Kind]*sentinel{
	InvalidArgument: {InvalidArgument, "invalid argument"},
	NotSupported:    {NotSupported, "not supported"},
	NotFound:        {NotFound, "not found"},
	TimedOut:        {TimedOut, "timed out"},
	Incomplete:      {Incomplete, "incomplete"},
	IOError:         {IOError, "i/o error"},
}

// New builds an error of the given kind with a formatted message,
// carrying a construction-site stack trace courtesy of pkg/errors.
func New(kind Kind, format string, args ...interface{}) error {
	base := sentinels[kind]
	if base == nil {
		base = &sentinel{kind, "unknown error"}
	}
	if format == "" {
		return errors.WithStack(base)
	}
	return errors.Wrapf(base, format, args...)
}

// KindOf unwraps err looking for one of this package's sentinels and
// returns its Kind, or None if err is nil or was not produced here.
func KindOf(err error) Kind {
	if err == nil {
		return None
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.kind
		}
	}
	return None
}

// Is reports whether err's kind, once unwrapped, is k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
