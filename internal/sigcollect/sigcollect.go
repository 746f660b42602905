// Package sigcollect implements components D and E from spec.md: the
// process-wide signal handler installer (§4.E) and, on linux/amd64, the
// signal handler itself (§4.D). Everything platform-independent (the
// installer's state machine, the default signal number, the one-time
// unwinder priming) lives here; the platform-specific halves — actually
// calling sigaction(2) and rt_tgsigqueueinfo(2), and the handler body —
// live in handler_linux_amd64.go (cgo) and handler_other.go (stub).
package sigcollect

import (
	"os"
	"sync"

	"github.com/kolkov/threadstack/internal/rendezvous"
	"github.com/kolkov/threadstack/internal/stacktrace"
	"github.com/pkg/errors"

	"github.com/kolkov/threadstack/errs"
)

// DefaultSignum is SIGRTMIN+2 in glibc's numbering: glibc's NPTL
// implementation keeps the kernel's first two real-time signals (32 and
// 33) for thread cancellation and setuid handling and reports SIGRTMIN
// as 34, so this is signal 36. It matches spec.md's "default a user
// signal" guidance and the original's SIGUSR2 choice updated for a
// queued-payload-capable signal.
const DefaultSignum = 36 // SIGRTMIN(34) + 2 on glibc/Linux.

type installState int

const (
	stateUninitialized installState = iota
	stateError
	stateInitialized
)

var (
	mu      rendezvous.SpinLock
	state   = stateUninitialized
	signum  = DefaultSignum
	primeOnce sync.Once
)

// Install ensures the process-wide handler is registered for signum,
// per spec.md §4.E: idempotent, refuses to clobber a foreign handler,
// and aborts the process if it detects it lost a race against another
// installer.
func Install(newSignum int) error {
	mu.Lock()
	defer mu.Unlock()
	return installLocked(newSignum)
}

func installLocked(newSignum int) error {
	if newSignum != signum && state == stateInitialized {
		if err := platformResetIfOurs(signum); err != nil {
			return errs.New(errs.InvalidArgument, "resetting previous signal handler: %v", err)
		}
	}
	if newSignum != signum {
		signum = newSignum
		state = stateUninitialized
	}

	if state == stateUninitialized {
		foreign, err := platformInstall(signum)
		if err != nil {
			return errors.WithStack(err)
		}
		if foreign {
			state = stateError
			return errs.New(errs.InvalidArgument,
				"signal %d is already in use by a foreign handler: will not produce thread stack traces", signum)
		}
		state = stateInitialized
	}
	return nil
}

// SetStackTraceSignal is the public entry point from spec.md §6,
// wrapping Install exactly as spec.md §4.E describes.
func SetStackTraceSignal(newSignum int) error {
	return Install(newSignum)
}

// CurrentSignum reports the signal number currently installed (or
// pending installation).
func CurrentSignum() int {
	mu.Lock()
	defer mu.Unlock()
	return signum
}

// EnsureInstalled installs the default signal if nothing has installed
// one yet; internal/collector calls this before every TriggerAsync so
// that a bare GetThreadStack call works without an explicit
// SetStackTraceSignal first.
func EnsureInstalled() error {
	mu.Lock()
	defer mu.Unlock()
	if state == stateInitialized {
		return nil
	}
	return installLocked(signum)
}

// PrimeUnwinder forces one dummy self-collection so that any one-time,
// non-async-signal-safe lazy initialization inside the unwinder happens
// on this (benign, non-signal) context before the first signal is ever
// armed — spec.md §4.B's "library priming" requirement. Go's own
// runtime.Callers has no such double-checked-locking hazard, but the
// frame-pointer walker used inside the handler has no first-call
// initialization either; this is kept, and called from
// internal/collector.TriggerAsync, purely so the state machine matches
// spec.md's described sequence and so a future unwinder swap-in keeps
// the same safety property for free.
func PrimeUnwinder() {
	primeOnce.Do(func() {
		var r stacktrace.Record
		r.Collect(0)
	})
}

// Send queues the collection signal at tid, carrying data's address as
// the signal's payload, per spec.md §4.A. The caller must have already
// called EnsureInstalled (internal/collector does, before every
// TriggerAsync) and must keep data reachable until it revokes the
// rendezvous; data is typically heap-escaped by its own address already
// being taken via rendezvous.Data.Addr.
func Send(tid int64, data *rendezvous.Data) error {
	mu.Lock()
	sig := signum
	mu.Unlock()

	pid := os.Getpid()
	if err := platformSendSignal(pid, int(tid), sig, data.Addr()); err != nil {
		return errs.New(errs.NotFound, "queuing signal %d to tid %d: %v", sig, tid, err)
	}
	return nil
}
