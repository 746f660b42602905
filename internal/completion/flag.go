// Package completion implements the async-signal-safe one-shot
// completion flag from spec.md §4.A: a boolean with a timed wait that
// can be signaled from inside a signal handler (or, in this port, from
// the cgo C code that plays the handler's role) without heap allocation
// or userspace locks.
//
// The flag is backed by a futex word. Signal performs a plain atomic
// store and a raw FUTEX_WAKE syscall; WaitUntil loops a raw FUTEX_WAIT
// syscall with a relative timeout, re-examining the word on every wake
// (spurious or real) the way the teacher's mutex-guarded globals always
// re-check state after waking rather than trusting the wakeup reason.
//
// Futexes rendezvous at the kernel level on a memory address, not
// through any language-specific API, so the same address can be woken
// from C (internal/sigcollect's handler) and waited-on from Go (here)
// with no additional glue.
package completion

import (
	"sync/atomic"
	"time"
)

// Flag is a one-shot, async-signal-safe completion flag with a timed
// wait. The zero value is unset.
//
// Flag must not be copied after first use (it is addressed by pointer
// from the cgo signal handler through internal/rendezvous.Data).
type Flag struct {
	word int32
}

// Signal marks the flag complete and wakes every waiter. Safe to call
// from async-signal-safe context (this Go implementation is used by
// tests and the non-cgo fallback path; the real cross-thread signal
// path calls the C equivalent directly on the same memory, see
// internal/sigcollect).
func (f *Flag) Signal() {
	atomic.StoreInt32(&f.word, 1)
	futexWake(&f.word)
}

// Complete reports whether Signal has been called, without blocking.
func (f *Flag) Complete() bool {
	return atomic.LoadInt32(&f.word) == 1
}

// Reset clears the flag back to unset. Only safe to call when no waiter
// and no signaler can be concurrently active — the collector only resets
// a rendezvous it has exclusive ownership of (see spec.md §3: "once
// result_ready is set, the rendezvous is immutable" applies until the
// owner reclaims it from a freelist).
func (f *Flag) Reset() {
	atomic.StoreInt32(&f.word, 0)
}

// NoDeadline requests an unbounded wait, used by the collector's revoke
// protocol when it must wait for a handler that has already claimed the
// rendezvous (spec.md §4.F: "bounded by handler work, a few hundred
// frames of unwinding").
var NoDeadline = time.Time{}

// WaitUntil blocks until the flag becomes complete or deadline passes
// (the zero Time, NoDeadline, waits forever), returning whether it
// completed in time. Spurious wakes are tolerated: every wake
// re-examines the word before either returning or sleeping again.
func (f *Flag) WaitUntil(deadline time.Time) bool {
	if f.Complete() {
		return true
	}
	for {
		var timeout time.Duration = -1 // block indefinitely
		if !deadline.IsZero() {
			timeout = time.Until(deadline)
			if timeout <= 0 {
				return f.Complete()
			}
		}
		futexWait(&f.word, 0, timeout)
		if f.Complete() {
			return true
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return f.Complete()
		}
	}
}
