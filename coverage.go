package threadstack

import "sync/atomic"

// flushHook is the caller-registered best-effort coverage flush, the
// Go substitute for the original's weakly-linked __gcov_flush: Go has
// no weak symbols, so callers opt in explicitly via
// RegisterCoverageFlush instead of the hook resolving itself at link
// time.
var flushHook atomic.Pointer[func()]

// flushLock is a try-lock, not a blocking mutex: a flush already in
// progress means the request is dropped rather than queued, matching
// the original's "serialized by a try-lock, silently drops on
// contention" behavior for a diagnostic that is explicitly best-effort.
var flushLock int32

// RegisterCoverageFlush installs fn as the hook TryFlushCoverage calls.
// Passing nil disables flushing. Typically called once from an init
// function in a build that links in `go test -cover`'s counter-writing
// support.
func RegisterCoverageFlush(fn func()) {
	if fn == nil {
		flushHook.Store(nil)
		return
	}
	flushHook.Store(&fn)
}

// IsCoverageBuild reports whether a flush hook is currently registered.
func IsCoverageBuild() bool {
	return flushHook.Load() != nil
}

// TryFlushCoverage runs the registered flush hook, if any, unless a
// flush is already in progress, in which case this call is a silent
// no-op. Safe to call from anywhere; never blocks.
func TryFlushCoverage() {
	hook := flushHook.Load()
	if hook == nil {
		return
	}
	if !atomic.CompareAndSwapInt32(&flushLock, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&flushLock, 0)

	(*hook)()
}
