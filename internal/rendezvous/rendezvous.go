// Package rendezvous implements the shared payload that crosses the
// signal boundary between a requesting goroutine and the signal handler
// running on the target thread, per spec.md §3.
//
// Data's field order and widths are fixed and must not change: the cgo
// handler in internal/sigcollect addresses Data's fields by raw C struct
// offset through the pointer carried in the queued signal's sival_ptr,
// so Data and its C mirror (see handler_linux_amd64.go's preamble) must
// stay bit-for-bit identical.
package rendezvous

import (
	"sync/atomic"
	"unsafe"

	"github.com/kolkov/threadstack/internal/completion"
	"github.com/kolkov/threadstack/internal/stacktrace"
)

// Sentinel values for QueuedToTID, exactly as spec.md §3 defines them.
const (
	// NotInUse means the requester has revoked, or no request is in
	// flight yet; the handler must abort without touching Stack.
	NotInUse int64 = 0

	// DumpStarted means a handler invocation has claimed this
	// rendezvous and is (or has finished) writing Stack.
	DumpStarted int64 = -1
)

// Data is the rendezvous object from spec.md §3: a pointer to a
// caller-owned stack trace record, the atomic tag that arbitrates
// exactly one handler invocation succeeding, and the completion flag the
// requester waits on.
//
// Data is heap-allocated by internal/collector and its address is handed
// to the kernel via sigqueue; it must never move (Go's non-moving GC for
// heap objects addressed by unsafe.Pointer makes this safe as long as no
// copy is ever taken of the struct itself — always pass *Data).
type Data struct {
	// Stack is the caller-owned destination for the collected frames.
	// Only ever written while QueuedToTID == DumpStarted (the CAS that
	// sets DumpStarted is also the license to write here).
	Stack *stacktrace.Record

	// QueuedToTID is NotInUse, DumpStarted, or the tid the requester is
	// waiting on. See the state machine in spec.md §3.
	QueuedToTID int64

	// ResultReady is signaled once Stack has been fully written.
	ResultReady completion.Flag
}

// New allocates a rendezvous armed for tid, pointing at stack.
func New(tid int64, stack *stacktrace.Record) *Data {
	return &Data{
		Stack:       stack,
		QueuedToTID: tid,
	}
}

// CASClaim attempts the handler-side transition (tid, false) -> (DumpStarted,
// false). It returns true exactly once per armed rendezvous, to exactly
// one caller, even if invoked concurrently from signals racing on
// different CPUs (as the real cgo handler would).
func (d *Data) CASClaim(tid int64) bool {
	return atomic.CompareAndSwapInt64(&d.QueuedToTID, tid, DumpStarted)
}

// Revoke performs the requester-side half of the state machine: it
// unconditionally exchanges QueuedToTID back to NotInUse and reports the
// value it displaced, so the caller (internal/collector) can decide
// whether the handler ever ran.
func (d *Data) Revoke() (previous int64) {
	return atomic.SwapInt64(&d.QueuedToTID, NotInUse)
}

// Rearm reinitializes an idle Data for reuse against a new tid/stack
// pair, for internal/threadreg.Freelist: Get only ever hands back an
// entry once LoadQueuedToTID confirms it is NotInUse, so this does not
// itself re-check that — callers must only rearm a Data obtained from
// Freelist.Get (or a freshly constructed one).
func (d *Data) Rearm(tid int64, stack *stacktrace.Record) {
	d.ResultReady.Reset()
	d.Stack = stack
	atomic.StoreInt64(&d.QueuedToTID, tid)
}

// LoadQueuedToTID reads the current tag without mutating it. Exposed for
// tests and for internal/threadreg's freelist, which must confirm a
// parked entry is truly idle (NotInUse) before handing it back out.
func (d *Data) LoadQueuedToTID() int64 {
	return atomic.LoadInt64(&d.QueuedToTID)
}

// Addr returns the address handed to the kernel as the signal's
// sival_ptr. Kept as its own accessor (rather than inlined at every call
// site) so every place that takes this address is easy to audit.
func (d *Data) Addr() unsafe.Pointer {
	return unsafe.Pointer(d)
}
