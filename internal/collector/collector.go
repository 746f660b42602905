// Package collector implements the single-rendezvous orchestration from
// spec.md §4: arming a rendezvous for one target thread, queuing the
// collection signal, and waiting for (or timing out on) the result.
// It is grounded directly on Kudu's StackTraceCollector
// (kudu/util/debug-util.cc), generalized from C++'s explicit
// move-only/destructor discipline to a Go value used once via
// TriggerAsync/AwaitCollection.
package collector

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kolkov/threadstack/errs"
	"github.com/kolkov/threadstack/internal/completion"
	"github.com/kolkov/threadstack/internal/rendezvous"
	"github.com/kolkov/threadstack/internal/sigcollect"
	"github.com/kolkov/threadstack/internal/stacktrace"
	"github.com/kolkov/threadstack/internal/threadreg"
	"github.com/kolkov/threadstack/metrics"
)

// Collector drives exactly one remote stack capture. It is not
// reusable: TriggerAsync may be called at most once per Collector.
type Collector struct {
	tid  int64
	data *rendezvous.Data
}

// observer is consulted, if non-nil, at the end of every TriggerAsync and
// AwaitCollection call. It defaults to nil (no-op) so collector has no
// Prometheus dependency until a caller opts in via SetMetrics.
var observer *metrics.Collectors

// SetMetrics installs the Prometheus collectors TriggerAsync/AwaitCollection
// report outcomes and latency to. Passing nil (the default) disables
// instrumentation. cmd/stackdump calls this once at startup with a
// metrics.NewCollectors registered against its own fresh registry.
func SetMetrics(m *metrics.Collectors) {
	observer = m
}

// TriggerAsync arms a rendezvous for tid pointing at stack and queues
// the collection signal. Callers must eventually call AwaitCollection,
// even if they no longer care about the result, so the rendezvous gets
// revoked; an armed Collector that is simply dropped leaks (see revoke
// below for why that is sometimes unavoidable even when done
// correctly).
func (c *Collector) TriggerAsync(tid int64, stack *stacktrace.Record) (err error) {
	if observer != nil {
		defer func() { observer.ObserveTrigger(err == nil) }()
	}

	if c.data != nil || c.tid != 0 {
		return errs.New(errs.InvalidArgument, "TriggerAsync called more than once on the same Collector")
	}

	if err = sigcollect.EnsureInstalled(); err != nil {
		return errors.Wrap(err, "signal handler unavailable")
	}

	// Priming must happen before any signal is armed: the first call
	// into the unwinder can itself perform non-reentrant one-time setup,
	// which must never happen for the first time inside the handler.
	sigcollect.PrimeUnwinder()

	data := pool.Get()
	if data != nil {
		data.Rearm(tid, stack)
	} else {
		data = rendezvous.New(tid, stack)
	}
	if err = sigcollect.Send(tid, data); err != nil {
		return err
	}

	c.data = data
	c.tid = tid
	return nil
}

// AwaitCollection waits until deadline for the signal handler to finish,
// then unconditionally revokes the rendezvous. It returns nil if the
// stack was actually collected, or a TimedOut error if the target never
// responded (most commonly because it has the collection signal
// blocked).
func (c *Collector) AwaitCollection(deadline time.Time) error {
	if c.data == nil {
		return errs.New(errs.InvalidArgument, "AwaitCollection called before a successful TriggerAsync")
	}

	start := time.Now()
	c.data.ResultReady.WaitUntil(deadline)
	completed := c.revoke()
	if observer != nil {
		observer.ObserveCollection(time.Since(start).Seconds())
	}
	if !completed {
		return errs.New(errs.TimedOut, "thread %d did not respond: it may be blocking the collection signal", c.tid)
	}
	return nil
}

// pool holds rendezvous structs no longer owned by any in-flight
// Collector, including ones whose signal never arrived before we gave up
// waiting on them. We cannot free (or let the GC collect) a still-armed
// one: if the signal is delivered later, the handler will still write
// through the pointer it was queued with. Kudu's own TODO here ("instead
// of leaking, insert these into a global free-list and reuse them") is
// implemented here: pool.Put keeps every revoked Data reachable. revoke
// always swaps the tag to NotInUse before parking, so every parked entry
// passes pool.Get's idle check and can be handed to the next TriggerAsync
// even while its earlier signal is still pending; such a late signal
// only claims it if it was rearmed for the same tid, because the
// handler's CAS requires its own tid.
var pool threadreg.Freelist

// revoke performs the two-outcome exchange spec.md §4 describes: if the
// handler already claimed the rendezvous, wait for it to finish filling
// in the stack; otherwise exchange the tag back to NotInUse so a
// late-arriving signal aborts instead of writing into memory the caller
// may reuse or drop. Either way the struct is parked on pool rather than
// dropped, so a later TriggerAsync against any tid can reclaim it once
// it is confirmed idle.
func (c *Collector) revoke() (completed bool) {
	prev := c.data.Revoke()
	if prev == c.tid {
		pool.Put(c.data)
		c.data = nil
		return false
	}

	// prev must be DumpStarted: the handler claimed it, so wait for the
	// write to finish (WaitUntil with no deadline: the handler has
	// already started and cannot block indefinitely without itself being
	// stuck inside a signal handler, which is a bug we cannot recover
	// from by timing out here).
	c.data.ResultReady.WaitUntil(completion.NoDeadline)
	pool.Put(c.data)
	c.data = nil
	return true
}

// GetThreadStack is the single-call convenience wrapper from spec.md
// §6: trigger, wait up to one second, and report whichever error (if
// any) resulted.
func GetThreadStack(tid int64, stack *stacktrace.Record) error {
	var c Collector
	if err := c.TriggerAsync(tid, stack); err != nil {
		return err
	}
	return c.AwaitCollection(time.Now().Add(time.Second))
}
