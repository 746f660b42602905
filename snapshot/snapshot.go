// Package snapshot implements the fan-out orchestrator from spec.md
// §4.G: enumerate every kernel thread in the process, trigger a
// collection against each, wait on a common deadline, and present the
// results sorted and grouped by identical stack.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/kolkov/threadstack/errs"
	"github.com/kolkov/threadstack/internal/collector"
	"github.com/kolkov/threadstack/internal/stacktrace"
	"github.com/kolkov/threadstack/internal/threadreg"
	"github.com/kolkov/threadstack/metrics"
)

// observer is consulted, if non-nil, at the end of every successful
// SnapshotAll. Defaults to nil; cmd/stackdump opts in via SetMetrics.
var observer *metrics.Collectors

// SetMetrics installs the Prometheus collectors SnapshotAll reports its
// failure and group counts to. Passing nil (the default) disables
// instrumentation.
func SetMetrics(m *metrics.Collectors) {
	observer = m
}

// ThreadInfo is one per-thread result, per spec.md §3's Snapshot entry.
// Hash is a supplemented field (SPEC_FULL.md §3): the stack's stable
// hash computed once up front, so VisitGroups' consumers can pre-bucket
// before paying for the authoritative lexicographic comparison Less
// already performs during Sort.
type ThreadInfo struct {
	TID        int64
	ThreadName string
	Stack      stacktrace.Record
	Hash       uint64
	Err        error
}

// unknownThreadName is substituted when thread-name capture fails,
// exactly as spec.md §4.G describes.
const unknownThreadName = "<unknown name>"

// Snapshot owns the per-thread results of one snapshot_all_stacks call.
// It is constructed empty and populated by exactly one call to
// SnapshotAll.
type Snapshot struct {
	// CaptureThreadNames toggles the overlapped /proc/self/task/<tid>/comm
	// read in step 4. Defaults to true; exposed so config.Config can wire
	// it to a flag, per SPEC_FULL.md §9.
	CaptureThreadNames bool

	threads   []ThreadInfo
	numFailed int
}

// New returns an empty Snapshot ready for SnapshotAll.
func New() *Snapshot {
	return &Snapshot{CaptureThreadNames: true}
}

// FromThreads builds an already-populated Snapshot directly from a
// caller-supplied, unsorted thread list, applying the same sort
// SnapshotAll would. Useful for feeding pprofexport or VisitGroups from
// results gathered some other way (tests, or a result deserialized from
// disk) without going through a live SnapshotAll call.
func FromThreads(threads []ThreadInfo) *Snapshot {
	s := &Snapshot{threads: append([]ThreadInfo(nil), threads...)}
	numFailed := 0
	for _, t := range s.threads {
		if t.Err != nil {
			numFailed++
		}
	}
	sort.Slice(s.threads, func(i, j int) bool {
		a, b := s.threads[i], s.threads[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err != nil
		}
		if a.Err != nil {
			return a.TID < b.TID
		}
		return a.Stack.Less(&b.Stack)
	})
	s.numFailed = numFailed
	return s
}

// NumFailed reports how many threads did not yield a stack.
func (s *Snapshot) NumFailed() int { return s.numFailed }

// Threads returns the populated, sorted results. Valid only after
// SnapshotAll has returned.
func (s *Snapshot) Threads() []ThreadInfo { return s.threads }

// SnapshotAll implements spec.md §4.G steps 1-7.
func (s *Snapshot) SnapshotAll(ctx context.Context) error {
	if attached, err := threadreg.IsDebuggerAttached(); err != nil {
		return err
	} else if attached {
		return errs.New(errs.Incomplete, "refusing to collect stacks: a debugger is attached")
	}

	tids, err := threadreg.ListThreads()
	if err != nil {
		return err
	}

	type inflight struct {
		tid   int64
		stack stacktrace.Record
		c     collector.Collector
		err   error
		name  string
	}
	entries := make([]inflight, len(tids))

	// Step 3: trigger every collector in sequence. This is intentionally
	// serial, matching spec.md: each TriggerAsync only queues a signal and
	// returns, it does not wait, so the fan-out cost is the syscall, not
	// the target thread's response time.
	for i, tid := range tids {
		entries[i].tid = tid
		if ctx.Err() != nil {
			entries[i].err = ctx.Err()
			continue
		}
		if err := entries[i].c.TriggerAsync(tid, &entries[i].stack); err != nil {
			entries[i].err = err
		}
	}

	// Step 4: overlap thread-name capture with the in-flight signals.
	if s.CaptureThreadNames {
		for i := range entries {
			name, err := threadreg.ThreadName(entries[i].tid)
			if err != nil {
				name = unknownThreadName
			}
			entries[i].name = name
		}
	}

	// Step 5: common deadline, await every thread that is still ok.
	deadline := time.Now().Add(time.Second)
	numFailed := 0
	for i := range entries {
		if entries[i].err != nil {
			numFailed++
			continue
		}
		if err := entries[i].c.AwaitCollection(deadline); err != nil {
			entries[i].err = err
			numFailed++
		}
	}

	threads := make([]ThreadInfo, len(entries))
	for i, e := range entries {
		ti := ThreadInfo{TID: e.tid, ThreadName: e.name, Err: e.err}
		if e.err == nil {
			ti.Stack = e.stack
			ti.Hash = ti.Stack.Hash()
		}
		threads[i] = ti
	}

	// Step 7: sort by stack (lexicographic on the frame prefix). Failed
	// entries (no populated stack) sort first, grouped together but never
	// mixed in with a real stack group.
	sort.Slice(threads, func(i, j int) bool {
		a, b := threads[i], threads[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err != nil // failures first
		}
		if a.Err != nil {
			return a.TID < b.TID
		}
		return a.Stack.Less(&b.Stack)
	})

	s.threads = threads
	s.numFailed = numFailed

	if observer != nil {
		numGroups := 0
		s.VisitGroups(func(group []ThreadInfo) { numGroups++ })
		observer.ObserveSnapshot(numFailed, numGroups)
	}
	return nil
}

// VisitGroups walks the sorted results and invokes visitor once per
// maximal run of consecutive equal stacks (failed entries form their own
// one-entry-at-a-time groups, since a failed entry carries no stack to
// compare). Groups are disjoint and their union covers every entry, per
// spec.md §4.G.
func (s *Snapshot) VisitGroups(visitor func(group []ThreadInfo)) {
	threads := s.threads
	i := 0
	for i < len(threads) {
		if threads[i].Err != nil {
			visitor(threads[i : i+1])
			i++
			continue
		}
		j := i + 1
		for j < len(threads) && threads[j].Err == nil && threads[j].Stack.Equal(&threads[i].Stack) {
			j++
		}
		visitor(threads[i:j])
		i = j
	}
}
