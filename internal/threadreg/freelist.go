package threadreg

import (
	"sync"

	"github.com/kolkov/threadstack/internal/rendezvous"
)

// Freelist recycles rendezvous structs released by
// internal/collector.revoke, whether the collection completed or timed
// out (revoke stashes them rather than dropping them, since a late
// signal may still write through the pointer). It is
// adapted from the teacher's mutex-guarded freeTIDs stack
// (internal/race/api/race.go's tidPoolMu/freeTIDs/allocTID/freeTID):
// same push/pop-under-a-lock shape, generalized from a byte-sized tid
// pool to a pool of heap pointers, and with a liveness check on pop
// instead of trusting the caller to free responsibly.
type Freelist struct {
	mu    sync.Mutex
	stack []*rendezvous.Data
}

// Put returns d to the pool. Callers do this once they themselves are
// done with d, whether or not a signal may still be pending against it;
// Get below is what actually determines whether it is safe to reuse.
func (f *Freelist) Put(d *rendezvous.Data) {
	f.mu.Lock()
	f.stack = append(f.stack, d)
	f.mu.Unlock()
}

// Get pops and returns the first idle rendezvous struct found, or nil if
// the pool is empty or every pooled entry is still claimed by a
// late-arriving signal. Entries that are still claimed are left in the
// pool rather than discarded: until a handler's own write finishes
// (ResultReady fires), the struct's memory must stay reachable, so Get
// only ever removes entries it knows are safe to hand back out.
func (f *Freelist) Get() *rendezvous.Data {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.stack) - 1; i >= 0; i-- {
		if f.stack[i].LoadQueuedToTID() == rendezvous.NotInUse {
			d := f.stack[i]
			f.stack = append(f.stack[:i], f.stack[i+1:]...)
			return d
		}
	}
	return nil
}

// Len reports how many entries are currently pooled, live or not. Used
// by tests and by metrics.
func (f *Freelist) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stack)
}
