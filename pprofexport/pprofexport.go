// Package pprofexport converts a snapshot into a google/pprof
// profile.Profile, per SPEC_FULL.md §4.G: one pprof sample per stack
// group, value = group size, so `pprof -http` can browse a thread-stack
// snapshot the same way it browses a CPU or heap profile.
package pprofexport

import (
	"fmt"
	"time"

	"github.com/google/pprof/profile"

	"github.com/kolkov/threadstack/snapshot"
)

// sampleType labels the single value every sample carries: a thread
// count, not a duration or byte size.
const sampleType = "threads"
const sampleUnit = "count"

// Encode builds a profile.Profile from s. s.SnapshotAll must have
// already run. Each stack group becomes one profile.Sample whose
// Location chain mirrors the group's representative stack, innermost
// frame first, and whose single Value is the group's thread count.
func Encode(s *snapshot.Snapshot, capturedAt time.Time) *profile.Profile {
	p := &profile.Profile{
		SampleType:    []*profile.ValueType{{Type: sampleType, Unit: sampleUnit}},
		TimeNanos:     capturedAt.UnixNano(),
		DurationNanos: 0,
	}

	locByAddr := map[uint64]*profile.Location{}
	fnByAddr := map[uint64]*profile.Function{}
	var nextID uint64 = 1

	locationFor := func(pc uintptr) *profile.Location {
		addr := uint64(pc)
		if loc, ok := locByAddr[addr]; ok {
			return loc
		}

		fn, ok := fnByAddr[addr]
		if !ok {
			nextID++
			fn = &profile.Function{
				ID:   nextID,
				Name: fmt.Sprintf("pc_0x%x", addr),
			}
			fnByAddr[addr] = fn
			p.Function = append(p.Function, fn)
		}

		nextID++
		loc := &profile.Location{
			ID:      nextID,
			Address: addr,
			Line:    []profile.Line{{Function: fn}},
		}
		locByAddr[addr] = loc
		p.Location = append(p.Location, loc)
		return loc
	}

	s.VisitGroups(func(group []snapshot.ThreadInfo) {
		if len(group) == 0 || group[0].Err != nil {
			return // failed entries carry no stack worth sampling
		}

		rep := group[0].Stack
		n := int(rep.Count)
		locations := make([]*profile.Location, 0, n)
		for i := 0; i < n; i++ {
			locations = append(locations, locationFor(rep.PC[i]))
		}

		p.Sample = append(p.Sample, &profile.Sample{
			Location: locations,
			Value:    []int64{int64(len(group))},
		})
	})

	return p
}
