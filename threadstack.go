// Package threadstack is the public surface of the remote stack-trace
// collection subsystem: queue a real-time signal at a specific kernel
// thread, rendezvous with the signal handler running on that thread,
// and read back its call stack. See spec.md §6 for the full contract;
// SPEC_FULL.md documents this module's ambient and domain stack.
package threadstack

import (
	"context"
	"time"

	"github.com/kolkov/threadstack/internal/collector"
	"github.com/kolkov/threadstack/internal/sigcollect"
	"github.com/kolkov/threadstack/internal/stacktrace"
	"github.com/kolkov/threadstack/internal/threadreg"
	"github.com/kolkov/threadstack/snapshot"
)

// SetStackTraceSignal installs (or changes) the real-time signal used
// for remote collection. Returns InvalidArgument if the signal is
// already bound to a handler this module did not install itself.
func SetStackTraceSignal(signum int) error {
	return sigcollect.SetStackTraceSignal(signum)
}

// GetThreadStack collects tid's current call stack with a 1 second
// deadline, the convenience wrapper spec.md §6 describes.
func GetThreadStack(tid int64) (*stacktrace.Record, error) {
	var stack stacktrace.Record
	if err := collector.GetThreadStack(tid, &stack); err != nil {
		return nil, err
	}
	return &stack, nil
}

// DumpThreadStack returns tid's symbolized call stack, or
// "<error text>" if collection failed, matching spec.md §6 exactly.
func DumpThreadStack(tid int64) string {
	stack, err := GetThreadStack(tid)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return stack.Symbolized()
}

// ListThreads enumerates the kernel thread ids of the current process.
func ListThreads() ([]int64, error) {
	return threadreg.ListThreads()
}

// GetStackTrace returns the calling goroutine's own symbolized call
// stack, skipping this function's own frame.
func GetStackTrace() string {
	var stack stacktrace.Record
	stack.Collect(1)
	return stack.Symbolized()
}

// GetStackTraceHex returns the calling goroutine's own call stack as
// fixed-width hex addresses with a "0x" prefix.
func GetStackTraceHex() string {
	var stack stacktrace.Record
	stack.Collect(1)
	return stack.ToHex(stacktrace.HexZeroXPrefix)
}

// GetLogFormatStackTraceHex returns the calling goroutine's own call
// stack in the multi-line "@ <addr>" log format, without symbols.
func GetLogFormatStackTraceHex() string {
	var stack stacktrace.Record
	stack.Collect(1)
	return stack.LogFormatHex()
}

// SnapshotAllStacks enumerates every thread, collects each one's stack
// against a common 1 second deadline, and returns the populated,
// sorted Snapshot ready for VisitGroups.
func SnapshotAllStacks(ctx context.Context) (*snapshot.Snapshot, error) {
	s := snapshot.New()
	if err := s.SnapshotAll(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// defaultSnapshotDeadline documents the 1-second figure spec.md §4.G and
// §8 both specify. Nothing reads it: snapshot.SnapshotAll and
// collector.GetThreadStack each use their own time.Second.
const defaultSnapshotDeadline = time.Second
