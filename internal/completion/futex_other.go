//go:build !linux

package completion

import "time"

// Non-Linux hosts have no futex syscall; spec.md scopes this module to
// Linux and only asks for a stub elsewhere (see errs.NotSupported on the
// collection entry points). The completion flag still builds and works
// on those hosts: futexWake is a no-op and futexWait falls back to a
// short, bounded sleep, so WaitUntil polls the word instead of blocking
// forever.
const fallbackPoll = 2 * time.Millisecond

func futexWake(*int32) {}

func futexWait(_ *int32, _ int32, timeout time.Duration) {
	if timeout >= 0 && timeout < fallbackPoll {
		time.Sleep(timeout)
		return
	}
	time.Sleep(fallbackPoll)
}
