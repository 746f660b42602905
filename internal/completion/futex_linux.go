//go:build linux

package completion

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// These mirror Linux's <linux/futex.h>; golang.org/x/sys/unix exposes the
// futex syscall number but not its verb/flag constants (see
// barney-ci-go-store's sigaction_linux.go for the same raw-syscall idiom
// applied to rt_sigaction).
const (
	futexWaitOp  = 0
	futexWakeOp  = 1
	futexPrivate = 128
)

// futexWake wakes up to INT_MAX waiters parked on word's address.
func futexWake(word *int32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(futexWakeOp|futexPrivate),
		uintptr(^uint32(0)>>1), // INT_MAX: wake all
		0, 0, 0,
	)
}

// futexWait sleeps on word's address as long as its value is still
// `expect`, for up to timeout (negative means block indefinitely). It
// always returns on a real wake, a spurious wake, or timeout; the caller
// re-examines the flag regardless of the return value.
func futexWait(word *int32, expect int32, timeout time.Duration) {
	var ts unix.Timespec
	var tsPtr *unix.Timespec
	if timeout >= 0 {
		ts = unix.NsecToTimespec(timeout.Nanoseconds())
		tsPtr = &ts
	}
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(futexWaitOp|futexPrivate),
		uintptr(expect),
		uintptr(unsafe.Pointer(tsPtr)),
		0, 0,
	)
}
