//go:build !(linux && amd64)

package sigcollect

import (
	"unsafe"

	"github.com/kolkov/threadstack/errs"
)

// This module's signal handler and frame-pointer walker are written in
// cgo against the Linux/amd64 ucontext_t and rt-signal ABI; every other
// platform reports NotSupported rather than pretending to collect
// anything, matching spec.md's explicit platform scope.
func platformInstall(signum int) (foreign bool, err error) {
	return false, errs.New(errs.NotSupported, "remote stack collection requires linux/amd64, running on a different platform")
}

func platformResetIfOurs(signum int) error {
	return errs.New(errs.NotSupported, "remote stack collection requires linux/amd64")
}

func platformSendSignal(pid, tid int, signum int, payload unsafe.Pointer) error {
	return errs.New(errs.NotSupported, "remote stack collection requires linux/amd64")
}
