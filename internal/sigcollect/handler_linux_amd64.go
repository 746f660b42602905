//go:build linux && amd64

package sigcollect

/*
#define _GNU_SOURCE
#include <signal.h>
#include <stdint.h>
#include <ucontext.h>
#include <errno.h>
#include <sys/syscall.h>
#include <unistd.h>
#include <linux/futex.h>

// go_rendezvous mirrors internal/rendezvous.Data's field layout exactly:
// a pointer, an int64 tag, and a 4-byte completion word (completion.Flag
// wraps a single int32). The Go language spec guarantees struct fields
// keep their declaration order, so these offsets stay stable as long as
// Data's three fields are never reordered or retyped.
typedef struct {
	void*   stack;          // offset 0
	int64_t queued_to_tid;  // offset 8
	int32_t result_ready;   // offset 16
} go_rendezvous;

// go_stack_record mirrors internal/stacktrace.Record: MaxFrames (32)
// uintptr-sized PCs followed by an int32 count.
#define STACKCOLLECT_MAX_FRAMES 32
typedef struct {
	uintptr_t pc[STACKCOLLECT_MAX_FRAMES];
	int32_t   count;
} go_stack_record;

static const int64_t kDumpStarted = -1;

// futex_wake_one uses the raw syscall rather than glibc's futex(3)
// wrapper (glibc exposes none in most distributions) and is documented
// async-signal-safe by futex(2).
static void futex_wake_one(int32_t* word) {
	syscall(SYS_futex, word, FUTEX_WAKE | FUTEX_PRIVATE_FLAG, 1, NULL, NULL, 0);
}

// walk_frame_pointers walks the rbp chain starting at the interrupted
// thread's saved frame pointer and instruction pointer, per spec.md
// §4.D: async-signal-safe, no libunwind, stops at a null or
// non-increasing rbp or at max_frames. Go keeps frame-pointer-chain
// prologues on amd64 by default, so the PCs collected here resolve
// correctly through runtime.FuncForPC once read back on the Go side.
static int32_t walk_frame_pointers(uintptr_t rbp_start, uintptr_t rip_start, uintptr_t* out, int32_t max_frames) {
	int32_t n = 0;
	if (max_frames <= 0) {
		return 0;
	}
	out[n++] = rip_start;

	uintptr_t rbp = rbp_start;
	while (n < max_frames && rbp != 0) {
		if (rbp % sizeof(uintptr_t) != 0) {
			break;
		}
		uintptr_t* frame = (uintptr_t*)rbp;
		uintptr_t saved_rbp = frame[0];
		uintptr_t saved_rip = frame[1];
		if (saved_rip == 0) {
			break;
		}
		out[n++] = saved_rip;
		if (saved_rbp <= rbp) {
			// The chain must grow upward; otherwise it is corrupt, or
			// we have reached the bottom of the stack.
			break;
		}
		rbp = saved_rbp;
	}
	return n;
}

// HandleStackTraceSignal is the real sa_sigaction target. It never calls
// into the Go runtime: this is the one place in the whole module where
// that rule is load-bearing, since a signal can interrupt the
// interrupted thread at literally any instruction, including ones the Go
// scheduler or allocator is mid-way through.
void HandleStackTraceSignal(int sig, siginfo_t* info, void* ucontext_raw) {
	int saved_errno = errno;

	go_rendezvous* rv = (go_rendezvous*)info->si_value.sival_ptr;
	if (rv == NULL) {
		errno = saved_errno;
		return;
	}

	pid_t tid = (pid_t)syscall(SYS_gettid);
	if (!__sync_bool_compare_and_swap(&rv->queued_to_tid, (int64_t)tid, kDumpStarted)) {
		errno = saved_errno;
		return;
	}

	ucontext_t* uc = (ucontext_t*)ucontext_raw;
	uintptr_t rbp = (uintptr_t)uc->uc_mcontext.gregs[REG_RBP];
	uintptr_t rip = (uintptr_t)uc->uc_mcontext.gregs[REG_RIP];

	go_stack_record* rec = (go_stack_record*)rv->stack;
	if (rec != NULL) {
		int32_t n = walk_frame_pointers(rbp, rip, rec->pc, STACKCOLLECT_MAX_FRAMES);
		__sync_synchronize();
		rec->count = n;
	}

	__sync_lock_test_and_set(&rv->result_ready, 1);
	futex_wake_one(&rv->result_ready);

	errno = saved_errno;
}

// get_handler_ptr hands back HandleStackTraceSignal's address as a
// plain pointer: sigaction's sa_sigaction field and cgo's view of a C
// function symbol don't align cleanly enough to assign the function
// directly from Go, so the conversion happens on the C side instead.
static void* get_handler_ptr(void) {
	return (void*)HandleStackTraceSignal;
}
*/
import "C"

import (
	"os"
	"runtime"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigactiont is the layout rt_sigaction(2) expects, which is NOT the
// same as libc's struct sigaction; it is the layout
// barney-ci-go-store__sigaction_linux.go hand-rolls for the same
// reason: x/sys/unix does not expose a Sigaction wrapper capable of
// installing a C-callback SA_SIGINFO handler, so the raw kernel ABI
// struct and a direct rt_sigaction syscall are used instead.
type sigactiont struct {
	Handler  uintptr
	Flags    uint64
	Restorer uintptr
	Mask     uint64
}

const saRestart = 0x10000000
const saSiginfo = 0x00000004

// sigDfl and sigIgn are the two handler values the kernel treats
// specially: SIG_DFL (0) and SIG_IGN (1), neither of which is "somebody
// else's handler" for the purposes of the foreign-handler check below.
const sigDfl = 0
const sigIgn = 1

func isForeignHandler(h uintptr) bool {
	return h != sigDfl && h != sigIgn
}

func rawSigaction(signum int, act, old *sigactiont) error {
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION,
		uintptr(signum),
		uintptr(unsafe.Pointer(act)),
		uintptr(unsafe.Pointer(old)),
		unsafe.Sizeof(act.Mask),
		0, 0)
	runtime.KeepAlive(act)
	runtime.KeepAlive(old)
	if errno != 0 {
		return &os.SyscallError{Syscall: "rt_sigaction", Err: errno}
	}
	return nil
}

// platformInstall registers HandleStackTraceSignal for signum via a raw
// rt_sigaction(2) call carrying its address (obtained from the cgo
// preamble, the one place a genuine C function pointer can come from).
//
// Foreign-handler detection matches spec.md §4.E and the Kudu original
// (debug-util.cc): a pre-existing handler that is neither SIG_DFL nor
// SIG_IGN is "foreign" and must never be overwritten, regardless of
// whether it happens to be installed with SA_SIGINFO — SA_SIGINFO says
// nothing about whose handler it is.
func platformInstall(signum int) (foreign bool, err error) {
	var preOld sigactiont
	if err := rawSigaction(signum, nil, &preOld); err != nil {
		return false, err
	}
	if isForeignHandler(preOld.Handler) {
		return true, nil
	}

	act := sigactiont{
		Handler: uintptr(C.get_handler_ptr()),
		Flags:   saSiginfo | saRestart,
	}
	var postOld sigactiont
	if err := rawSigaction(signum, &act, &postOld); err != nil {
		return false, err
	}

	// The pre-install read saw default/ignore, but the disposition the
	// kernel atomically swapped out during our own install is neither:
	// some other thread installed a competing handler in the window
	// between our check and our install. This is the same race Kudu
	// treats as an unrecoverable programming error (LOG(FATAL) in
	// debug-util.cc) rather than something a caller can sanely retry
	// around, so it is not returned as an ordinary error here either.
	if isForeignHandler(postOld.Handler) {
		panic("sigcollect: raced against another thread installing a signal handler for signal " + strconv.Itoa(signum))
	}
	return false, nil
}

func platformResetIfOurs(signum int) error {
	var cur sigactiont
	if err := rawSigaction(signum, nil, &cur); err != nil {
		return err
	}
	if cur.Handler != uintptr(C.get_handler_ptr()) {
		return nil
	}
	return rawSigaction(signum, &sigactiont{Handler: sigDfl}, nil)
}

// platformSendSignal queues signum at tid carrying payload as the
// signal's sival_ptr, via rt_tgsigqueueinfo(2) rather than tgkill(2):
// this delivery requires a payload, which plain tgkill cannot express,
// and addresses the exact (pid, tid) pair so a recycled tid belonging
// to a different thread can never be hit.
func platformSendSignal(pid, tid int, signum int, payload unsafe.Pointer) error {
	var info unix.Siginfo
	info.Signo = int32(signum)
	info.Code = -1 // SI_QUEUE
	setSivalPtr(&info, payload)

	_, _, errno := unix.RawSyscall6(unix.SYS_RT_TGSIGQUEUEINFO,
		uintptr(pid), uintptr(tid), uintptr(signum),
		uintptr(unsafe.Pointer(&info)), 0, 0)
	runtime.KeepAlive(&info)
	if errno != 0 {
		return &os.SyscallError{Syscall: "rt_tgsigqueueinfo", Err: errno}
	}
	return nil
}

// setSivalPtr writes payload into the sival_ptr slot of the kernel
// siginfo_t's rt-signal union member. x/sys/unix.Siginfo models that
// union as an opaque byte array starting right after the (signo, errno,
// code, pad) header; for the _rt variant the layout is
// { pid_t si_pid; uid_t si_uid; sigval_t si_sigval }, so si_sigval
// starts 8 bytes into the opaque region (two 4-byte fields), giving an
// absolute offset of 16 (header) + 8 = 24 bytes from the struct start.
func setSivalPtr(info *unix.Siginfo, payload unsafe.Pointer) {
	const sivalPtrOffset = 24
	base := unsafe.Pointer(info)
	slot := (*unsafe.Pointer)(unsafe.Pointer(uintptr(base) + sivalPtrOffset))
	*slot = payload
}
