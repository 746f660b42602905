// Package stacktrace implements the fixed-capacity stack trace record
// described in spec.md §3 and §4.B: an ordered sequence of return
// addresses plus a live frame count, along with hashing, ordering, and
// textual rendering of the live prefix.
//
// A Record is trivially copyable and holds no heap pointers of its own
// (PC is a plain array, not a slice), so its backing memory can safely be
// written from the cgo signal handler in internal/sigcollect: the handler
// never allocates, and Record's fields never need to.
//
// Capture has two independent code paths, grounded differently:
//
//   - Collect, below, runs in an ordinary goroutine (never inside the
//     signal handler) and uses runtime.Callers, which can allocate and is
//     not async-signal-safe.
//   - The handler path (internal/sigcollect) is hand-written C that walks
//     the frame-pointer chain from the interrupted thread's saved
//     ucontext and writes straight into a Record's PC array by pointer,
//     without ever calling back into this package or the Go runtime.
//
// Both paths populate the same layout, so every other operation here
// (Hash, Less, Equal, the three renderings) is agnostic to which path
// filled the record.
package stacktrace

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"runtime"
	"strings"
)

// MaxFrames is the record's compile-time capacity. spec.md §3 calls for
// "16-64, typically"; 32 matches the teacher's stackdepot budget (8) times
// four, which is comfortable for the deeper call chains a gRPC/HTTP
// service tends to produce without inflating the cgo-shared struct.
const MaxFrames = 32

// noUnwindReasonFrame is the synthetic, well-known frame substituted for
// a real capture when the unwind guard (see SetUnwindGuard) reports that unwinding would be
// unsafe (see spec.md §4.B). Its name is chosen so that symbolizing it
// reads as a self-explanatory placeholder rather than garbage.
//
//go:noinline
func noUnwindReasonFrame() {}

// unwindGuard reports whether it is currently safe to walk the calling
// thread's frame-pointer chain. It is unsafe, for example, while
// execution is inside the dynamic loader holding a lock the unwinder
// would also need. The out-of-process collaborator that flips this
// during dlopen/dlclose is outside this module's scope (spec.md §1); by
// default it always reports safe.
var unwindGuard = func() bool { return true }

// SetUnwindGuard installs the process-wide safety check consulted before
// every Collect. Exposed so the dynamic-loader integration (or tests)
// can simulate an unsafe window.
func SetUnwindGuard(guard func() bool) {
	if guard == nil {
		guard = func() bool { return true }
	}
	unwindGuard = guard
}

// Record is the fixed-capacity, trivially-copyable stack trace type
// shared between ordinary Go callers and the cgo signal handler.
//
// Invariant: only PC[:Count] is meaningful; bytes beyond Count are
// leftover from a previous capture (or zero) and must never be read by
// Hash, Less, Equal, or the formatters below.
type Record struct {
	PC    [MaxFrames]uintptr
	Count int32
}

// HasCollected reports whether Collect (or the handler path) has ever
// populated this record.
func (r *Record) HasCollected() bool { return r.Count > 0 }

// Collect walks the current goroutine's call chain from the innermost
// frame outward, discarding the skip+1 innermost frames (the +1 removes this
// Collect frame itself), and stops at the first of: no more frames, an
// unwinder error, or MaxFrames reached.
//
// Collect must only be called from an ordinary goroutine context. It is
// not async-signal-safe (runtime.Callers may allocate) and must never be
// invoked from inside the signal handler installed by internal/sigcollect;
// that path fills a Record directly from C.
func (r *Record) Collect(skip int) {
	if !unwindGuard() {
		f := reflect.ValueOf(noUnwindReasonFrame).Pointer() + 1
		r.PC[0] = f
		r.Count = 1
		return
	}

	var pcs [MaxFrames]uintptr
	// runtime.Callers' own skip counts itself as frame 0, so we add 1 to
	// remove Collect in addition to the caller-requested skip.
	n := runtime.Callers(skip+2, pcs[:])
	r.Count = int32(n)
	r.PC = pcs
}

// frames returns the live, meaningful prefix of PC.
func (r *Record) frames() []uintptr {
	n := int(r.Count)
	if n < 0 {
		n = 0
	}
	if n > MaxFrames {
		n = MaxFrames
	}
	return r.PC[:n]
}

// Hash returns a stable 64-bit hash over exactly the live frames. Two
// records with equal live frames always hash equal; Hash never inspects
// bytes beyond Count.
func (r *Record) Hash() uint64 {
	h := fnv.New64a()
	for _, pc := range r.frames() {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(pc >> (8 * i))
		}
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}

// Equal reports whether r and o have identical live frames.
func (r *Record) Equal(o *Record) bool {
	if r.Count != o.Count {
		return false
	}
	a, b := r.frames(), o.frames()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Less implements the total order over records: lexicographic comparison
// of the live frame prefix, innermost frame first.
func (r *Record) Less(o *Record) bool {
	a, b := r.frames(), o.frames()
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// callerAddr applies the "-1" adjustment spec.md §4.B requires before
// rendering or symbolizing a frame: a return address points just past
// the call instruction, so subtracting 1 points back into it, which is
// what external symbolizers (and Go's own runtime.FuncForPC) expect when
// the call is the last instruction before a noreturn callee.
func callerAddr(pc uintptr, fix bool) uintptr {
	if pc != 0 && fix {
		return pc - 1
	}
	return pc
}

// HexFlags controls ToHex's rendering.
type HexFlags int

const (
	// HexZeroXPrefix prepends "0x" to each rendered address.
	HexZeroXPrefix HexFlags = 1 << iota
	// HexNoFixCallerAddresses disables the "-1" adjustment of callerAddr.
	HexNoFixCallerAddresses
)

// ToHex renders the live frames as fixed-width hex, space-separated,
// innermost frame first.
func (r *Record) ToHex(flags HexFlags) string {
	var b strings.Builder
	for i, pc := range r.frames() {
		if i != 0 {
			b.WriteByte(' ')
		}
		addr := callerAddr(pc, flags&HexNoFixCallerAddresses == 0)
		if flags&HexZeroXPrefix != 0 {
			b.WriteString("0x")
		}
		fmt.Fprintf(&b, "%016x", addr)
	}
	return b.String()
}

// LogFormatHex renders the same one-line-per-frame layout as Symbolized
// but without the symbol column — spec.md's "log-format hex".
func (r *Record) LogFormatHex() string {
	var b strings.Builder
	for _, pc := range r.frames() {
		addr := callerAddr(pc, true)
		fmt.Fprintf(&b, "    @ %#016x\n", addr)
	}
	return b.String()
}

// Symbolizer resolves a return address to a human-readable description.
// The default uses runtime.FuncForPC plus the frame's file:line, which
// covers every pure-Go frame; a caller linking in a richer symbolizer
// (DWARF-aware, handles cgo frames) can override it with SetSymbolizer.
type Symbolizer func(pc uintptr) (symbol string, ok bool)

var symbolize Symbolizer = defaultSymbolizer

// SetSymbolizer overrides the symbol resolver used by Symbolized. Passing
// nil restores the runtime.FuncForPC-based default.
func SetSymbolizer(s Symbolizer) {
	if s == nil {
		s = defaultSymbolizer
	}
	symbolize = s
}

func defaultSymbolizer(pc uintptr) (string, bool) {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "", false
	}
	file, line := fn.FileLine(pc)
	return fmt.Sprintf("%s\n        %s:%d", fn.Name(), file, line), true
}

// Symbolized renders one "    @ <addr>  <symbol>" line per live frame,
// using "(unknown)" when symbolization fails or the frame address is
// zero.
func (r *Record) Symbolized() string {
	var b strings.Builder
	for _, pc := range r.frames() {
		addr := callerAddr(pc, true)
		symbol := "(unknown)"
		if pc != 0 {
			if s, ok := symbolize(addr); ok {
				symbol = s
			}
		}
		fmt.Fprintf(&b, "    @ %#016x  %s\n", addr, symbol)
	}
	return b.String()
}
