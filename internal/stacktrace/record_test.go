package stacktrace

import (
	"runtime"
	"strings"
	"testing"
)

func TestCollectSelf(t *testing.T) {
	var r Record
	foo(&r)

	if !r.HasCollected() {
		t.Fatal("HasCollected() = false after Collect")
	}
	if r.Count < 1 {
		t.Fatalf("Count = %d, want >= 1", r.Count)
	}
	if !strings.Contains(r.Symbolized(), "foo") {
		t.Errorf("Symbolized() = %q, want it to mention foo", r.Symbolized())
	}
}

//go:noinline
func foo(r *Record) {
	r.Collect(0)
}

func TestCollectSkipsExactlyK(t *testing.T) {
	// depth1 calling Collect(0) should land frame[0] on depth1 itself;
	// depth2 calling Collect(1) should skip depth1 and land on depth2;
	// depth3 calling Collect(2) should skip both and land on depth3.
	var r0, r1, r2 Record
	depth1(&r0, 0)
	depth2(&r1, 1)
	depth3(&r2, 2)

	wantName := func(r *Record, want string) {
		t.Helper()
		fn := runtime.FuncForPC(r.PC[0])
		if fn == nil || !strings.HasSuffix(fn.Name(), want) {
			got := "<nil>"
			if fn != nil {
				got = fn.Name()
			}
			t.Errorf("frame[0] = %s, want suffix %q", got, want)
		}
	}
	wantName(&r0, "depth1")
	wantName(&r1, "depth2")
	wantName(&r2, "depth3")
}

//go:noinline
func depth1(r *Record, skip int) { r.Collect(skip) }

//go:noinline
func depth2(r *Record, skip int) { depth1(r, skip) }

//go:noinline
func depth3(r *Record, skip int) { depth2(r, skip) }

func TestHashStableAcrossEqualCaptures(t *testing.T) {
	// Both captures go through the same call site (the loop body), so
	// every live frame, including this test's own return address, matches.
	var recs [2]Record
	for i := range recs {
		captureAt(&recs[i])
	}
	a, b := recs[0], recs[1]

	if !a.Equal(&b) {
		t.Fatalf("two captures at the same site differ: %v vs %v", a.frames(), b.frames())
	}
	if a.Hash() != b.Hash() {
		t.Errorf("Hash() differs for equal frames: %x vs %x", a.Hash(), b.Hash())
	}
}

//go:noinline
func captureAt(r *Record) {
	r.Collect(0)
}

func TestHashPureFunctionOfLiveFrames(t *testing.T) {
	var r Record
	r.PC[0] = 0x1000
	r.PC[1] = 0x2000
	r.PC[2] = 0xDEAD // beyond Count, must not affect the hash
	r.Count = 2

	var same Record
	same.PC[0] = 0x1000
	same.PC[1] = 0x2000
	same.Count = 2

	if r.Hash() != same.Hash() {
		t.Error("Hash() considered bytes beyond Count")
	}
}

func TestLessIsAntisymmetricAndTransitive(t *testing.T) {
	mk := func(pcs ...uintptr) Record {
		var r Record
		copy(r.PC[:], pcs)
		r.Count = int32(len(pcs))
		return r
	}
	a := mk(1, 2)
	b := mk(1, 3)
	c := mk(1, 3, 0)

	if !a.Less(&b) || b.Less(&a) {
		t.Error("Less not antisymmetric for a < b")
	}
	if !b.Less(&c) {
		t.Error("shorter equal-prefix record should sort first")
	}
	if !a.Less(&c) {
		t.Error("Less not transitive: a < b < c but not a < c")
	}
}

func TestUnsafeToUnwindYieldsSyntheticFrame(t *testing.T) {
	SetUnwindGuard(func() bool { return false })
	defer SetUnwindGuard(nil)

	var r Record
	r.Collect(0)

	if r.Count != 1 {
		t.Fatalf("Count = %d, want 1 for the synthetic frame", r.Count)
	}
	if !strings.Contains(r.Symbolized(), "noUnwindReasonFrame") {
		t.Errorf("Symbolized() = %q, want it to name the synthetic frame", r.Symbolized())
	}
}

func TestFailedRecordHasZeroCount(t *testing.T) {
	var r Record
	if r.HasCollected() {
		t.Error("zero-value Record reports HasCollected")
	}
	if r.Count != 0 {
		t.Errorf("Count = %d, want 0", r.Count)
	}
}

func TestToHexAndLogFormatHex(t *testing.T) {
	var r Record
	r.PC[0] = 0x1001
	r.PC[1] = 0x2001
	r.Count = 2

	hex := r.ToHex(HexZeroXPrefix)
	if !strings.HasPrefix(hex, "0x") {
		t.Errorf("ToHex(HexZeroXPrefix) = %q, want 0x prefix", hex)
	}
	logHex := r.LogFormatHex()
	if strings.Contains(logHex, " ") == false {
		t.Errorf("LogFormatHex() = %q, want indented lines", logHex)
	}
	if strings.Contains(r.Symbolized(), "(unknown)") == false {
		t.Skip("symbolizer resolved synthetic addresses unexpectedly well; not a failure")
	}
}
