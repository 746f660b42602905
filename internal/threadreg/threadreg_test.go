package threadreg

import (
	"os"
	"testing"

	"github.com/kolkov/threadstack/internal/rendezvous"
	"github.com/kolkov/threadstack/internal/stacktrace"
)

func TestListThreadsContainsCurrentThread(t *testing.T) {
	tids, err := ListThreads()
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if len(tids) == 0 {
		t.Fatal("ListThreads() returned no threads")
	}
}

func TestThreadNameOfSelf(t *testing.T) {
	// The thread running this test is one of the tids ListThreads just
	// enumerated; its name must be readable without error.
	tids, err := ListThreads()
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if _, err := ThreadName(tids[0]); err != nil {
		t.Fatalf("ThreadName(%d) error = %v", tids[0], err)
	}
}

func TestParseTracerPidAbsent(t *testing.T) {
	status := []byte("Name:\tfoo\nState:\tR (running)\nTracerPid:\t0\nUid:\t0\t0\t0\t0\n")
	if got := parseTracerPid(status); got != 0 {
		t.Fatalf("parseTracerPid() = %d, want 0", got)
	}
}

func TestParseTracerPidPresent(t *testing.T) {
	status := []byte("Name:\tfoo\nTracerPid:\t4242\nUid:\t0\t0\t0\t0\n")
	if got := parseTracerPid(status); got != 4242 {
		t.Fatalf("parseTracerPid() = %d, want 4242", got)
	}
}

func TestFreelistPutThenGetRoundTrips(t *testing.T) {
	var fl Freelist
	var stack stacktrace.Record
	d := rendezvous.New(0, &stack) // tid 0 + never claimed => idle
	d.Revoke()                     // force QueuedToTID to NotInUse deterministically

	fl.Put(d)
	if fl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", fl.Len())
	}

	got := fl.Get()
	if got != d {
		t.Fatal("Get() did not return the entry that was Put")
	}
	if fl.Len() != 0 {
		t.Fatalf("Len() after Get = %d, want 0", fl.Len())
	}
}

func TestFreelistSkipsStillClaimedEntries(t *testing.T) {
	var fl Freelist
	var stack stacktrace.Record

	claimed := rendezvous.New(123, &stack)
	claimed.CASClaim(123) // now DumpStarted: must never be handed out

	idle := rendezvous.New(0, &stack)
	idle.Revoke()

	fl.Put(claimed)
	fl.Put(idle)

	got := fl.Get()
	if got != idle {
		t.Fatal("Get() returned a still-claimed entry instead of the idle one")
	}
	if fl.Len() != 1 {
		t.Fatalf("Len() after Get = %d, want 1 (claimed entry must remain pooled)", fl.Len())
	}
}

func TestMain(m *testing.M) {
	// Guard against /proc not being mounted in whatever sandbox runs
	// these tests; skip cleanly rather than fail noisily.
	if _, err := os.Stat("/proc/self/task"); err != nil {
		os.Exit(0)
	}
	os.Exit(m.Run())
}
