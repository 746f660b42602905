package rendezvous

import (
	"testing"

	"github.com/kolkov/threadstack/internal/stacktrace"
)

func TestStateMachineHappyPath(t *testing.T) {
	var stack stacktrace.Record
	d := New(42, &stack)

	if d.LoadQueuedToTID() != 42 {
		t.Fatalf("QueuedToTID = %d, want 42", d.LoadQueuedToTID())
	}

	// (B): handler claims.
	if !d.CASClaim(42) {
		t.Fatal("CASClaim(42) failed on first attempt")
	}
	if d.LoadQueuedToTID() != DumpStarted {
		t.Fatalf("QueuedToTID after claim = %d, want DumpStarted", d.LoadQueuedToTID())
	}

	// A second claim attempt (duplicate/racing signal) must never
	// succeed.
	if d.CASClaim(42) {
		t.Fatal("CASClaim succeeded twice for the same rendezvous")
	}

	// (C): handler completes.
	d.ResultReady.Signal()

	// (F): requester revokes after completion.
	prev := d.Revoke()
	if prev != DumpStarted {
		t.Fatalf("Revoke() previous = %d, want DumpStarted", prev)
	}
	if !d.ResultReady.Complete() {
		t.Fatal("ResultReady lost after Revoke")
	}
}

func TestStateMachineLeakPath(t *testing.T) {
	var stack stacktrace.Record
	d := New(7, &stack)

	// (D): requester revokes before any handler claims it.
	prev := d.Revoke()
	if prev != 7 {
		t.Fatalf("Revoke() previous = %d, want 7 (the tid)", prev)
	}

	// A signal that arrives after this point must see NotInUse and must
	// not be able to claim.
	if d.CASClaim(7) {
		t.Fatal("CASClaim succeeded against a revoked rendezvous")
	}
	if d.ResultReady.Complete() {
		t.Fatal("ResultReady set despite the handler never running")
	}
}

func TestCASClaimRejectsWrongTID(t *testing.T) {
	var stack stacktrace.Record
	d := New(5, &stack)

	if d.CASClaim(6) {
		t.Fatal("CASClaim succeeded with the wrong tid")
	}
	if d.LoadQueuedToTID() != 5 {
		t.Fatalf("QueuedToTID = %d, want unchanged 5", d.LoadQueuedToTID())
	}
}

func TestSpinLockMutualExclusion(t *testing.T) {
	var lock SpinLock
	counter := 0
	const goroutines = 50
	const iterations = 200

	done := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}

	if counter != goroutines*iterations {
		t.Errorf("counter = %d, want %d", counter, goroutines*iterations)
	}
}
