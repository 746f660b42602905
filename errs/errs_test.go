package errs

import (
	"fmt"
	"testing"
)

func TestKindOfRoundTrips(t *testing.T) {
	for kind := InvalidArgument; kind <= IOError; kind++ {
		err := New(kind, "thread %d", 42)
		if got := KindOf(err); got != kind {
			t.Errorf("KindOf(New(%v)) = %v, want %v", kind, got, kind)
		}
		if !Is(err, kind) {
			t.Errorf("Is(New(%v), %v) = false, want true", kind, kind)
		}
	}
}

func TestKindOfForeignError(t *testing.T) {
	if got := KindOf(fmt.Errorf("boom")); got != None {
		t.Errorf("KindOf(foreign) = %v, want None", got)
	}
	if got := KindOf(nil); got != None {
		t.Errorf("KindOf(nil) = %v, want None", got)
	}
}

func TestWrappedKindSurvives(t *testing.T) {
	err := fmt.Errorf("during snapshot: %w", New(TimedOut, "tid %d", 7))
	if got := KindOf(err); got != TimedOut {
		t.Errorf("KindOf(wrapped) = %v, want TimedOut", got)
	}
}

func TestStringer(t *testing.T) {
	cases := map[Kind]string{
		None:            "None",
		InvalidArgument: "InvalidArgument",
		NotSupported:    "NotSupported",
		NotFound:        "NotFound",
		TimedOut:        "TimedOut",
		Incomplete:      "Incomplete",
		IOError:         "IOError",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
