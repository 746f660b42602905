//go:build linux && amd64

package sigcollect

import "testing"

// TestPlatformInstallDetectsForeignHandlerBySigactionIdentityNotFlags installs
// a synthetic handler carrying SA_SIGINFO directly via rawSigaction, then
// checks that platformInstall still reports it as foreign and leaves it
// untouched. A flag-based check (SA_SIGINFO present implies "ours") would
// misclassify this as ours and overwrite it; only a handler-identity check
// against SIG_DFL/SIG_IGN gets this right.
func TestPlatformInstallDetectsForeignHandlerBySigactionIdentityNotFlags(t *testing.T) {
	const testSignum = 37 // SIGRTMIN+3: unused by this package's own default.
	const fakeForeignHandler = 0x1234

	foreignAct := sigactiont{Handler: fakeForeignHandler, Flags: saSiginfo}
	if err := rawSigaction(testSignum, &foreignAct, nil); err != nil {
		t.Fatalf("installing synthetic foreign handler: %v", err)
	}
	defer rawSigaction(testSignum, &sigactiont{Handler: sigDfl}, nil)

	foreign, err := platformInstall(testSignum)
	if err != nil {
		t.Fatalf("platformInstall() error = %v", err)
	}
	if !foreign {
		t.Fatal("platformInstall() foreign = false, want true: a pre-existing non-default/non-ignore handler must be reported foreign")
	}

	var after sigactiont
	if err := rawSigaction(testSignum, nil, &after); err != nil {
		t.Fatalf("reading back disposition: %v", err)
	}
	if after.Handler != fakeForeignHandler {
		t.Fatalf("after.Handler = %#x, want %#x: a foreign handler must be left untouched", after.Handler, fakeForeignHandler)
	}
}

// TestPlatformInstallTreatsSigIgnAsNotForeign confirms a pre-existing SIG_IGN
// disposition (handler value 1) is not mistaken for a foreign handler, and
// that platformInstall successfully installs over it.
func TestPlatformInstallTreatsSigIgnAsNotForeign(t *testing.T) {
	const testSignum = 38 // SIGRTMIN+4, distinct from the test above.

	if err := rawSigaction(testSignum, &sigactiont{Handler: sigIgn}, nil); err != nil {
		t.Fatalf("installing SIG_IGN: %v", err)
	}
	defer rawSigaction(testSignum, &sigactiont{Handler: sigDfl}, nil)

	foreign, err := platformInstall(testSignum)
	if err != nil {
		t.Fatalf("platformInstall() error = %v", err)
	}
	if foreign {
		t.Fatal("platformInstall() foreign = true, want false: SIG_IGN must not be classified as a foreign handler")
	}
}
