package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandHasExpectedSubcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"dump", "snapshot", "listen"} {
		found := false
		for _, got := range names {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered, have %v", want, names)
		}
	}
}

func TestRootCommandFlagsBindSignalAndDeadline(t *testing.T) {
	root := newRootCommand()

	if f := root.PersistentFlags().Lookup("signal"); f == nil {
		t.Error("expected a persistent --signal flag")
	}
	if f := root.PersistentFlags().Lookup("deadline"); f == nil {
		t.Error("expected a persistent --deadline flag")
	}
}

func TestDumpCommandRejectsNonNumericTID(t *testing.T) {
	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"dump", "not-a-number"})

	err := root.Execute()
	if err == nil {
		t.Fatal("expected an error for a non-numeric tid")
	}
}

func TestDumpCommandRequiresExactlyOneArg(t *testing.T) {
	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"dump"})

	err := root.Execute()
	if err == nil {
		t.Fatal("expected an error when no tid is given")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("expected an arg-count error, got %v", err)
	}
}

func TestNewLoggerNeverReturnsNil(t *testing.T) {
	if newLogger() == nil {
		t.Fatal("newLogger must never return nil")
	}
}
