// Command stackdump is the operational CLI for the threadstack
// subsystem: dump one of its own threads' stack, snapshot every thread,
// or install the collection signal and idle to confirm it installs.
//
// Usage:
//
//	stackdump dump <tid>
//	stackdump snapshot
//	stackdump listen --signal=N
//
// This replaces the teacher's hand-rolled os.Args[1] switch
// (cmd/racedetector/main.go) with the ecosystem-standard cobra command
// tree, keeping the same "one verb per subcommand, a version/help pair"
// shape.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
