package main

import (
	"os"
	"time"

	"github.com/kolkov/threadstack/pprofexport"
	"github.com/kolkov/threadstack/snapshot"
)

func writePprof(s *snapshot.Snapshot, path string) error {
	p := pprofexport.Encode(s, time.Now())

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return p.Write(f)
}
