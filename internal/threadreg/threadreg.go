// Package threadreg enumerates a process's own kernel threads and their
// names, and maintains the free-list of rendezvous structs that
// internal/collector leaks into rather than frees outright (see
// collector.go's revoke). Both concerns read from /proc, grounded on
// spec.md §5's enumeration requirements.
package threadreg

import (
	"bufio"
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kolkov/threadstack/errs"
)

// ListThreads returns the kernel thread IDs (LWP tids) of every thread
// currently alive in this process, by reading /proc/self/task.
func ListThreads() ([]int64, error) {
	entries, err := os.ReadDir("/proc/self/task")
	if err != nil {
		return nil, errs.New(errs.IOError, "listing /proc/self/task: %v", err)
	}

	tids := make([]int64, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue // skip anything that isn't a bare numeric tid
		}
		tids = append(tids, tid)
	}
	return tids, nil
}

// ThreadName returns the kernel's short (<=15 byte) thread name for tid,
// read from /proc/self/task/<tid>/comm. Returns NotFound if the thread
// has exited since it was enumerated, which is a normal race rather than
// a bug: threads come and go between ListThreads and any per-thread
// follow-up.
func ThreadName(tid int64) (string, error) {
	path := "/proc/self/task/" + strconv.FormatInt(tid, 10) + "/comm"
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.New(errs.NotFound, "thread %d has exited", tid)
		}
		return "", errors.Wrapf(err, "reading %s", path)
	}

	name := string(data)
	if n := len(name); n > 0 && name[n-1] == '\n' {
		name = name[:n-1]
	}
	return name, nil
}

// IsDebuggerAttached reports whether a ptrace-based debugger (or
// strace/gdb) is attached to this process, per /proc/self/status'
// TracerPid field. spec.md §5 calls for skipping collection entirely
// under a debugger, since a tracer can itself intercept and swallow the
// collection signal before the target thread ever sees it.
func IsDebuggerAttached() (bool, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false, errs.New(errs.IOError, "reading /proc/self/status: %v", err)
	}
	return parseTracerPid(data) != 0, nil
}

func parseTracerPid(status []byte) int {
	scanner := bufio.NewScanner(bytes.NewReader(status))
	for scanner.Scan() {
		line := scanner.Text()
		rest, ok := strings.CutPrefix(line, "TracerPid:")
		if !ok {
			continue
		}
		pid, _ := strconv.Atoi(strings.TrimSpace(rest))
		return pid
	}
	return 0
}
