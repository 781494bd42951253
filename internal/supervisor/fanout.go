// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/shellb0y/dnsflow/internal/errors"
	"github.com/shellb0y/dnsflow/internal/logging"
)

// MaxWorkers is the multi-process fan-out ceiling named in spec §4.9.
const MaxWorkers = 64

// Fanout substitutes for fork_workers(n) (spec §4.9, C9). A real
// fork() of a running, goroutine-scheduled Go process is unsafe — only
// the calling OS thread survives the fork, so a fresh child only ever
// re-execs the binary rather than continuing the parent's address space
// (see the module-level MULTI-PROCESS MODEL NOTE). The running process
// keeps worker index 1, matching fork_workers's "parent retains index 1"
// rule; indices 2..n are spawned as re-exec'd children.
type Fanout struct {
	self   string
	logger *logging.Logger

	mu       sync.Mutex
	children map[int]*os.Process // worker index -> process
}

// New builds a Fanout that re-execs binaryPath for additional workers.
func New(binaryPath string, logger *logging.Logger) *Fanout {
	return &Fanout{self: binaryPath, logger: logger, children: make(map[int]*os.Process)}
}

// Spawn launches worker indices 2..n, each built by argsFor(workerIndex).
// It refuses to spawn beyond MaxWorkers.
func (f *Fanout) Spawn(n int, argsFor func(workerIndex int) []string) error {
	if n > MaxWorkers {
		return fmt.Errorf("supervisor: %d workers exceeds the %d-worker maximum", n, MaxWorkers)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := 2; i <= n; i++ {
		cmd := exec.Command(f.self, argsFor(i)...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Stdin = os.Stdin
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("supervisor: spawn worker %d: %w", i, err)
		}
		f.logger.Info("spawned worker", "index", i, "pid", cmd.Process.Pid)
		f.children[i] = cmd.Process
	}
	return nil
}

// SignalAll propagates sig to every spawned child (spec §4.8 clean exit
// ordering, step 1). Best-effort: a child that already exited is skipped.
func (f *Fanout) SignalAll(sig os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for idx, p := range f.children {
		if err := p.Signal(sig); err != nil {
			f.logger.Warn("signal worker failed", "index", idx, "pid", p.Pid, "err", err)
		}
	}
}

// Reap performs a single non-blocking reap of any exited child (spec
// §4.8: SIGCHLD causes the parent to reap, log the child PID, and then
// clean-exit). It returns ok=false if no child had exited yet.
func (f *Fanout) Reap() (pid int, ok bool) {
	var status syscall.WaitStatus
	reapedPid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
	if err != nil || reapedPid <= 0 {
		return 0, false
	}

	event := CrashEvent{Pid: reapedPid, ExitCode: status.ExitStatus()}
	if status.Signaled() {
		event.Signal = status.Signal()
	}

	f.mu.Lock()
	for idx, p := range f.children {
		if p.Pid == reapedPid {
			delete(f.children, idx)
			break
		}
	}
	f.mu.Unlock()

	// Every reaped child, crash or clean, is a ChildExit (spec §7): the
	// group shuts down together either way (spec §9 resolved open
	// question), so the Kind itself doesn't distinguish crash from clean
	// exit — IsCrash does that for the log level only.
	childExit := errors.New(errors.KindChildExit, fmt.Sprintf("worker %d exited", reapedPid))
	if event.IsCrash() {
		f.logger.Error(childExit.Error(), "pid", reapedPid, "exit_code", event.ExitCode, "signal", event.Signal)
	} else {
		f.logger.Info(childExit.Error(), "pid", reapedPid, "exit_code", event.ExitCode)
	}

	return reapedPid, true
}
