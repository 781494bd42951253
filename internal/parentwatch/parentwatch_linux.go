// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package parentwatch

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// linuxWatcher uses PR_SET_PDEATHSIG so the kernel delivers SIGTERM to
// this process when its parent exits (spec §4.8/§9), rather than polling.
type linuxWatcher struct {
	sig  chan os.Signal
	done chan struct{}
}

// New returns the kernel-death-signal watcher on Linux.
func New() Watcher {
	return &linuxWatcher{}
}

func (w *linuxWatcher) OnOrphan(cb func()) {
	// Best effort: PR_SET_PDEATHSIG is evaluated against the calling
	// thread's parent at registration time, so a parent that died in the
	// race before this call runs would leave the signal unset.
	_ = unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(syscall.SIGTERM), 0, 0, 0)

	if os.Getppid() == 1 {
		go cb()
		return
	}

	w.sig = make(chan os.Signal, 1)
	w.done = make(chan struct{})
	signal.Notify(w.sig, syscall.SIGTERM)

	go func() {
		select {
		case <-w.sig:
			cb()
		case <-w.done:
		}
	}()
}

func (w *linuxWatcher) Stop() {
	if w.sig != nil {
		signal.Stop(w.sig)
	}
	if w.done != nil {
		close(w.done)
	}
}
