// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package parentwatch implements the ParentWatch collaborator from
// spec §9: "a kernel-provided death-signal where available and a 1-s
// polling watchdog elsewhere", exposed as a single OnOrphan(callback)
// method.
package parentwatch

// Watcher invokes a callback when the process becomes a child of init
// (i.e. its original parent has exited).
type Watcher interface {
	// OnOrphan registers cb to run once the parent process disappears.
	// Implementations that use a kernel death-signal still invoke cb
	// from a signal handler goroutine rather than synchronously.
	OnOrphan(cb func())
	// Stop releases any resources (polling ticker, signal channel).
	Stop()
}
