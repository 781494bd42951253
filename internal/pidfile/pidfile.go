// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pidfile implements the pid-file locking behavior named as an
// external collaborator in spec §1/§6: an optional pid file locked with
// an exclusive, non-blocking advisory lock, so a second instance using
// the same pid file fails with a clear message.
package pidfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/shellb0y/dnsflow/internal/errors"
)

// File holds an open, flock'd pid file. Close removes the lock and the
// file.
type File struct {
	path string
	f    *os.File
}

// Acquire opens path, takes an exclusive non-blocking advisory lock, and
// writes the current pid. If another process already holds the lock,
// Acquire returns a ConfigError-kind error (spec §7 pid-file contention).
func Acquire(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "open pid file")
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.KindConfig, fmt.Sprintf("pid file %s is held by another instance", path))
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.KindInternal, "truncate pid file")
	}
	if _, err := f.WriteAt([]byte(fmt.Sprintf("%d\n", os.Getpid())), 0); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.KindInternal, "write pid file")
	}

	return &File{path: path, f: f}, nil
}

// Close releases the lock and removes the pid file.
func (pf *File) Close() error {
	defer os.Remove(pf.path)
	return pf.f.Close()
}
