// SPDX-License-Identifier: MPL-2.0

//go:build unix

package workspace

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrBuildInProgress is returned when another process already holds the build
// lock for the same workspace. Builds fail fast rather than queue; callers
// surface this to the user and exit.
var ErrBuildInProgress = errors.New("another build is already in progress for this workspace")

// BuildLock holds a non-blocking exclusive flock on the workspace lock file,
// serializing the discover/compile/link/reconcile pipeline across processes.
// flock(2) is available on every unix platform this builds for. The zero-byte
// lock file is harmless if orphaned: the kernel releases the flock
// automatically when the fd is closed, including on process crash.
type BuildLock struct {
	file *os.File
}

// AcquireBuildLock opens (or creates) the workspace lock file and tries to
// take an exclusive flock without blocking. A second concurrent build gets
// ErrBuildInProgress.
func (w Workspace) AcquireBuildLock() (*BuildLock, error) {
	f, err := os.OpenFile(w.LockPath(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", w.LockPath(), err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrBuildInProgress
		}
		return nil, fmt.Errorf("flock %s: %w", w.LockPath(), err)
	}

	return &BuildLock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. Safe to call
// multiple times; subsequent calls are no-ops.
func (l *BuildLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
