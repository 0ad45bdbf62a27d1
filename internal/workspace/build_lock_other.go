// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package workspace

import "errors"

// ErrBuildInProgress mirrors the unix declaration so callers can compare
// against it unconditionally.
var ErrBuildInProgress = errors.New("another build is already in progress for this workspace")

// BuildLock is the stub for platforms without flock (Windows). The build
// proceeds unserialized there; concurrent builds race and the last successful
// link wins, which is still safe thanks to atomic renames.
type BuildLock struct{}

// AcquireBuildLock is a no-op on platforms without flock.
func (w Workspace) AcquireBuildLock() (*BuildLock, error) {
	return &BuildLock{}, nil
}

// Release is a no-op on platforms without flock.
func (l *BuildLock) Release() {}
