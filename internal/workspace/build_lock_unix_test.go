// SPDX-License-Identifier: MPL-2.0

//go:build unix

package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func lockTestWorkspace(t *testing.T) Workspace {
	t.Helper()
	ws := Workspace{Root: t.TempDir()}
	if err := os.MkdirAll(ws.BuildDir(), 0o755); err != nil {
		t.Fatalf("mkdir build dir: %v", err)
	}
	return ws
}

func TestAcquireBuildLock_CreatesLockFile(t *testing.T) {
	ws := lockTestWorkspace(t)

	lock, err := ws.AcquireBuildLock()
	if err != nil {
		t.Fatalf("AcquireBuildLock() error: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(ws.LockPath()); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
}

func TestAcquireBuildLock_SecondHolderFailsFast(t *testing.T) {
	ws := lockTestWorkspace(t)

	// Simulate a concurrent build by flocking from a separate fd. Flocks are
	// per open file description, so a second fd in the same process behaves
	// like another process.
	f, err := os.OpenFile(ws.LockPath(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		t.Fatalf("open lock file: %v", err)
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		t.Fatalf("flock: %v", err)
	}

	_, err = ws.AcquireBuildLock()
	if !errors.Is(err, ErrBuildInProgress) {
		t.Errorf("AcquireBuildLock() error = %v, want ErrBuildInProgress", err)
	}
}

func TestBuildLock_ReleaseAllowsReacquire(t *testing.T) {
	ws := lockTestWorkspace(t)

	lock, err := ws.AcquireBuildLock()
	if err != nil {
		t.Fatalf("first AcquireBuildLock() error: %v", err)
	}
	lock.Release()
	// Double release must be a no-op.
	lock.Release()

	second, err := ws.AcquireBuildLock()
	if err != nil {
		t.Fatalf("reacquire after release failed: %v", err)
	}
	second.Release()
}

func TestAcquireBuildLock_MissingBuildDir(t *testing.T) {
	ws := Workspace{Root: filepath.Join(t.TempDir(), "nope")}

	if _, err := ws.AcquireBuildLock(); err == nil {
		t.Error("AcquireBuildLock() succeeded with missing build dir, want error")
	}
}
