// SPDX-License-Identifier: MPL-2.0

// Package workspace resolves the on-disk layout of a toolbox workspace and
// provides the cross-process build lock.
//
// A workspace holds everything the build pipeline reads and writes:
//
//	<root>/tools/   one C source file per tool module
//	<root>/build/   object artifacts, generated dispatcher, multicall binary
//	<root>/bin/     one symlink per tool name pointing at the binary
//
// The root defaults to ~/.tools/toolbox and can be overridden via the
// TOOLBOX_ROOT environment variable or configuration.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// AppName is the canonical name of the multicall binary.
	AppName = "toolbox"

	// CacheFileName is the build cache file inside the build directory.
	CacheFileName = "cache.toml"

	// RootEnvVar overrides the workspace root when set.
	RootEnvVar = "TOOLBOX_ROOT"
)

// Workspace is the resolved directory layout for one toolbox root.
// It is a plain value; all methods are pure path computations except
// EnsureLayout.
type Workspace struct {
	Root string
}

// Resolve determines the workspace root. Precedence: explicit override
// (config/flag), TOOLBOX_ROOT, then ~/.tools/toolbox.
func Resolve(override string) (Workspace, error) {
	if override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return Workspace{}, fmt.Errorf("resolve workspace root %q: %w", override, err)
		}
		return Workspace{Root: abs}, nil
	}

	if env := os.Getenv(RootEnvVar); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return Workspace{}, fmt.Errorf("resolve %s=%q: %w", RootEnvVar, env, err)
		}
		return Workspace{Root: abs}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Workspace{}, fmt.Errorf("failed to get home directory: %w", err)
	}
	return Workspace{Root: filepath.Join(home, ".tools", AppName)}, nil
}

// ToolsDir is the directory holding one .c source file per tool module.
func (w Workspace) ToolsDir() string { return filepath.Join(w.Root, "tools") }

// BuildDir holds generated sources, objects and the multicall binary.
func (w Workspace) BuildDir() string { return filepath.Join(w.Root, "build") }

// ObjDir holds per-module object artifacts.
func (w Workspace) ObjDir() string { return filepath.Join(w.BuildDir(), "obj") }

// BinDir is the symlink directory added to the user's PATH.
func (w Workspace) BinDir() string { return filepath.Join(w.Root, "bin") }

// CachePath is the build cache file.
func (w Workspace) CachePath() string { return filepath.Join(w.BuildDir(), CacheFileName) }

// BinaryPath is the multicall binary produced by a successful link.
func (w Workspace) BinaryPath() string { return filepath.Join(w.BuildDir(), AppName) }

// LockPath is the advisory lock file serializing concurrent builds.
func (w Workspace) LockPath() string { return filepath.Join(w.BuildDir(), ".lock") }

// EnsureLayout creates the workspace directories if they do not exist.
// It is safe to call on every invocation.
func (w Workspace) EnsureLayout() error {
	for _, dir := range []string{w.Root, w.ToolsDir(), w.BuildDir(), w.ObjDir(), w.BinDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create workspace directory %s: %w", dir, err)
		}
	}
	return nil
}
