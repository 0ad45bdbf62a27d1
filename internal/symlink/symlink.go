// SPDX-License-Identifier: MPL-2.0

// Package symlink reconciles the bin directory against the set of registered
// tool names, so every tool can be invoked under its own name.
//
// The manager only ever touches symlinks that point at the multicall binary.
// Foreign entries (regular files, directories, links to other targets) are
// left alone and reported as warnings when they shadow a tool name.
package symlink

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Warning is a per-name reconciliation problem. Warnings never fail the
// build; they are surfaced for the caller to print.
type Warning struct {
	Name string
	Err  error
}

// String renders the warning in "name: problem" form.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Name, w.Err)
}

// Result reports what Reconcile changed. A second run with unchanged inputs
// yields a zero Result.
type Result struct {
	Created  []string
	Removed  []string
	Warnings []Warning
}

// Changed reports whether any filesystem mutation happened.
func (r Result) Changed() bool {
	return len(r.Created) > 0 || len(r.Removed) > 0
}

// Reconcile brings binDir into agreement with names: it creates one symlink
// per missing tool name pointing at binaryPath, and removes symlinks that
// point at binaryPath but whose name is no longer registered.
func Reconcile(binDir, binaryPath string, names []string) (Result, error) {
	var res Result

	registered := make(map[string]bool, len(names))
	for _, n := range names {
		registered[n] = true
	}

	entries, err := os.ReadDir(binDir)
	if err != nil {
		return res, fmt.Errorf("read bin directory %s: %w", binDir, err)
	}

	present := make(map[string]bool)
	for _, entry := range entries {
		path := filepath.Join(binDir, entry.Name())

		info, err := os.Lstat(path)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(path)
		if err != nil || target != binaryPath {
			// Not one of ours.
			continue
		}

		if registered[entry.Name()] {
			present[entry.Name()] = true
			continue
		}

		// Stale link for a removed tool.
		if err := os.Remove(path); err != nil {
			res.Warnings = append(res.Warnings, Warning{Name: entry.Name(), Err: fmt.Errorf("remove stale link: %w", err)})
			continue
		}
		res.Removed = append(res.Removed, entry.Name())
	}

	ordered := make([]string, 0, len(names))
	ordered = append(ordered, names...)
	sort.Strings(ordered)

	for _, name := range ordered {
		if present[name] {
			continue
		}

		path := filepath.Join(binDir, name)
		if info, err := os.Lstat(path); err == nil {
			// The name is occupied by something we do not own.
			kind := "file"
			if info.IsDir() {
				kind = "directory"
			} else if info.Mode()&os.ModeSymlink != 0 {
				kind = "symlink to another target"
			}
			res.Warnings = append(res.Warnings, Warning{Name: name, Err: fmt.Errorf("name occupied by a foreign %s", kind)})
			continue
		}

		if err := os.Symlink(binaryPath, path); err != nil {
			res.Warnings = append(res.Warnings, Warning{Name: name, Err: fmt.Errorf("create link: %w", err)})
			continue
		}
		res.Created = append(res.Created, name)
	}

	sort.Strings(res.Removed)
	return res, nil
}

// Installed returns the sorted names of symlinks in binDir that point at
// binaryPath. Used by the list command and the interactive menu.
func Installed(binDir, binaryPath string) ([]string, error) {
	entries, err := os.ReadDir(binDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bin directory %s: %w", binDir, err)
	}

	var names []string
	for _, entry := range entries {
		path := filepath.Join(binDir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if target, err := os.Readlink(path); err == nil && target == binaryPath {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
