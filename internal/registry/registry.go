// SPDX-License-Identifier: MPL-2.0

// Package registry discovers tool modules in the workspace tools directory
// and owns their identity for the duration of a build.
//
// A tool module is one C source file implementing exactly one named behavior.
// Its name defaults to the file stem and can be overridden with a
// "// toolbox:name <name>" directive in the file header; an optional
// "// toolbox:desc <text>" directive supplies the one-line description shown
// by the multicall binary's list mode.
package registry

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// toolNameRe matches valid tool names. The charset is deliberately narrow:
// a tool name doubles as a symlink filename, a dispatch key and a CLI
// invocation token, so it must be free of path separators and leading dashes.
var toolNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// directive markers recognized in the first lines of a module source file.
const (
	nameDirective = "toolbox:name"
	descDirective = "toolbox:desc"

	// directiveScanLimit bounds how many leading lines are scanned for
	// directives. Directives below real code are ignored.
	directiveScanLimit = 32
)

// ToolModule is one discovered tool. The registry owns these values during a
// build; they are never shared mutably across pipeline stages.
type ToolModule struct {
	// Name is the declared tool name, unique across the registry.
	Name string
	// Path is the absolute path to the module's source file.
	Path string
	// Description is the optional one-line description from the desc directive.
	Description string
	// Fingerprint is the hex sha256 of the source bytes.
	Fingerprint string
}

// EntryPoint is the C symbol the dispatcher transfers control to.
func (m ToolModule) EntryPoint() string { return m.Name + "_main" }

// DiscoveryError indicates the tools directory could not be enumerated or a
// module source could not be read.
type DiscoveryError struct {
	Dir string
	Err error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("failed to discover tool modules in %s: %v", e.Dir, e.Err)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error { return e.Err }

// DuplicateToolError is returned when two module sources declare the same
// tool name. The dispatch table cannot hold two entries under one key, so
// this is a hard error rather than a precedence rule.
type DuplicateToolError struct {
	Name         string
	FirstSource  string
	SecondSource string
}

// Error implements the error interface.
func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf(
		"tool name collision: '%s' declared in both:\n"+
			"  - %s\n"+
			"  - %s\n\n"+
			"Rename one of the files or change its toolbox:name directive.",
		e.Name, e.FirstSource, e.SecondSource)
}

// InvalidNameError is returned when a tool name fails the naming convention.
type InvalidNameError struct {
	Name string
}

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid tool name %q: must match %s (lowercase, start with a letter)", e.Name, toolNameRe)
}

// ValidateName checks a tool name against the naming convention.
func ValidateName(name string) error {
	if !toolNameRe.MatchString(name) {
		return &InvalidNameError{Name: name}
	}
	return nil
}

// Discover enumerates all tool modules under toolsDir, sorted by name.
// Two modules declaring the same name yield a *DuplicateToolError regardless
// of enumeration order; an unreadable directory yields a *DiscoveryError.
func Discover(toolsDir string) ([]ToolModule, error) {
	entries, err := os.ReadDir(toolsDir)
	if err != nil {
		return nil, &DiscoveryError{Dir: toolsDir, Err: err}
	}

	var modules []ToolModule
	byName := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".c") {
			continue
		}

		path := filepath.Join(toolsDir, entry.Name())
		mod, err := loadModule(path)
		if err != nil {
			return nil, &DiscoveryError{Dir: toolsDir, Err: err}
		}
		if err := ValidateName(mod.Name); err != nil {
			return nil, &DiscoveryError{Dir: toolsDir, Err: err}
		}

		if first, exists := byName[mod.Name]; exists {
			// Sort the colliding paths so the error reads the same
			// regardless of directory enumeration order.
			a, b := first, path
			if b < a {
				a, b = b, a
			}
			return nil, &DuplicateToolError{Name: mod.Name, FirstSource: a, SecondSource: b}
		}
		byName[mod.Name] = path

		modules = append(modules, mod)
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules, nil
}

// loadModule reads one source file, extracts directives and computes the
// content fingerprint.
func loadModule(path string) (ToolModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ToolModule{}, fmt.Errorf("read module source %s: %w", path, err)
	}

	sum := sha256.Sum256(data)

	mod := ToolModule{
		Name:        strings.TrimSuffix(filepath.Base(path), ".c"),
		Path:        path,
		Fingerprint: hex.EncodeToString(sum[:]),
	}

	name, desc := scanDirectives(string(data))
	if name != "" {
		mod.Name = name
	}
	mod.Description = desc

	return mod, nil
}

// scanDirectives extracts toolbox:name and toolbox:desc from the leading
// comment lines of a source file.
func scanDirectives(src string) (name, desc string) {
	scanner := bufio.NewScanner(strings.NewReader(src))
	for i := 0; scanner.Scan() && i < directiveScanLimit; i++ {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, nameDirective):
			name = strings.TrimSpace(strings.TrimPrefix(line, nameDirective))
		case strings.HasPrefix(line, descDirective):
			desc = strings.TrimSpace(strings.TrimPrefix(line, descDirective))
		}
	}
	return name, desc
}

// Names returns the sorted tool names of a module set.
func Names(modules []ToolModule) []string {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Name
	}
	sort.Strings(names)
	return names
}
