// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"os"
	"path/filepath"
)

// toolTemplate is the scaffold written by Create. The desc symbol is weak in
// the generated dispatcher, so deleting the line is safe.
const toolTemplate = `// toolbox:desc %[1]s tool.
#include <stdio.h>

const char *%[1]s_help =
    "Usage: %[1]s [args]\n"
    "Description: %[1]s tool.\n"
    "Options:\n"
    "  -h, --help  Show this help.\n";

int %[1]s_main(int argc, char **argv) {
    (void)argc; (void)argv;
    printf("Running %[1]s\n");
    return 0;
}
`

// ToolExistsError is returned by Create when the target module already exists.
type ToolExistsError struct {
	Name string
	Path string
}

// Error implements the error interface.
func (e *ToolExistsError) Error() string {
	return fmt.Sprintf("tool '%s' already exists at %s", e.Name, e.Path)
}

// ToolNotFoundError is returned by Remove when no module with that name exists.
type ToolNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool '%s' not found", e.Name)
}

// Create scaffolds a new tool module source file from the embedded template.
// It validates the name, refuses to overwrite an existing module (including
// one declared under the same name via a directive) and writes the file
// atomically. It does not trigger a build.
func Create(toolsDir, name string) (ToolModule, error) {
	if err := ValidateName(name); err != nil {
		return ToolModule{}, err
	}

	path := filepath.Join(toolsDir, name+".c")
	if _, err := os.Lstat(path); err == nil {
		return ToolModule{}, &ToolExistsError{Name: name, Path: path}
	}

	// A directive in another file may already claim this name.
	existing, err := Discover(toolsDir)
	if err != nil {
		return ToolModule{}, err
	}
	for _, m := range existing {
		if m.Name == name {
			return ToolModule{}, &ToolExistsError{Name: name, Path: m.Path}
		}
	}

	content := fmt.Sprintf(toolTemplate, name)
	if err := atomicWriteFile(path, []byte(content), 0o644); err != nil {
		return ToolModule{}, fmt.Errorf("write tool template: %w", err)
	}

	mod, err := loadModule(path)
	if err != nil {
		return ToolModule{}, err
	}
	return mod, nil
}

// Remove deletes the source file of the module declared under name. The
// declared name is the module's identity, so a toolbox:name directive is
// honored the same way Discover and Create honor it. The symlink for the
// removed tool stays in place until the next build reconciles the bin
// directory.
func Remove(toolsDir, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	modules, err := Discover(toolsDir)
	if err != nil {
		return err
	}
	for _, m := range modules {
		if m.Name != name {
			continue
		}
		if err := os.Remove(m.Path); err != nil {
			return fmt.Errorf("remove %s: %w", m.Path, err)
		}
		return nil
	}
	return &ToolNotFoundError{Name: name}
}

// atomicWriteFile writes data to a temporary file in the target directory
// and renames it into place, so readers never observe a partial file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return werr
		}
		return cerr
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
