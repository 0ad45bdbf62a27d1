// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreate_WritesScaffold(t *testing.T) {
	dir := t.TempDir()

	mod, err := Create(dir, "ping")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if mod.Name != "ping" {
		t.Errorf("Name = %q, want %q", mod.Name, "ping")
	}

	data, err := os.ReadFile(filepath.Join(dir, "ping.c"))
	if err != nil {
		t.Fatalf("scaffold not written: %v", err)
	}
	src := string(data)
	for _, want := range []string{"int ping_main(int argc, char **argv)", "ping_help", "toolbox:desc"} {
		if !strings.Contains(src, want) {
			t.Errorf("scaffold missing %q", want)
		}
	}
}

func TestCreate_ScaffoldIsDiscoverable(t *testing.T) {
	dir := t.TempDir()
	if _, err := Create(dir, "echo"); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	modules, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(modules) != 1 || modules[0].Name != "echo" {
		t.Fatalf("Discover() = %+v, want just echo", modules)
	}
	if modules[0].Description == "" {
		t.Error("scaffold description directive not picked up")
	}
}

func TestCreate_RejectsInvalidName(t *testing.T) {
	_, err := Create(t.TempDir(), "Nope-Not")

	var invErr *InvalidNameError
	if !errors.As(err, &invErr) {
		t.Errorf("Create() error = %v, want *InvalidNameError", err)
	}
}

func TestCreate_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	if _, err := Create(dir, "ping"); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}

	_, err := Create(dir, "ping")

	var existsErr *ToolExistsError
	if !errors.As(err, &existsErr) {
		t.Fatalf("second Create() error = %v, want *ToolExistsError", err)
	}
	if existsErr.Name != "ping" {
		t.Errorf("collision name = %q, want %q", existsErr.Name, "ping")
	}
}

func TestCreate_RefusesDirectiveClaimedName(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "other.c", "// toolbox:name ping\nint ping_main(int argc, char **argv) { return 0; }\n")

	_, err := Create(dir, "ping")

	var existsErr *ToolExistsError
	if !errors.As(err, &existsErr) {
		t.Errorf("Create() error = %v, want *ToolExistsError", err)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	if _, err := Create(dir, "ping"); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := Remove(dir, "ping"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dir, "ping.c")); !os.IsNotExist(err) {
		t.Error("source file still present after Remove()")
	}
}

func TestRemove_DirectiveDeclaredName(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "other.c", "// toolbox:name ping\nint ping_main(int argc, char **argv) { return 0; }\n")

	if err := Remove(dir, "ping"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dir, "other.c")); !os.IsNotExist(err) {
		t.Error("declaring source file still present after Remove()")
	}
}

func TestRemove_FileStemShadowedByDirective(t *testing.T) {
	dir := t.TempDir()
	// The file ping.c declares a different name, so "ping" is not registered.
	writeTool(t, dir, "ping.c", "// toolbox:name netcheck\nint netcheck_main(int argc, char **argv) { return 0; }\n")

	err := Remove(dir, "ping")

	var nfErr *ToolNotFoundError
	if !errors.As(err, &nfErr) {
		t.Errorf("Remove() error = %v, want *ToolNotFoundError", err)
	}
	if _, err := os.Lstat(filepath.Join(dir, "ping.c")); err != nil {
		t.Error("source file deleted despite declaring a different name")
	}
}

func TestRemove_NotFound(t *testing.T) {
	err := Remove(t.TempDir(), "ghost")

	var nfErr *ToolNotFoundError
	if !errors.As(err, &nfErr) {
		t.Errorf("Remove() error = %v, want *ToolNotFoundError", err)
	}
}
