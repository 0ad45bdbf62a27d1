// SPDX-License-Identifier: MPL-2.0

//go:build linux

package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toolbox-cli/internal/buildcache"
	"toolbox-cli/internal/registry"
	"toolbox-cli/internal/workspace"
)

// fakeCC is a stand-in compiler: in compile mode it concatenates the inputs
// into the output (failing on sources containing BOOM), in link mode it does
// the same unless FAKE_CC_FAIL_LINK is set. This keeps driver tests hermetic
// on machines without a toolchain.
const fakeCC = `#!/bin/sh
mode=link
out=""
inputs=""
while [ $# -gt 0 ]; do
  case "$1" in
    -c) mode=compile ;;
    -o) out="$2"; shift ;;
    -*) ;;
    *) inputs="$inputs $1" ;;
  esac
  shift
done
if [ "$mode" = link ] && [ -n "$FAKE_CC_FAIL_LINK" ]; then
  echo "fake-cc: injected link failure" >&2
  exit 1
fi
for f in $inputs; do
  if grep -q BOOM "$f" 2>/dev/null; then
    echo "fake-cc: error in $f" >&2
    exit 1
  fi
done
cat $inputs > "$out"
`

func testDriver(t *testing.T) (*Driver, workspace.Workspace) {
	t.Helper()

	dir := t.TempDir()
	ccPath := filepath.Join(dir, "fake-cc")
	if err := os.WriteFile(ccPath, []byte(fakeCC), 0o755); err != nil {
		t.Fatal(err)
	}

	ws := workspace.Workspace{Root: filepath.Join(dir, "ws")}
	if err := ws.EnsureLayout(); err != nil {
		t.Fatal(err)
	}

	return &Driver{CC: ccPath, Version: "test"}, ws
}

func addTool(t *testing.T, ws workspace.Workspace, name, body string) {
	t.Helper()
	src := "int " + name + "_main(int argc, char **argv) { " + body + " }\n"
	if err := os.WriteFile(filepath.Join(ws.ToolsDir(), name+".c"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func discover(t *testing.T, ws workspace.Workspace) []registry.ToolModule {
	t.Helper()
	modules, err := registry.Discover(ws.ToolsDir())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	return modules
}

func TestBuild_CompilesAndLinks(t *testing.T) {
	d, ws := testDriver(t)
	addTool(t, ws, "ping", "return 0;")
	addTool(t, ws, "echo", "return 0;")
	cache := buildcache.New()

	res, err := d.Build(context.Background(), ws, discover(t, ws), cache)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if res.BinaryPath != ws.BinaryPath() {
		t.Errorf("BinaryPath = %q, want %q", res.BinaryPath, ws.BinaryPath())
	}
	data, err := os.ReadFile(ws.BinaryPath())
	if err != nil {
		t.Fatalf("binary not produced: %v", err)
	}
	for _, want := range []string{"ping_main", "echo_main", "struct tool"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("linked output missing %q", want)
		}
	}

	if len(res.Compiled) != 2 {
		t.Errorf("Compiled = %v, want both tools", res.Compiled)
	}
	for _, name := range []string{"ping", "echo"} {
		rec, ok := cache.Lookup(name)
		if !ok || !rec.Success {
			t.Errorf("cache record for %s = %+v, %v", name, rec, ok)
		}
	}
}

func TestBuild_SecondRunRecompilesNothing(t *testing.T) {
	d, ws := testDriver(t)
	addTool(t, ws, "ping", "return 0;")
	addTool(t, ws, "echo", "return 0;")
	cache := buildcache.New()

	if _, err := d.Build(context.Background(), ws, discover(t, ws), cache); err != nil {
		t.Fatalf("first Build() error: %v", err)
	}

	res, err := d.Build(context.Background(), ws, discover(t, ws), cache)
	if err != nil {
		t.Fatalf("second Build() error: %v", err)
	}
	if len(res.Compiled) != 0 {
		t.Errorf("second build recompiled %v, want none", res.Compiled)
	}
	if len(res.Reused) != 2 {
		t.Errorf("second build reused %v, want both tools", res.Reused)
	}
}

func TestBuild_OnlyChangedModuleRecompiles(t *testing.T) {
	d, ws := testDriver(t)
	addTool(t, ws, "ping", "return 0;")
	addTool(t, ws, "echo", "return 0;")
	cache := buildcache.New()

	if _, err := d.Build(context.Background(), ws, discover(t, ws), cache); err != nil {
		t.Fatalf("first Build() error: %v", err)
	}

	addTool(t, ws, "echo", "return 42;")

	res, err := d.Build(context.Background(), ws, discover(t, ws), cache)
	if err != nil {
		t.Fatalf("second Build() error: %v", err)
	}
	if len(res.Compiled) != 1 || res.Compiled[0] != "echo" {
		t.Errorf("Compiled = %v, want [echo]", res.Compiled)
	}
	if len(res.Reused) != 1 || res.Reused[0] != "ping" {
		t.Errorf("Reused = %v, want [ping]", res.Reused)
	}
}

func TestBuild_CollectsAllCompileErrors(t *testing.T) {
	d, ws := testDriver(t)
	addTool(t, ws, "bad_one", "BOOM; return 0;")
	addTool(t, ws, "bad_two", "BOOM; return 0;")
	addTool(t, ws, "good", "return 0;")
	cache := buildcache.New()

	_, err := d.Build(context.Background(), ws, discover(t, ws), cache)

	var failures CompileErrors
	if !errors.As(err, &failures) {
		t.Fatalf("Build() error = %v, want CompileErrors", err)
	}
	if len(failures) != 2 {
		t.Fatalf("collected %d failures, want 2: %v", len(failures), failures)
	}
	for i, want := range []string{"bad_one", "bad_two"} {
		if failures[i].Tool != want {
			t.Errorf("failures[%d].Tool = %q, want %q", i, failures[i].Tool, want)
		}
		if !strings.Contains(failures[i].Diagnostic, "fake-cc: error") {
			t.Errorf("failures[%d] missing toolchain diagnostic: %q", i, failures[i].Diagnostic)
		}
	}

	if _, statErr := os.Stat(ws.BinaryPath()); !os.IsNotExist(statErr) {
		t.Error("binary produced despite compile failures")
	}
}

func TestBuild_LinkFailureLeavesPreviousBinary(t *testing.T) {
	d, ws := testDriver(t)
	addTool(t, ws, "ping", "return 0;")
	cache := buildcache.New()

	if _, err := d.Build(context.Background(), ws, discover(t, ws), cache); err != nil {
		t.Fatalf("first Build() error: %v", err)
	}
	before, err := os.ReadFile(ws.BinaryPath())
	if err != nil {
		t.Fatal(err)
	}

	addTool(t, ws, "ping", "return 7;")
	t.Setenv("FAKE_CC_FAIL_LINK", "1")

	_, err = d.Build(context.Background(), ws, discover(t, ws), cache)

	var linkErr *LinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("Build() error = %v, want *LinkError", err)
	}

	after, err := os.ReadFile(ws.BinaryPath())
	if err != nil {
		t.Fatalf("previous binary gone after failed link: %v", err)
	}
	if string(before) != string(after) {
		t.Error("previous binary modified by failed link")
	}

	// No half-written temporary left observable.
	entries, err := os.ReadDir(ws.BuildDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp artifact %s", e.Name())
		}
	}
}

func TestBuild_EmptyModuleSetIsGenerationError(t *testing.T) {
	d, ws := testDriver(t)

	_, err := d.Build(context.Background(), ws, nil, buildcache.New())
	if err == nil {
		t.Fatal("Build() with no modules succeeded, want error")
	}
	if !strings.Contains(err.Error(), "no tool modules") {
		t.Errorf("Build() error = %v, want generation error about empty set", err)
	}
}

func TestBuild_ForceRecompilesEverything(t *testing.T) {
	d, ws := testDriver(t)
	addTool(t, ws, "ping", "return 0;")
	cache := buildcache.New()

	if _, err := d.Build(context.Background(), ws, discover(t, ws), cache); err != nil {
		t.Fatalf("first Build() error: %v", err)
	}

	d.Force = true
	res, err := d.Build(context.Background(), ws, discover(t, ws), cache)
	if err != nil {
		t.Fatalf("forced Build() error: %v", err)
	}
	if len(res.Reused) != 0 {
		t.Errorf("forced build reused %v, want none", res.Reused)
	}
}

func TestBuild_PrunesRemovedToolsFromCache(t *testing.T) {
	d, ws := testDriver(t)
	addTool(t, ws, "ping", "return 0;")
	addTool(t, ws, "echo", "return 0;")
	cache := buildcache.New()

	if _, err := d.Build(context.Background(), ws, discover(t, ws), cache); err != nil {
		t.Fatalf("first Build() error: %v", err)
	}

	if err := os.Remove(filepath.Join(ws.ToolsDir(), "ping.c")); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Build(context.Background(), ws, discover(t, ws), cache); err != nil {
		t.Fatalf("second Build() error: %v", err)
	}

	if _, ok := cache.Lookup("ping"); ok {
		t.Error("cache still holds record for removed tool")
	}
	if _, ok := cache.Lookup("echo"); !ok {
		t.Error("cache lost record for surviving tool")
	}
}

func TestFindCC_OverrideNotFound(t *testing.T) {
	if _, err := FindCC("definitely-not-a-real-compiler"); err == nil {
		t.Error("FindCC() with bogus override succeeded, want error")
	}
}

func TestFindCC_AbsoluteOverride(t *testing.T) {
	dir := t.TempDir()
	cc := filepath.Join(dir, "mycc")
	if err := os.WriteFile(cc, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindCC(cc)
	if err != nil {
		t.Fatalf("FindCC() error: %v", err)
	}
	if got != cc {
		t.Errorf("FindCC() = %q, want %q", got, cc)
	}
}
