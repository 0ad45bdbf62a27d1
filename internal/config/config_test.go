// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_MissingConfigFileIsFine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Compiler != "" || cfg.Jobs != 0 {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
root = "/srv/toolbox"
compiler = "clang"
extra_cflags = "-O3 -DGREETING='hello world'"
jobs = 4

[ui]
verbose = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Root != "/srv/toolbox" {
		t.Errorf("Root = %q", cfg.Root)
	}
	if cfg.Compiler != "clang" {
		t.Errorf("Compiler = %q", cfg.Compiler)
	}
	if cfg.Jobs != 4 {
		t.Errorf("Jobs = %d", cfg.Jobs)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose = false, want true")
	}
}

func TestLoad_ExplicitPathMissingIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() with missing explicit path succeeded, want error")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TOOLBOX_COMPILER", "tcc")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Compiler != "tcc" {
		t.Errorf("Compiler = %q, want env override tcc", cfg.Compiler)
	}
}

func TestCFlagFields_ShellWordRules(t *testing.T) {
	cfg := &Config{ExtraCFlags: `-O3 -DGREETING='hello world' -Ia/b`}

	fields, err := cfg.CFlagFields()
	if err != nil {
		t.Fatalf("CFlagFields() error: %v", err)
	}
	want := []string{"-O3", "-DGREETING=hello world", "-Ia/b"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("CFlagFields() = %v, want %v", fields, want)
	}
}

func TestFlagFields_Empty(t *testing.T) {
	cfg := &Config{}

	cf, err := cfg.CFlagFields()
	if err != nil || cf != nil {
		t.Errorf("CFlagFields() = %v, %v, want nil, nil", cf, err)
	}
	lf, err := cfg.LDFlagFields()
	if err != nil || lf != nil {
		t.Errorf("LDFlagFields() = %v, %v, want nil, nil", lf, err)
	}
}
