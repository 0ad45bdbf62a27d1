// SPDX-License-Identifier: MPL-2.0

// Package compiler orchestrates native compilation of tool modules and links
// them, together with the generated dispatcher, into the multicall binary.
//
// Compilation is incremental: a module whose cached fingerprint matches its
// current source and whose object artifact still exists is not recompiled.
// Independent modules compile in parallel under a bounded worker pool; the
// driver joins all workers before the link step runs.
// Linking is atomic: the new binary is written to a temporary path and
// renamed over the old one only after a fully successful link.
package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"toolbox-cli/internal/buildcache"
	"toolbox-cli/internal/dispatch"
	"toolbox-cli/internal/registry"
	"toolbox-cli/internal/workspace"
)

// Hardened defaults, matching what the scaffolded modules are written against.
var (
	DefaultCFlags = []string{
		"-Wall", "-Wextra", "-Werror",
		"-O2",
		"-fstack-protector-strong",
		"-D_FORTIFY_SOURCE=2",
		"-fPIE",
	}
	DefaultLDFlags = []string{"-pie"}
)

// dispatcherCacheKey is the reserved cache slot for the generated dispatcher
// unit. Tool names cannot start with an underscore, so it can never collide.
const dispatcherCacheKey = "__dispatcher"

// CompileError is a per-module compilation failure. It always names the
// offending module and carries the toolchain diagnostic verbatim.
type CompileError struct {
	Tool       string
	Diagnostic string
	Err        error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compiling tool '%s' failed: %v", e.Tool, e.Err)
	if diag := strings.TrimSpace(e.Diagnostic); diag != "" {
		msg += "\n" + diag
	}
	return msg
}

// Unwrap returns the underlying toolchain error.
func (e *CompileError) Unwrap() error { return e.Err }

// CompileErrors aggregates every module that failed in one build. The driver
// collects all failures and aborts before linking rather than failing fast,
// so one run reports every broken module.
type CompileErrors []*CompileError

// Error implements the error interface.
func (e CompileErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tool modules failed to compile:", len(e))
	for _, ce := range e {
		sb.WriteString("\n\n")
		sb.WriteString(ce.Error())
	}
	return sb.String()
}

// LinkError is a toolchain-level link failure, fatal to the whole build. The
// previous binary, if any, is left untouched.
type LinkError struct {
	Diagnostic string
	Err        error
}

// Error implements the error interface.
func (e *LinkError) Error() string {
	msg := fmt.Sprintf("linking multicall binary failed: %v", e.Err)
	if diag := strings.TrimSpace(e.Diagnostic); diag != "" {
		msg += "\n" + diag
	}
	return msg
}

// Unwrap returns the underlying toolchain error.
func (e *LinkError) Unwrap() error { return e.Err }

// Driver runs the compile and link steps for one workspace.
type Driver struct {
	// CC is the compiler executable. Resolve it with FindCC.
	CC string
	// CFlags are compile flags; nil means DefaultCFlags.
	CFlags []string
	// LDFlags are link flags; nil means DefaultLDFlags.
	LDFlags []string
	// Jobs bounds compile parallelism; <=0 means GOMAXPROCS.
	Jobs int
	// AppName is the canonical multicall name; empty means workspace.AppName.
	AppName string
	// Version is baked into the dispatcher's list mode.
	Version string
	// Force disables cache reuse, recompiling every module.
	Force bool
	// Logger receives per-step debug output; nil means the default logger.
	Logger *log.Logger
}

// Result describes a successful build.
type Result struct {
	// BinaryPath is the linked multicall binary.
	BinaryPath string
	// Compiled lists tools that were (re)compiled this run.
	Compiled []string
	// Reused lists tools whose cached artifacts were reused.
	Reused []string
}

// FindCC resolves the C compiler: the explicit override if given, otherwise
// the first of gcc, clang found on PATH.
func FindCC(override string) (string, error) {
	if override != "" {
		path, err := exec.LookPath(override)
		if err != nil {
			return "", fmt.Errorf("configured compiler %q not found: %w", override, err)
		}
		return path, nil
	}
	for _, cc := range []string{"gcc", "clang"} {
		if path, err := exec.LookPath(cc); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no C compiler found (tried gcc, clang)")
}

func (d *Driver) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

func (d *Driver) cflags() []string {
	if d.CFlags != nil {
		return d.CFlags
	}
	return DefaultCFlags
}

func (d *Driver) ldflags() []string {
	if d.LDFlags != nil {
		return d.LDFlags
	}
	return DefaultLDFlags
}

func (d *Driver) appName() string {
	if d.AppName != "" {
		return d.AppName
	}
	return workspace.AppName
}

func (d *Driver) jobs() int {
	if d.Jobs > 0 {
		return d.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// compileJob is one worker's unit of work and private result slot.
type compileJob struct {
	module registry.ToolModule
	object string
	reused bool
	err    *CompileError
}

// Build runs the full compile and link pipeline for the given module set,
// mutating cache with fresh records and returning it for persistence by the
// caller. On any error the previous binary remains in place.
func (d *Driver) Build(ctx context.Context, ws workspace.Workspace, modules []registry.ToolModule, cache *buildcache.Cache) (Result, error) {
	var res Result

	// Generating the dispatcher first also validates the module set (empty
	// set, invalid names) before any compiler is spawned.
	dispatcherSrc, err := dispatch.Generate(d.appName(), d.Version, modules)
	if err != nil {
		return res, err
	}

	jobs := make([]*compileJob, len(modules))
	for i, m := range modules {
		jobs[i] = &compileJob{
			module: m,
			object: filepath.Join(ws.ObjDir(), m.Name+".o"),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.jobs())
	for _, job := range jobs {
		g.Go(func() error {
			return d.compileModule(gctx, job, cache)
		})
	}

	// All compilation units must finish before the link step; workers record
	// per-module failures in their own slot instead of cancelling the group,
	// so one run reports every broken module.
	if err := g.Wait(); err != nil {
		return res, err
	}

	// The dispatcher unit compiles after the join point: it is the only step
	// that mutates the cache outside a worker's private slot.
	dispObj, dispErr := d.compileDispatcher(ctx, ws, dispatcherSrc, cache)

	var failures CompileErrors
	for _, job := range jobs {
		if job.err != nil {
			failures = append(failures, job.err)
			cache.Put(job.module.Name, buildcache.Record{
				Fingerprint: job.module.Fingerprint,
				Object:      job.object,
				BuiltAt:     time.Now().UTC(),
				Success:     false,
			})
			continue
		}
		cache.Put(job.module.Name, buildcache.Record{
			Fingerprint: job.module.Fingerprint,
			Object:      job.object,
			BuiltAt:     time.Now().UTC(),
			Success:     true,
		})
		if job.reused {
			res.Reused = append(res.Reused, job.module.Name)
		} else {
			res.Compiled = append(res.Compiled, job.module.Name)
		}
	}
	if dispErr != nil {
		failures = append(failures, dispErr)
	}
	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Tool < failures[j].Tool })
		return res, failures
	}

	registered := make(map[string]bool, len(modules))
	for _, m := range modules {
		registered[m.Name] = true
	}
	registered[dispatcherCacheKey] = true
	cache.Prune(registered)

	objects := make([]string, 0, len(jobs)+1)
	objects = append(objects, dispObj)
	for _, job := range jobs {
		objects = append(objects, job.object)
	}

	if err := d.link(ctx, ws, objects); err != nil {
		return res, err
	}

	sort.Strings(res.Compiled)
	sort.Strings(res.Reused)
	res.BinaryPath = ws.BinaryPath()
	return res, nil
}

// compileModule compiles one tool's translation unit unless its cache record
// is still valid. Failures land in the job's result slot.
func (d *Driver) compileModule(ctx context.Context, job *compileJob, cache *buildcache.Cache) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !d.Force {
		if rec, ok := cache.Reusable(job.module.Name, job.module.Fingerprint); ok && rec.Object == job.object {
			d.logger().Debug("object up to date", "tool", job.module.Name)
			job.reused = true
			return nil
		}
	}

	d.logger().Debug("compiling", "tool", job.module.Name, "source", job.module.Path)

	args := append([]string{}, d.cflags()...)
	args = append(args, "-c", job.module.Path, "-o", job.object)

	cmd := exec.CommandContext(ctx, d.CC, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		job.err = &CompileError{Tool: job.module.Name, Diagnostic: string(out), Err: err}
	}
	return nil
}

// compileDispatcher writes the generated dispatcher source atomically and
// compiles it, reusing the previous object when the generated source is
// byte-identical.
func (d *Driver) compileDispatcher(ctx context.Context, ws workspace.Workspace, src string, cache *buildcache.Cache) (string, *CompileError) {
	srcPath := filepath.Join(ws.BuildDir(), d.appName()+"_main.c")
	objPath := filepath.Join(ws.ObjDir(), d.appName()+"_main.o")

	sum := sha256.Sum256([]byte(src))
	fingerprint := hex.EncodeToString(sum[:])

	if !d.Force {
		if rec, ok := cache.Reusable(dispatcherCacheKey, fingerprint); ok && rec.Object == objPath {
			d.logger().Debug("dispatcher up to date")
			return objPath, nil
		}
	}

	if err := atomicWriteFile(srcPath, []byte(src), 0o644); err != nil {
		return "", &CompileError{Tool: d.appName(), Err: fmt.Errorf("write dispatcher source: %w", err)}
	}

	d.logger().Debug("compiling dispatcher", "source", srcPath)

	args := append([]string{}, d.cflags()...)
	args = append(args, "-c", srcPath, "-o", objPath)

	cmd := exec.CommandContext(ctx, d.CC, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &CompileError{Tool: d.appName(), Diagnostic: string(out), Err: err}
	}

	cache.Put(dispatcherCacheKey, buildcache.Record{
		Fingerprint: fingerprint,
		Object:      objPath,
		BuiltAt:     time.Now().UTC(),
		Success:     true,
	})
	return objPath, nil
}

// link produces the multicall binary at a temporary path and renames it into
// place on success. A failed link never disturbs the previous binary, so any
// live symlink keeps resolving to a runnable executable throughout.
func (d *Driver) link(ctx context.Context, ws workspace.Workspace, objects []string) error {
	tmpPath := filepath.Join(ws.BuildDir(), fmt.Sprintf(".%s.tmp-%d", d.appName(), os.Getpid()))
	defer os.Remove(tmpPath)

	args := []string{"-o", tmpPath}
	args = append(args, objects...)
	args = append(args, d.ldflags()...)

	d.logger().Debug("linking", "objects", len(objects), "output", ws.BinaryPath())

	cmd := exec.CommandContext(ctx, d.CC, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &LinkError{Diagnostic: string(out), Err: err}
	}

	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return &LinkError{Err: fmt.Errorf("chmod linked binary: %w", err)}
	}
	if err := os.Rename(tmpPath, ws.BinaryPath()); err != nil {
		return &LinkError{Err: fmt.Errorf("install linked binary: %w", err)}
	}
	return nil
}

// atomicWriteFile writes data via a sibling temp file and rename.
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
