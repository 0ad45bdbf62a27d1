// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"toolbox-cli/internal/buildcache"
	"toolbox-cli/internal/compiler"
	"toolbox-cli/internal/registry"
	"toolbox-cli/internal/symlink"
	"toolbox-cli/internal/workspace"
)

// resolveWorkspace applies flag/config overrides and ensures the on-disk
// layout exists.
func resolveWorkspace() (workspace.Workspace, error) {
	ws, err := workspace.Resolve(workspaceRootOverride())
	if err != nil {
		return workspace.Workspace{}, err
	}
	if err := ws.EnsureLayout(); err != nil {
		return workspace.Workspace{}, err
	}
	return ws, nil
}

// newDriver assembles the compiler driver from configuration.
func newDriver(jobs int, force bool) (*compiler.Driver, error) {
	cc, err := compiler.FindCC(cfg.Compiler)
	if err != nil {
		return nil, err
	}

	cflags := append([]string{}, compiler.DefaultCFlags...)
	extraC, err := cfg.CFlagFields()
	if err != nil {
		return nil, err
	}
	cflags = append(cflags, extraC...)

	ldflags := append([]string{}, compiler.DefaultLDFlags...)
	extraLD, err := cfg.LDFlagFields()
	if err != nil {
		return nil, err
	}
	ldflags = append(ldflags, extraLD...)

	if jobs <= 0 {
		jobs = cfg.Jobs
	}

	return &compiler.Driver{
		CC:      cc,
		CFlags:  cflags,
		LDFlags: ldflags,
		Jobs:    jobs,
		Version: Version,
		Force:   force,
	}, nil
}

// runBuildPipeline executes one full build: discover, compile, link,
// reconcile. It holds the workspace build lock for the whole run. Symlink
// warnings are printed but never fail the build.
func runBuildPipeline(ctx context.Context, ws workspace.Workspace, jobs int, force bool) error {
	lock, err := ws.AcquireBuildLock()
	if err != nil {
		if errors.Is(err, workspace.ErrBuildInProgress) {
			// EX_TEMPFAIL: scripts can retry once the other build finishes.
			return &ExitError{Code: 75, Err: err}
		}
		return err
	}
	defer lock.Release()

	modules, err := registry.Discover(ws.ToolsDir())
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		return fmt.Errorf("no tool modules in %s; run 'toolbox create <name>' first", ws.ToolsDir())
	}

	cache, warn := buildcache.Load(ws.CachePath())
	if warn != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+warn.Error())
	}

	driver, err := newDriver(jobs, force)
	if err != nil {
		return err
	}

	log.Debug("building", "tools", len(modules), "workspace", ws.Root)
	res, buildErr := driver.Build(ctx, ws, modules, cache)

	// The cache is persisted even on failure: successfully compiled objects
	// stay reusable for the next run.
	if err := buildcache.Save(ws.CachePath(), cache); err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
	}

	if buildErr != nil {
		return buildErr
	}

	recon, err := symlink.Reconcile(ws.BinDir(), ws.BinaryPath(), registry.Names(modules))
	if err != nil {
		return err
	}
	for _, w := range recon.Warnings {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+"symlink "+w.String())
	}

	printBuildSummary(ws, res, recon)
	return nil
}

// printBuildSummary reports what the build did.
func printBuildSummary(ws workspace.Workspace, res compiler.Result, recon symlink.Result) {
	fmt.Printf("%s Build complete\n", SuccessStyle.Render("✓"))
	fmt.Printf("  compiled: %d, reused: %d\n", len(res.Compiled), len(res.Reused))
	fmt.Printf("  binary:   %s\n", PathStyle.Render(res.BinaryPath))
	if recon.Changed() {
		fmt.Printf("  links:    +%d -%d in %s\n", len(recon.Created), len(recon.Removed), PathStyle.Render(ws.BinDir()))
	}
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Add to PATH: ") + fmt.Sprintf("export PATH=%q:$PATH", ws.BinDir()))
}
