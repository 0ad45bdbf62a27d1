// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"toolbox-cli/internal/watch"
)

var (
	buildForce bool
	buildJobs  int
	buildWatch bool

	// buildCmd runs the full build pipeline.
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Compile all tool modules and link the multicall binary",
		Long: `Run the full build pipeline: discover tool modules, compile the ones
whose source changed, generate the dispatch table, link the multicall
binary and reconcile the bin directory symlinks.

Builds are incremental. Use --force to recompile everything, and --watch
to keep rebuilding whenever a tool source changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context())
		},
	}
)

func init() {
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "recompile all modules, ignoring the cache")
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "max parallel compile jobs (default: number of CPUs)")
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "rebuild whenever a tool source changes")
}

func runBuild(ctx context.Context) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	if !buildWatch {
		return runBuildPipeline(ctx, ws, buildJobs, buildForce)
	}

	// Watch mode: the initial build failing is not fatal, the user gets
	// another chance on the next source change.
	if err := runBuildPipeline(ctx, ws, buildJobs, buildForce); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Build failed: ")+err.Error())
	}

	w, err := watch.New(watch.Config{
		Dir: ws.ToolsDir(),
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Printf("%s %v changed, rebuilding\n", SubtitleStyle.Render("→"), changed)
			if err := runBuildPipeline(ctx, ws, buildJobs, false); err != nil {
				fmt.Fprintln(os.Stderr, ErrorStyle.Render("Build failed: ")+err.Error())
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	fmt.Println(SubtitleStyle.Render("Watching ") + PathStyle.Render(ws.ToolsDir()) + SubtitleStyle.Render(" (ctrl-c to stop)"))
	return w.Run(ctx)
}
