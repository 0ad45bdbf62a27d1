// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"toolbox-cli/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string
	// rootDir overrides the workspace root
	rootDir string

	// cfg is the loaded configuration, populated by initRootConfig.
	cfg = config.DefaultConfig()

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "toolbox",
		Short: "Build and manage a BusyBox-style multicall binary",
		Long: TitleStyle.Render("toolbox") + SubtitleStyle.Render(" - a multicall binary manager") + `

toolbox compiles a collection of small C tool modules into one multicall
binary and maintains a bin directory of per-tool symlinks, so each tool can
be invoked under its own name (the BusyBox pattern).

Tool sources live in the workspace tools directory, one file per tool.
Builds are incremental: only modules whose source changed are recompiled.

` + SubtitleStyle.Render("Quick Start:") + `
  1. toolbox create ping      Scaffold a new tool module
  2. toolbox build            Compile and link the multicall binary
  3. Add the workspace bin directory to your PATH

` + SubtitleStyle.Render("Examples:") + `
  toolbox                     Open the interactive menu
  toolbox create ping         Create a tool module named 'ping'
  toolbox build --watch       Rebuild whenever a tool source changes
  toolbox list                Show registered tools and installed links
  toolbox remove ping         Delete the 'ping' tool module source`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu()
		},
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is platform config dir)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "workspace root (default is $TOOLBOX_ROOT or ~/.tools/toolbox)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(menuCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig loads the config file and configures the logger.
func initRootConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
	} else {
		cfg = loaded
	}

	if cfg.UI.Verbose {
		verbose = true
	}

	log.SetReportTimestamp(false)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// workspaceRootOverride resolves the precedence between the --root flag and
// the configured root. The TOOLBOX_ROOT env var is handled by the workspace
// package itself.
func workspaceRootOverride() string {
	if rootDir != "" {
		return rootDir
	}
	return cfg.Root
}
