// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"toolbox-cli/internal/registry"
	"toolbox-cli/internal/symlink"
)

// listCmd shows registered tools and installed symlinks.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tool modules and installed symlinks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList()
	},
}

func runList() error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	modules, err := registry.Discover(ws.ToolsDir())
	if err != nil {
		return err
	}

	installed, err := symlink.Installed(ws.BinDir(), ws.BinaryPath())
	if err != nil {
		return err
	}
	linked := make(map[string]bool, len(installed))
	for _, name := range installed {
		linked[name] = true
	}

	if len(modules) == 0 {
		fmt.Println(SubtitleStyle.Render("No tools yet. Run 'toolbox create <name>' to add one."))
		return nil
	}

	fmt.Println(TitleStyle.Render("Tools") + SubtitleStyle.Render(fmt.Sprintf(" (%d)", len(modules))))
	for _, mod := range modules {
		marker := WarningStyle.Render("?")
		if linked[mod.Name] {
			marker = SuccessStyle.Render("✓")
		}
		line := fmt.Sprintf("  %s %-16s %s", marker, mod.Name, SubtitleStyle.Render(mod.Description))
		fmt.Println(line)
	}

	// Links for tools that no longer exist show up until the next build.
	for _, name := range installed {
		found := false
		for _, mod := range modules {
			if mod.Name == name {
				found = true
				break
			}
		}
		if !found {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+fmt.Sprintf("stale link '%s' (removed on next build)", name))
		}
	}

	if _, err := os.Stat(ws.BinaryPath()); err == nil {
		fmt.Println()
		fmt.Println(SubtitleStyle.Render("Binary: ") + PathStyle.Render(ws.BinaryPath()))
	} else {
		fmt.Println()
		fmt.Println(SubtitleStyle.Render("Not built yet. Run 'toolbox build'."))
	}

	return nil
}
