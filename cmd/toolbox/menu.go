// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"toolbox-cli/internal/registry"
	"toolbox-cli/internal/tui"
)

// Menu options.
const (
	menuCreate = "Create tool"
	menuBuild  = "Build"
	menuList   = "List tools"
	menuRemove = "Remove tool"
	menuExit   = "Exit"
)

// menuCmd opens the interactive menu. Running toolbox with no arguments
// does the same.
var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Open the interactive menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMenu()
	},
}

func runMenu() error {
	tuiCfg := tui.DefaultConfig()

	for {
		choice, err := tui.Choose("toolbox menu", []string{menuCreate, menuBuild, menuList, menuRemove, menuExit}, tuiCfg)
		if err != nil {
			if errors.Is(err, tui.ErrCancelled) {
				return nil
			}
			return err
		}

		switch choice {
		case menuCreate:
			menuDoCreate(tuiCfg)
		case menuBuild:
			menuDoBuild()
		case menuList:
			if err := runList(); err != nil {
				fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
			}
		case menuRemove:
			menuDoRemove(tuiCfg)
		case menuExit:
			return nil
		}
	}
}

func menuDoCreate(tuiCfg tui.Config) {
	name, err := tui.Input("Tool name", "e.g. ping", tuiCfg)
	if err != nil || name == "" {
		return
	}
	if err := runCreate(name); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
	}
}

func menuDoRemove(tuiCfg tui.Config) {
	ws, err := resolveWorkspace()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return
	}

	modules, err := registry.Discover(ws.ToolsDir())
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return
	}
	if len(modules) == 0 {
		fmt.Println(SubtitleStyle.Render("No tools to remove."))
		return
	}

	name, err := tui.Choose("Remove which tool?", registry.Names(modules), tuiCfg)
	if err != nil {
		return
	}

	ok, err := tui.Confirm(fmt.Sprintf("Delete '%s'?", name), tuiCfg)
	if err != nil || !ok {
		return
	}

	if err := runRemove(name); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
	}
}

func menuDoBuild() {
	ws, err := resolveWorkspace()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return
	}
	if err := runBuildPipeline(context.Background(), ws, 0, false); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Build failed: ")+err.Error())
	}
}
