// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolbox-cli/internal/registry"
)

// createCmd scaffolds a new tool module source file.
var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new tool module from the template",
	Long: `Create a new tool module with the given name.

The tool name must be lowercase, start with a letter and contain only
letters, digits and underscores; it doubles as the symlink name the tool
will be invoked under.

The scaffold implements <name>_main plus optional description and help
strings. Run 'toolbox build' afterwards to compile it into the multicall
binary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreate(args[0])
	},
}

func runCreate(name string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	mod, err := registry.Create(ws.ToolsDir(), name)
	if err != nil {
		return err
	}

	fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"), PathStyle.Render(mod.Path))
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Printf("  1. Edit %s to implement the tool\n", PathStyle.Render(mod.Path))
	fmt.Println("  2. Run 'toolbox build' to compile the multicall binary")
	fmt.Printf("  3. Invoke it as '%s'\n", name)

	return nil
}
