// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolbox-cli/internal/registry"
)

// removeCmd deletes a tool module's source file.
var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a tool module source",
	Long: `Delete the source file of a tool module.

The tool's symlink and cached artifact are pruned on the next build; the
current multicall binary keeps working until then.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemove(args[0])
	},
}

func runRemove(name string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}

	if err := registry.Remove(ws.ToolsDir(), name); err != nil {
		return err
	}

	fmt.Printf("%s Removed '%s'\n", SuccessStyle.Render("✓"), name)
	fmt.Println(SubtitleStyle.Render("Run 'toolbox build' to prune its symlink."))
	return nil
}
