// SPDX-License-Identifier: MPL-2.0

package main

import cmd "toolbox-cli/cmd/toolbox"

func main() {
	cmd.Execute()
}
