// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for toolbox.
//
// This package implements the Cobra command hierarchy: create, build, list,
// remove and the interactive menu. Command handlers stay thin; the build
// pipeline itself lives in the internal packages (registry, compiler,
// dispatch, symlink, buildcache, workspace) and is composed here.
package cmd
