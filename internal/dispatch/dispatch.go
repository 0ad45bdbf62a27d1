// SPDX-License-Identifier: MPL-2.0

// Package dispatch synthesizes the C dispatcher translation unit that turns
// the linked output into a multicall binary.
//
// The generated unit embeds a static name-to-entry-point table, consulted at
// process startup against basename(argv[0]). Invoked under a tool alias, the
// binary transfers control to that module's entry point with argv passed
// through unchanged. Invoked under its canonical name, it lists the available
// tools, or dispatches argv[1] BusyBox-style. An unresolved name exits with
// exitUnknownTool, distinct from the usage-error exit code.
package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"toolbox-cli/internal/registry"
)

// Exit codes baked into the generated dispatcher. Unknown-tool failures must
// be distinguishable from usage errors by exit status alone.
const (
	exitUsage       = 2
	exitUnknownTool = 127
)

// GenerationError indicates the module set cannot produce a valid dispatch
// table.
type GenerationError struct {
	Reason string
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("cannot generate dispatch table: %s", e.Reason)
}

// Generate produces the dispatcher C source for the given module set. The
// table is emitted in name order so identical module sets generate identical
// dispatch behavior regardless of discovery order. An empty module set is a
// build error: a multicall binary with zero tools is not a valid output.
func Generate(appName, version string, modules []registry.ToolModule) (string, error) {
	if len(modules) == 0 {
		return "", &GenerationError{Reason: "no tool modules registered"}
	}

	sorted := make([]registry.ToolModule, len(modules))
	copy(sorted, modules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	seen := make(map[string]bool, len(sorted))
	for _, m := range sorted {
		if err := registry.ValidateName(m.Name); err != nil {
			return "", &GenerationError{Reason: err.Error()}
		}
		if seen[m.Name] {
			return "", &GenerationError{Reason: fmt.Sprintf("duplicate entry for tool '%s'", m.Name)}
		}
		seen[m.Name] = true
	}

	data := templateData{
		AppName:         appName,
		Version:         version,
		ExitUsage:       exitUsage,
		ExitUnknownTool: exitUnknownTool,
		Tools:           sorted,
	}

	var sb strings.Builder
	if err := dispatcherTmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render dispatcher source: %w", err)
	}
	return sb.String(), nil
}

type templateData struct {
	AppName         string
	Version         string
	ExitUsage       int
	ExitUnknownTool int
	Tools           []registry.ToolModule
}

// cQuote renders s as a C string literal. Descriptions come from single-line
// comment directives, but quotes and backslashes in them must not break the
// generated unit.
func cQuote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// dispatcherTmpl renders the multicall entry unit. Each tool contributes its
// entry point plus weak desc/help symbols, so modules may omit either without
// breaking the link; the directive description is baked in as the table's
// fallback so list mode and the toolbox CLI agree on what a tool does.
var dispatcherTmpl = template.Must(template.New("dispatcher").Funcs(template.FuncMap{
	"cquote": cQuote,
}).Parse(`/* Generated by {{.AppName}}; do not edit. */
#include <stdio.h>
#include <string.h>
#include <libgen.h>

#define APP "{{.AppName}}"
#define VER "{{.Version}}"
#define EXIT_USAGE {{.ExitUsage}}
#define EXIT_UNKNOWN_TOOL {{.ExitUnknownTool}}

{{range .Tools}}int {{.EntryPoint}}(int, char **);
extern const char *{{.Name}}_desc __attribute__((weak));
extern const char *{{.Name}}_help __attribute__((weak));
{{end}}
struct tool {
    const char *name;
    int (*main)(int, char **);
    const char **desc;
    const char **help;
    const char *fallback_desc;
};

static const struct tool tools[] = {
{{range .Tools}}    {"{{.Name}}", {{.EntryPoint}}, &{{.Name}}_desc, &{{.Name}}_help, {{cquote .Description}}},
{{end}}    {NULL, NULL, NULL, NULL, NULL}
};

static const char *tool_desc(const struct tool *t) {
    if (t->desc && *t->desc)
        return *t->desc;
    return t->fallback_desc;
}

static void list_tools(void) {
    printf("%s v%s\n", APP, VER);
    printf("Usage: %s <tool> [args]\n\n", APP);
    for (int i = 0; tools[i].name; i++)
        printf("  %-16s %s\n", tools[i].name, tool_desc(&tools[i]));
}

static void tool_help(const struct tool *t) {
    const char *d = tool_desc(t);
    if (d[0])
        printf("%s - %s\n", t->name, d);
    if (t->help && *t->help)
        printf("%s\n", *t->help);
    else
        printf("Usage: %s [args]\n", t->name);
}

static const struct tool *find_tool(const char *name) {
    for (int i = 0; tools[i].name; i++)
        if (strcmp(name, tools[i].name) == 0)
            return &tools[i];
    return NULL;
}

static int dispatch(const char *name, int argc, char **argv) {
    const struct tool *t = find_tool(name);
    if (!t) {
        fprintf(stderr, "%s: unknown tool: %s\n", APP, name);
        return EXIT_UNKNOWN_TOOL;
    }
    if (argc > 1 && (strcmp(argv[1], "--help") == 0 || strcmp(argv[1], "-h") == 0)) {
        tool_help(t);
        return 0;
    }
    return t->main(argc, argv);
}

int main(int argc, char **argv) {
    char *prog = basename(argv[0]);

    if (strcmp(prog, APP) == 0) {
        if (argc < 2) {
            list_tools();
            return 0;
        }
        if (strcmp(argv[1], "--help") == 0 || strcmp(argv[1], "-h") == 0) {
            list_tools();
            return 0;
        }
        if (argv[1][0] == '-') {
            fprintf(stderr, "%s: unknown option: %s\n", APP, argv[1]);
            return EXIT_USAGE;
        }
        return dispatch(argv[1], argc - 1, argv + 1);
    }

    return dispatch(prog, argc, argv);
}
`))
