package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/cfgregistry/internal/ui"
	"github.com/spf13/cobra"
)

// helpRule restyles every match of pattern in cobra's help text.
type helpRule struct {
	pattern *regexp.Regexp
	style   func(groups []string) string
}

// helpRules run in order over the plain help text.
var helpRules = []helpRule{
	// Section headers other than Usage, e.g. "Registry:" or "Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), func(g []string) string {
		if g[1] == "Usage:" {
			return g[0]
		}
		return ui.RenderAccent(g[1])
	}},
	// Subcommand names in command lists.
	{regexp.MustCompile(`(?m)^(  )([a-z][\w-]*)(  +)`), func(g []string) string {
		return g[1] + ui.RenderCommand(g[2]) + g[3]
	}},
	// Example invocations.
	{regexp.MustCompile(`(?m)^(  )(cfgreg [^\n]*)$`), func(g []string) string {
		return g[1] + ui.RenderCommand(g[2])
	}},
	// Flag value types, e.g. "--target stringArray".
	{regexp.MustCompile(`(--[\w-]+ )(string|stringArray|int|int64|int64Slice|duration)\b`), func(g []string) string {
		return g[1] + ui.RenderMuted(g[2])
	}},
	{regexp.MustCompile(`\(default [^)]*\)`), func(g []string) string {
		return ui.RenderMuted(g[0])
	}},
}

// colorizedHelpFunc renders cobra's usage text, styled when stdout supports
// color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			cmd.SetOut(out)
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, r := range helpRules {
		s = r.pattern.ReplaceAllStringFunc(s, func(m string) string {
			return r.style(r.pattern.FindStringSubmatch(m))
		})
	}
	return strings.TrimRight(s, "\n") + "\n"
}
