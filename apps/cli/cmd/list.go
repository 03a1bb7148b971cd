package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/control/packages/core/runner"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/spf13/cobra"
)

var listLanguageFlag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered contexts, hooks and tests",
	Long: `List the registered tree in the order it runs, without running anything.

Skipped tests and contexts are marked [skip]. In a context with exclusive
tests, those are marked [only] and the plain tests [not selected].

Examples:
  control list
  control list --language de`,
	Args: cobra.NoArgs,
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringVar(&listLanguageFlag, "language", getEnvString("CONTROL_LANGUAGE", ""), "Collation language used to order contexts (env: CONTROL_LANGUAGE)")
}

func listCommand(cmd *cobra.Command, args []string) error {
	root, err := suite.Load(definitions...)
	if err != nil {
		return withExitCode(ExitLoadError, err)
	}

	w := cmd.OutOrStdout()
	contexts, tests := printContext(w, root, 0)
	fmt.Fprintf(w, "\n%d tests in %d contexts\n", tests, contexts)
	return nil
}

// printContext writes c and its subtree and returns the number of contexts
// and tests it printed.
func printContext(w io.Writer, c *suite.Context, depth int) (contexts, tests int) {
	if c.Parent() != nil {
		fmt.Fprintf(w, "%s%s%s\n", indent(depth), c.Label, marker(c.Skip, ""))
		depth++
		contexts++
	}

	for _, kind := range []suite.Kind{suite.KindSetup, suite.KindBefore, suite.KindAfter, suite.KindTeardown} {
		for _, t := range c.Tasks(kind) {
			fmt.Fprintf(w, "%s%s: %s\n", indent(depth), kind, taskLabel(t))
		}
	}

	only := c.Only()
	for _, t := range c.Tasks(suite.KindTest) {
		note := ""
		if len(only) > 0 {
			note = "not selected"
		}
		fmt.Fprintf(w, "%s- %s%s\n", indent(depth), taskLabel(t), marker(t.Skipped(), note))
		tests++
	}
	for _, t := range only {
		fmt.Fprintf(w, "%s- %s%s\n", indent(depth), taskLabel(t), marker(t.Skipped(), "only"))
		tests++
	}

	for _, child := range runner.Ordered(listLanguageFlag, c.Children()) {
		n, m := printContext(w, child, depth)
		contexts += n
		tests += m
	}
	return contexts, tests
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func marker(skip bool, note string) string {
	var tags []string
	if skip {
		tags = append(tags, "[skip]")
	}
	if note != "" {
		tags = append(tags, "["+note+"]")
	}
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ")
}

func taskLabel(t *suite.Task) string {
	if t.Label == "" {
		return "(anonymous)"
	}
	return t.Label
}
