package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"

	// definitions are registered by the binary embedding the CLI
	definitions []suite.Definition
)

var rootCmd = &cobra.Command{
	Use:   "control",
	Short: "Nested contexts, hooks and tests. Run in order.",
	Long: `control runs test suites registered as a tree of contexts. Each context
has setup and teardown hooks, per-test before and after hooks, and tests
whose bodies may be synchronous, asynchronous or callback based.

A binary embeds the CLI and passes its suite definitions to Execute.
Running it without a subcommand runs every registered suite.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI against defs and exits the process.
func Execute(v, bt string, defs ...suite.Definition) {
	os.Exit(execute(context.Background(), v, bt, os.Args[1:], defs...))
}

func execute(ctx context.Context, v, bt string, args []string, defs ...suite.Definition) int {
	version = v
	buildTime = bt
	definitions = defs

	rootCmd.SetArgs(withDefaultCommand(args))
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", exit.err)
		}
		return exit.code
	}

	fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	return ExitUsageError
}

// withDefaultCommand routes bare invocations and flag-only invocations to run.
func withDefaultCommand(args []string) []string {
	if len(args) == 0 {
		return []string{runCmd.Name()}
	}
	switch args[0] {
	case "-h", "--help":
		return args
	}
	if strings.HasPrefix(args[0], "-") {
		return append([]string{runCmd.Name()}, args...)
	}
	return args
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}
