package cmd

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/control/packages/core/config"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/spf13/cobra"
)

var validateConfigFlag string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file and the suite definitions",
	Long: `Validate the config file against the config schema and check that every
suite definition registers without error. Nothing is run.

Examples:
  control validate
  control validate --config ci/.control.yml`,
	Args: cobra.NoArgs,
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigFlag, "config", getEnvString("CONTROL_CONFIG", ""), "Path to config file (env: CONTROL_CONFIG)")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path := validateConfigFlag
	if path == "" {
		path = config.FindConfigFile(".")
	}
	if path == "" {
		fmt.Fprintln(out, "No config file found, using defaults")
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot read config: %w", err))
		}
		if err := config.Validate(data); err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("invalid config %s: %w", path, err))
		}
		fmt.Fprintf(out, "Valid: %s\n", path)
	}

	root, err := suite.Load(definitions...)
	if err != nil {
		return withExitCode(ExitLoadError, err)
	}

	contexts, tests := 0, 0
	root.Walk(func(c *suite.Context) bool {
		if c.Parent() != nil {
			contexts++
		}
		tests += len(c.Tasks(suite.KindTest)) + len(c.Only())
		return true
	})
	fmt.Fprintf(out, "Valid: %d tests in %d contexts\n", tests, contexts)
	return nil
}
