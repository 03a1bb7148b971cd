package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/control/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Write a default .control.yml",
	Long: `Write a .control.yml with the default settings to the given directory,
or the current directory when none is given.

Examples:
  control init
  control init ./ci --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
}

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	configFile := filepath.Join(dir, config.ConfigFilenames[0])
	if !forceInit {
		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", configFile)
		}
	}

	if err := config.DefaultConfig().SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)
	return nil
}
