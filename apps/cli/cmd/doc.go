// Package cmd implements the control CLI commands using Cobra.
//
// A test binary registers its suites and hands them to Execute:
//
//	func main() {
//		cmd.Execute(version, buildTime, mathSuite, storageSuite)
//	}
//
// Available commands:
//   - run: Execute the registered suites (the default command)
//   - list: Print the registered context tree
//   - validate: Check the config file and that the suites register
//   - init: Write a default .control.yml
//   - diff: Compare two JSON reports
//   - version: Show version information
//
// Flags default from CONTROL_* environment variables, then from the config
// file, so the same binary runs unchanged in CI and locally.
package cmd
