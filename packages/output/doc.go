// Package output provides reporters for displaying test results.
//
// Every reporter is an event.Handler subscribed to the runner's bus.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output, written live
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration, one testsuite per context
//   - TAP: Test Anything Protocol version 13
//   - Table: ASCII table summary
//
// Accumulating formats write nothing until Flush is called after the run.
package output
