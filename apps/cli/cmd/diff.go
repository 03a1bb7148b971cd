package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/control/packages/output"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	diffOutputFlag    string
	diffThresholdFlag string
	diffNoColorFlag   bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <report1.json> <report2.json>",
	Short: "Compare two JSON reports",
	Long: `Compare two reports written with --output json and show the differences.

Tests are matched by their full path. A test regresses when it stopped
passing or became more than 10% slower.

Examples:
  control diff before.json after.json
  control diff before.json after.json --output json
  control diff before.json after.json --threshold 25%`,
	Args: cobra.ExactArgs(2),
	RunE: diffCommand,
}

func init() {
	diffCmd.Flags().StringVarP(&diffOutputFlag, "output", "o", "console", "Output format: console, json")
	diffCmd.Flags().StringVar(&diffThresholdFlag, "threshold", "", "Fail if any test is slower by this percentage (e.g., 10%)")
	diffCmd.Flags().BoolVar(&diffNoColorFlag, "no-color", getEnvBool("CONTROL_NO_COLOR", false), "Disable colored output (env: CONTROL_NO_COLOR)")
}

// Status changes between two reports
const (
	changeImproved  = "improved"
	changeRegressed = "regressed"
	changeUnchanged = "unchanged"
	changeNew       = "new"
	changeRemoved   = "removed"
)

// durationNoise is the relative change, in percent, below which a duration
// difference is reported as unchanged.
const durationNoise = 10

// DiffResult holds the comparison result
type DiffResult struct {
	File1       string           `json:"file1"`
	File2       string           `json:"file2"`
	Summary     DiffSummary      `json:"summary"`
	Comparisons []TestComparison `json:"comparisons"`
}

// TestComparison represents a comparison between two test results
type TestComparison struct {
	Test           string  `json:"test"`
	StatusChange   string  `json:"statusChange"`
	Status1        string  `json:"status1,omitempty"`
	Status2        string  `json:"status2,omitempty"`
	Duration1      float64 `json:"duration1,omitempty"` // ms
	Duration2      float64 `json:"duration2,omitempty"` // ms
	DurationChange float64 `json:"durationChange,omitempty"`
}

// DiffSummary provides overall statistics
type DiffSummary struct {
	TotalTests       int     `json:"totalTests"`
	Improved         int     `json:"improved"`
	Regressed        int     `json:"regressed"`
	Unchanged        int     `json:"unchanged"`
	NewTests         int     `json:"newTests"`
	RemovedTests     int     `json:"removedTests"`
	Duration1        float64 `json:"duration1"`
	Duration2        float64 `json:"duration2"`
	ThresholdPercent float64 `json:"thresholdPercent,omitempty"`
	ThresholdPassed  bool    `json:"thresholdPassed"`
}

func diffCommand(cmd *cobra.Command, args []string) error {
	file1, file2 := args[0], args[1]

	report1, err := loadReport(file1)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", file1, err)
	}
	report2, err := loadReport(file2)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", file2, err)
	}

	var threshold float64
	if diffThresholdFlag != "" {
		threshold, err = parseThreshold(diffThresholdFlag)
		if err != nil {
			return err
		}
	}

	diff := compareReports(file1, file2, report1, report2, threshold)

	w := cmd.OutOrStdout()
	switch strings.ToLower(diffOutputFlag) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(diff); err != nil {
			return err
		}
	case "console":
		printDiff(w, diff, diffNoColorFlag)
	default:
		return fmt.Errorf("unknown output format %q (expected console or json)", diffOutputFlag)
	}

	if !diff.Summary.ThresholdPassed {
		return withExitCode(ExitTestFailure, fmt.Errorf("threshold exceeded: some tests are more than %.1f%% slower", threshold))
	}
	return nil
}

func loadReport(path string) (*output.JSONOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var report output.JSONOutput
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func parseThreshold(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q: %w", s, err)
	}
	return v, nil
}

func testStatus(t output.JSONTest) string {
	switch {
	case t.Skipped:
		return string(output.StatusSkip)
	case t.Passed:
		return string(output.StatusPass)
	default:
		return string(output.StatusFail)
	}
}

func compareReports(file1, file2 string, report1, report2 *output.JSONOutput, threshold float64) *DiffResult {
	diff := &DiffResult{
		File1: file1,
		File2: file2,
		Summary: DiffSummary{
			Duration1:        report1.Duration,
			Duration2:        report2.Duration,
			ThresholdPercent: threshold,
			ThresholdPassed:  true,
		},
	}

	index := func(report *output.JSONOutput) map[string]output.JSONTest {
		tests := make(map[string]output.JSONTest, len(report.Tests))
		for _, t := range report.Tests {
			tests[t.Name] = t
		}
		return tests
	}
	tests1, tests2 := index(report1), index(report2)

	keys := make([]string, 0, len(tests1)+len(tests2))
	for key := range tests1 {
		keys = append(keys, key)
	}
	for key := range tests2 {
		if _, ok := tests1[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		t1, in1 := tests1[key]
		t2, in2 := tests2[key]
		comp := TestComparison{Test: key}

		switch {
		case in1 && in2:
			comp.Status1, comp.Status2 = testStatus(t1), testStatus(t2)
			comp.Duration1, comp.Duration2 = t1.Duration, t2.Duration
			if comp.Duration1 > 0 {
				comp.DurationChange = (comp.Duration2 - comp.Duration1) / comp.Duration1 * 100
			}

			passed1 := comp.Status1 == string(output.StatusPass)
			passed2 := comp.Status2 == string(output.StatusPass)
			switch {
			case passed1 && !passed2 && comp.Status2 == string(output.StatusFail):
				comp.StatusChange = changeRegressed
			case !passed1 && passed2:
				comp.StatusChange = changeImproved
			case passed1 && passed2 && comp.DurationChange < -durationNoise:
				comp.StatusChange = changeImproved
			case passed1 && passed2 && comp.DurationChange > durationNoise:
				comp.StatusChange = changeRegressed
			default:
				comp.StatusChange = changeUnchanged
			}

			if threshold > 0 && comp.DurationChange > threshold {
				diff.Summary.ThresholdPassed = false
			}
		case in1:
			comp.Status1 = testStatus(t1)
			comp.Duration1 = t1.Duration
			comp.StatusChange = changeRemoved
		default:
			comp.Status2 = testStatus(t2)
			comp.Duration2 = t2.Duration
			comp.StatusChange = changeNew
		}

		switch comp.StatusChange {
		case changeImproved:
			diff.Summary.Improved++
		case changeRegressed:
			diff.Summary.Regressed++
		case changeUnchanged:
			diff.Summary.Unchanged++
		case changeNew:
			diff.Summary.NewTests++
		case changeRemoved:
			diff.Summary.RemovedTests++
		}
		diff.Comparisons = append(diff.Comparisons, comp)
		diff.Summary.TotalTests++
	}

	return diff
}

func printDiff(w io.Writer, diff *DiffResult, noColor bool) {
	paint := func(attr color.Attribute) func(a ...any) string {
		c := color.New(attr)
		if noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	green := paint(color.FgGreen)
	red := paint(color.FgRed)
	yellow := paint(color.FgYellow)
	cyan := paint(color.FgCyan)
	bold := paint(color.Bold)
	plain := fmt.Sprint

	fmt.Fprintf(w, "\n%s\n", bold("Report Comparison"))
	fmt.Fprintf(w, "  %s: %s\n", cyan("Report 1"), diff.File1)
	fmt.Fprintf(w, "  %s: %s\n\n", cyan("Report 2"), diff.File2)

	fmt.Fprintf(w, "%s\n", bold("Summary"))
	fmt.Fprintf(w, "  Total Tests:    %d\n", diff.Summary.TotalTests)
	if diff.Summary.Improved > 0 {
		fmt.Fprintf(w, "  Improved:       %s\n", green(diff.Summary.Improved))
	}
	if diff.Summary.Regressed > 0 {
		fmt.Fprintf(w, "  Regressed:      %s\n", red(diff.Summary.Regressed))
	}
	if diff.Summary.Unchanged > 0 {
		fmt.Fprintf(w, "  Unchanged:      %d\n", diff.Summary.Unchanged)
	}
	if diff.Summary.NewTests > 0 {
		fmt.Fprintf(w, "  New Tests:      %s\n", cyan(diff.Summary.NewTests))
	}
	if diff.Summary.RemovedTests > 0 {
		fmt.Fprintf(w, "  Removed Tests:  %s\n", yellow(diff.Summary.RemovedTests))
	}
	fmt.Fprintf(w, "  Run time:       %.2fms → %.2fms\n\n", diff.Summary.Duration1, diff.Summary.Duration2)

	fmt.Fprintf(w, "%s\n", bold("Test Details"))
	for _, comp := range diff.Comparisons {
		symbol, paintFn := "=", plain
		switch comp.StatusChange {
		case changeImproved:
			symbol, paintFn = "↑", green
		case changeRegressed:
			symbol, paintFn = "↓", red
		case changeNew:
			symbol, paintFn = "+", cyan
		case changeRemoved:
			symbol, paintFn = "-", yellow
		}

		switch comp.StatusChange {
		case changeNew:
			fmt.Fprintf(w, "  %s %s  (new, %s)\n", paintFn(symbol), comp.Test, comp.Status2)
		case changeRemoved:
			fmt.Fprintf(w, "  %s %s  (removed)\n", paintFn(symbol), comp.Test)
		default:
			change := ""
			if comp.DurationChange > 0 {
				change = fmt.Sprintf("+%.1f%%", comp.DurationChange)
			} else if comp.DurationChange < 0 {
				change = fmt.Sprintf("%.1f%%", comp.DurationChange)
			}
			status := comp.Status2
			if comp.Status1 != comp.Status2 {
				status = comp.Status1 + " → " + comp.Status2
			}
			fmt.Fprintf(w, "  %s %s  %s  %.2fms → %.2fms %s\n",
				paintFn(symbol), comp.Test, status, comp.Duration1, comp.Duration2, paintFn(change))
		}
	}
	fmt.Fprintln(w)

	if diff.Summary.ThresholdPercent > 0 {
		if diff.Summary.ThresholdPassed {
			fmt.Fprintf(w, "%s Threshold check passed (max regression: %.1f%%)\n", green("✓"), diff.Summary.ThresholdPercent)
		} else {
			fmt.Fprintf(w, "%s Threshold check failed (some tests exceeded %.1f%% regression)\n", red("✗"), diff.Summary.ThresholdPercent)
		}
	}
}
