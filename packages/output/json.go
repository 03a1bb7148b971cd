package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string      `json:"runId"`
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Hooks    []JSONHook  `json:"hooks,omitempty"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total        int     `json:"total"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	Skipped      int     `json:"skipped"`
	HookFailures int     `json:"hookFailures"`
	TestTime     float64 `json:"testTime"`
}

// JSONTiming is the per-phase duration of a test, in milliseconds
type JSONTiming struct {
	Before float64 `json:"before"`
	Task   float64 `json:"task"`
	After  float64 `json:"after"`
	Total  float64 `json:"total"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Name     string     `json:"name"`
	Path     []string   `json:"path"`
	Passed   bool       `json:"passed"`
	Skipped  bool       `json:"skipped,omitempty"`
	Duration float64    `json:"duration"`
	Timing   JSONTiming `json:"timing"`
	Error    string     `json:"error,omitempty"`
}

// JSONHook represents a failed lifecycle hook
type JSONHook struct {
	Kind     string   `json:"kind"`
	Name     string   `json:"name"`
	Path     []string `json:"path"`
	Duration float64  `json:"duration"`
	Error    string   `json:"error"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results *Results
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(results *Results, opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: ownResults(results),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) HandleEvent(e event.Event) {
	f.results.record(e)
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	summary := f.results.Summary()

	output := JSONOutput{
		RunID: summary.RunID,
		Summary: JSONSummary{
			Total:        summary.Total,
			Passed:       summary.Passed,
			Failed:       summary.Failed,
			Skipped:      summary.Skipped,
			HookFailures: summary.HookFailures,
			TestTime:     millis(summary.TestTime),
		},
		Tests:    make([]JSONTest, 0),
		Duration: millis(summary.Duration),
		Time:     time.Now().Format(time.RFC3339),
	}

	for _, rec := range f.results.Records() {
		errMsg := ""
		if rec.Err != nil {
			errMsg = rec.Err.Error()
		}

		if rec.IsHook() {
			output.Hooks = append(output.Hooks, JSONHook{
				Kind:     rec.Kind.String(),
				Name:     rec.Name(),
				Path:     rec.Path,
				Duration: millis(rec.Timing.Total),
				Error:    errMsg,
			})
			continue
		}

		output.Tests = append(output.Tests, JSONTest{
			Name:     rec.Name(),
			Path:     rec.Path,
			Passed:   rec.Status == StatusPass,
			Skipped:  rec.Status == StatusSkip,
			Duration: millis(rec.Timing.Total),
			Timing: JSONTiming{
				Before: millis(rec.Timing.Before),
				Task:   millis(rec.Timing.Task),
				After:  millis(rec.Timing.After),
				Total:  millis(rec.Timing.Total),
			},
			Error: errMsg,
		})
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
