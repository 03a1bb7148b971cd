package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/control/packages/core/event"
)

// TAPFormatter formats test results in TAP (Test Anything Protocol) format.
// Failed hooks are reported as failing test points.
type TAPFormatter struct {
	writer  io.Writer
	results *Results
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(results *Results, opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: ownResults(results),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) HandleEvent(e event.Event) {
	f.results.record(e)
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush() error {
	records := f.results.Records()

	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", len(records))

	for i, rec := range records {
		n := i + 1
		name := rec.Name()

		switch {
		case rec.Status == StatusSkip:
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP\n", n, name)
		case rec.Status == StatusFail:
			if rec.IsHook() {
				name = fmt.Sprintf("%s: %s", rec.Kind, name)
			}
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(firstLine(rec.Err.Error())))
			if rec.IsHook() {
				fmt.Fprintf(f.writer, "  severity: error\n")
			} else {
				fmt.Fprintf(f.writer, "  severity: fail\n")
			}
			fmt.Fprintf(f.writer, "  duration_ms: %.2f\n", millis(rec.Timing.Total))
			fmt.Fprintf(f.writer, "  ...\n")
		default:
			fmt.Fprintf(f.writer, "ok %d - %s\n", n, name)
		}
	}

	_, err := fmt.Fprintln(f.writer)
	return err
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return "\"" + s + "\""
	}
	return s
}
