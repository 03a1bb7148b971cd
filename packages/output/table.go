package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter renders a per-context summary table, optionally listing
// individual tests.
type TableFormatter struct {
	writer    io.Writer
	results   *Results
	title     string
	showTests bool
}

type TableOption func(*TableFormatter)

func NewTableFormatter(results *Results, opts ...TableOption) *TableFormatter {
	f := &TableFormatter{
		writer:    os.Stdout,
		results:   ownResults(results),
		title:     "Test Results",
		showTests: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TableWithWriter(w io.Writer) TableOption {
	return func(f *TableFormatter) {
		f.writer = w
	}
}

func TableWithTitle(title string) TableOption {
	return func(f *TableFormatter) {
		f.title = title
	}
}

// TableWithTests toggles one row per test below each context row.
func TableWithTests(show bool) TableOption {
	return func(f *TableFormatter) {
		f.showTests = show
	}
}

func (f *TableFormatter) HandleEvent(e event.Event) {
	f.results.record(e)
}

// Flush renders the table
func (f *TableFormatter) Flush() error {
	summary := f.results.Summary()

	t := table.NewWriter()
	t.SetOutputMirror(f.writer)
	t.SetTitle(f.title)

	t.AppendHeader(table.Row{
		"Type", "Name", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "Name", WidthMax: 120, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
	})

	for _, group := range f.results.Suites() {
		name := group.Name
		if name == "" {
			name = rootSuiteName
		}

		var duration time.Duration
		var passed, failed, skipped, tests, hooks int
		for _, rec := range group.Records {
			duration += rec.Timing.Total
			if rec.IsHook() {
				hooks++
				continue
			}
			tests++
			switch rec.Status {
			case StatusPass:
				passed++
			case StatusFail:
				failed++
			case StatusSkip:
				skipped++
			}
		}

		status := StatusPass
		if failed > 0 || hooks > 0 {
			status = StatusFail
		} else if tests > 0 && skipped == tests {
			status = StatusSkip
		}

		t.AppendRow(table.Row{
			"Context", name, formatDuration(duration), tests, passed, failed, skipped, statusText(status),
		})

		if !f.showTests {
			continue
		}
		for _, rec := range group.Records {
			label := "├── " + rec.Label
			if rec.IsHook() {
				label = fmt.Sprintf("├── %s: %s", rec.Kind, rec.Label)
			}
			t.AppendRow(table.Row{
				"Test", label, formatDuration(rec.Timing.Total), "", "", "", "", statusText(rec.Status),
			})
		}
		t.AppendSeparator()
	}

	overall := StatusPass
	switch {
	case !summary.OK():
		overall = StatusFail
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case summary.Skipped > 0:
		overall = StatusSkip
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL", "", formatDuration(summary.Duration), summary.Total,
		summary.Passed, summary.Failed, summary.Skipped, statusText(overall),
	})

	t.Render()
	return nil
}

func statusText(s Status) string {
	return strings.ToUpper(string(s))
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
