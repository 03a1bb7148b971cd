package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

const (
	symbolPass = "·"
	symbolSkip = "-"
	symbolFail = "⤫"

	separatorWidth = 80
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ConsoleFormatter writes a live, indented tree of the run followed by the
// failure details and totals.
type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	indent  int

	depth    int
	started  time.Time
	testTime time.Duration
	counts   map[Status]int
	failed   []*suite.Task

	red, green, cyan, white, gray *color.Color
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
		indent: 2,
		counts: make(map[Status]int),
		red:    color.New(color.FgHiRed),
		green:  color.New(color.FgHiGreen),
		cyan:   color.New(color.FgCyan),
		white:  color.New(color.FgHiWhite),
		gray:   color.New(color.FgHiBlack),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		for _, c := range []*color.Color{f.red, f.green, f.cyan, f.white, f.gray} {
			c.DisableColor()
		}
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose adds the before/after split to every test timing.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) HandleEvent(e event.Event) {
	switch ev := e.(type) {
	case event.Start:
		f.started = ev.Time
	case event.ContextStart:
		f.onContext(ev.Context)
	case event.Hook:
		f.onHook(ev.Task)
	case event.Test:
		f.onTest(ev.Task)
	case event.End:
		f.onEnd(ev.Time)
	}
}

func (f *ConsoleFormatter) Flush() error {
	return nil
}

func (f *ConsoleFormatter) pad() string {
	return strings.Repeat(" ", f.indent*f.depth)
}

func (f *ConsoleFormatter) onContext(c *suite.Context) {
	f.depth = max(0, c.Depth()-1) + 1
	if c.Label != "" {
		fmt.Fprintf(f.writer, "\n%s%s\n", f.pad(), f.white.Sprint(c.Label))
	} else {
		fmt.Fprintln(f.writer)
	}
	f.depth++
}

func (f *ConsoleFormatter) onHook(task *suite.Task) {
	if task.Err == nil {
		return
	}
	f.failed = append(f.failed, task)

	label := task.Label
	if label == "" {
		label = task.Kind().String()
	}
	fmt.Fprintf(f.writer, "%s%s %s %s\n", f.pad(), f.red.Sprint(symbolFail), label, f.inlineError(task.Err))
}

func (f *ConsoleFormatter) onTest(task *suite.Task) {
	f.testTime += task.Timing.Total

	switch {
	case task.Err != nil:
		f.counts[StatusFail]++
		f.failed = append(f.failed, task)
		fmt.Fprintf(f.writer, "%s%s %s %s %s\n", f.pad(), f.red.Sprint(symbolFail), task.Label,
			f.inlineError(task.Err), f.gray.Sprint(f.timing(task)))
	case task.Skipped():
		f.counts[StatusSkip]++
		fmt.Fprintf(f.writer, "%s%s %s\n", f.pad(), f.cyan.Sprint(symbolSkip), f.gray.Sprint(task.Label))
	default:
		f.counts[StatusPass]++
		fmt.Fprintf(f.writer, "%s%s %s %s\n", f.pad(), f.green.Sprint(symbolPass), task.Label,
			f.gray.Sprint(f.timing(task)))
	}
}

func (f *ConsoleFormatter) timing(task *suite.Task) string {
	s := "…  " + formatTime(task.Timing.Task)
	if f.verbose {
		s += fmt.Sprintf(" (before %s, after %s)", formatTime(task.Timing.Before), formatTime(task.Timing.After))
	}
	return s
}

func (f *ConsoleFormatter) inlineError(err error) string {
	msg := err.Error()
	if msg == "" {
		msg = "Unknown error"
	}
	return f.red.Sprint(firstLine(msg))
}

func (f *ConsoleFormatter) onEnd(end time.Time) {
	if len(f.failed) > 0 {
		separator := f.gray.Sprint(strings.Repeat("╌", separatorWidth))
		fmt.Fprintf(f.writer, "\n%s\n", separator)
		for _, task := range f.failed {
			path := strings.Join(taskPath(task), f.gray.Sprint(PathSeparator))
			fmt.Fprintf(f.writer, "\n  %s%s\n", path, f.gray.Sprint(":"))
			fmt.Fprint(f.writer, f.formatError(task.Err, "  "))
		}
		fmt.Fprintf(f.writer, "%s\n", separator)
	}

	total := f.counts[StatusPass] + f.counts[StatusSkip] + f.counts[StatusFail]
	width := len(strconv.Itoa(total))
	pad := func(n int) string { return fmt.Sprintf("%*d", width, n) }

	fmt.Fprintf(f.writer, "\n  %s tests %s\n", pad(total), f.gray.Sprint("…  "+formatTime(f.testTime)))
	if n := f.counts[StatusPass]; n > 0 {
		fmt.Fprintln(f.writer, f.green.Sprintf("%s %s pass", symbolPass, pad(n)))
	}
	if n := f.counts[StatusSkip]; n > 0 {
		fmt.Fprintln(f.writer, f.cyan.Sprintf("%s %s skip", symbolSkip, pad(n)))
	}
	if n := f.counts[StatusFail]; n > 0 {
		fmt.Fprintln(f.writer, f.red.Sprintf("%s %s fail", symbolFail, pad(n)))
	}
	if !f.started.IsZero() {
		fmt.Fprintln(f.writer, f.gray.Sprintf("\n  run …  %s", formatTime(end.Sub(f.started))))
	}
}

// formatError renders err with its stack, when one is available.
func (f *ConsoleFormatter) formatError(err error, indent string) string {
	var stack string
	var pe *suite.PanicError
	var st stackTracer
	switch {
	case errors.As(err, &pe):
		stack = string(pe.Stack)
	case errors.As(err, &st):
		stack = fmt.Sprintf("%+v", st.StackTrace())
	}

	var b strings.Builder
	b.WriteString(indent + f.red.Sprint(err.Error()) + "\n")
	for _, line := range strings.Split(stack, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString(f.gray.Sprint(indent+"  "+line) + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func taskPath(task *suite.Task) []string {
	path := task.Path()
	if task.Label == "" {
		path = append(path, task.Kind().String())
	}
	return path
}

func formatTime(d time.Duration) string {
	return fmt.Sprintf("%.2fms", millis(d))
}
