package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/acarl005/stripansi"
)

// Formatter is implemented by every reporter.
type Formatter interface {
	event.Handler

	// Flush writes accumulated output. Live reporters return nil.
	Flush() error
}

// Formats lists the accepted reporter names.
var Formats = []string{"console", "json", "junit", "tap", "table"}

// Options configure the reporter built by New.
type Options struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
}

// New builds the reporter for format. Accumulating reporters read from
// results, which must be subscribed to the same bus; with nil results they
// collect on their own.
func New(format string, results *Results, opts Options) (Formatter, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	switch format {
	case "", "console":
		return NewConsoleFormatter(
			WithWriter(w),
			WithVerbose(opts.Verbose),
			WithNoColor(opts.NoColor),
		), nil
	case "json":
		return NewJSONFormatter(results, JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(results, JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(results, TAPWithWriter(w)), nil
	case "table":
		return NewTableFormatter(results, TableWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(Formats, ", "))
	}
}

// plainWriter strips ANSI escape sequences before writing.
type plainWriter struct {
	w io.Writer
}

// StripANSI wraps w so colored output lands as plain text, e.g. in a file.
func StripANSI(w io.Writer) io.Writer {
	return &plainWriter{w: w}
}

func (p *plainWriter) Write(b []byte) (int, error) {
	if _, err := io.WriteString(p.w, stripansi.Strip(string(b))); err != nil {
		return 0, err
	}
	return len(b), nil
}

// millis converts d to fractional milliseconds.
func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// firstLine truncates a multi-line message to its first line and marks the
// cut with an ellipsis.
func firstLine(msg string) string {
	eol := strings.IndexByte(msg, '\n')
	if eol == -1 {
		return msg
	}
	msg = msg[:eol]
	if n := len(msg); n > 0 && strings.ContainsRune(".,:;", rune(msg[n-1])) {
		msg = msg[:n-1]
	}
	return msg + " […]"
}
