package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a test suite, one per context
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a failed lifecycle hook
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// rootSuiteName names tests registered outside any labeled context.
const rootSuiteName = "(root)"

// JUnitFormatter formats test results as JUnit XML
type JUnitFormatter struct {
	writer  io.Writer
	results *Results
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(results *Results, opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:  os.Stdout,
		results: ownResults(results),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) HandleEvent(e event.Event) {
	f.results.record(e)
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush() error {
	summary := f.results.Summary()
	timestamp := time.Now().Format(time.RFC3339)

	suites := JUnitTestSuites{
		Name:      "control",
		Time:      summary.Duration.Seconds(),
		Timestamp: timestamp,
	}

	for _, group := range f.results.Suites() {
		name := group.Name
		if name == "" {
			name = rootSuiteName
		}

		ts := JUnitTestSuite{
			Name:      name,
			Timestamp: timestamp,
			TestCases: make([]JUnitTestCase, 0, len(group.Records)),
		}

		for _, rec := range group.Records {
			tc := JUnitTestCase{
				Name:      rec.Label,
				ClassName: name,
				Time:      rec.Timing.Total.Seconds(),
			}

			switch {
			case rec.IsHook():
				ts.Errors++
				tc.Name = fmt.Sprintf("%s: %s", rec.Kind, rec.Label)
				tc.Error = &JUnitError{
					Message: firstLine(rec.Err.Error()),
					Type:    rec.Kind.String(),
					Content: fmt.Sprintf("%+v", rec.Err),
				}
			case rec.Status == StatusFail:
				ts.Failures++
				tc.Failure = &JUnitFailure{
					Message: firstLine(rec.Err.Error()),
					Type:    fmt.Sprintf("%T", rec.Err),
					Content: fmt.Sprintf("%+v", rec.Err),
				}
			case rec.Status == StatusSkip:
				ts.Skipped++
				tc.Skipped = &JUnitSkipped{}
			}

			ts.Tests++
			ts.Time += rec.Timing.Total.Seconds()
			ts.TestCases = append(ts.TestCases, tc)
		}

		suites.Tests += ts.Tests
		suites.Failures += ts.Failures
		suites.Errors += ts.Errors
		suites.Skipped += ts.Skipped
		suites.TestSuites = append(suites.TestSuites, ts)
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.writer)
	return err
}
