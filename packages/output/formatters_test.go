package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	results := NewResults()
	for _, format := range Formats {
		t.Run(format, func(t *testing.T) {
			f, err := New(format, results, Options{Writer: &bytes.Buffer{}})
			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}

	t.Run("default is console", func(t *testing.T) {
		f, err := New("", nil, Options{})
		require.NoError(t, err)
		assert.IsType(t, &ConsoleFormatter{}, f)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New("html", nil, Options{})
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	results := NewResults()
	f := NewJSONFormatter(results, JSONWithWriter(&buf))
	runWith(t, []suite.Definition{sampleSuite}, results, f)
	require.NoError(t, f.Flush())

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, results.RunID(), out.RunID)
	assert.Equal(t, JSONSummary{
		Total: 6, Passed: 2, Failed: 3, Skipped: 1, HookFailures: 1,
		TestTime: out.Summary.TestTime,
	}, out.Summary)
	require.Len(t, out.Tests, 6)
	assert.Equal(t, "math / fails", out.Tests[2].Name)
	assert.Equal(t, []string{"math"}, out.Tests[2].Path)
	assert.Equal(t, "boom", out.Tests[2].Error)
	assert.True(t, out.Tests[4].Skipped)

	require.Len(t, out.Hooks, 1)
	assert.Equal(t, "setup", out.Hooks[0].Kind)
	assert.Equal(t, "broken / connect", out.Hooks[0].Name)
	assert.Equal(t, "refused", out.Hooks[0].Error)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(nil, JUnitWithWriter(&buf))
	runWith(t, []suite.Definition{sampleSuite}, f)
	require.NoError(t, f.Flush())

	assert.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`))

	var out JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "control", out.Name)
	assert.Equal(t, 7, out.Tests)
	assert.Equal(t, 3, out.Failures)
	assert.Equal(t, 1, out.Errors)
	assert.Equal(t, 1, out.Skipped)

	require.Len(t, out.TestSuites, 4)
	assert.Equal(t, rootSuiteName, out.TestSuites[0].Name)

	broken := out.TestSuites[1]
	assert.Equal(t, "broken", broken.Name)
	require.Len(t, broken.TestCases, 1)
	assert.Equal(t, "setup: connect", broken.TestCases[0].Name)
	require.NotNil(t, broken.TestCases[0].Error)
	assert.Equal(t, "refused", broken.TestCases[0].Error.Message)

	math := out.TestSuites[2]
	assert.Equal(t, 4, math.Tests)
	assert.Equal(t, 2, math.Failures)
	assert.Equal(t, 1, math.Skipped)
	require.NotNil(t, math.TestCases[1].Failure)
	assert.Equal(t, "boom", math.TestCases[1].Failure.Message)
	assert.Equal(t, "first line […]", math.TestCases[2].Failure.Message)
	assert.NotNil(t, math.TestCases[3].Skipped)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(nil, TAPWithWriter(&buf))
	runWith(t, []suite.Definition{sampleSuite}, f)
	require.NoError(t, f.Flush())

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "TAP version 13", lines[0])
	assert.Equal(t, "1..7", lines[1])

	out := buf.String()
	assert.Contains(t, out, "ok 1 - root passes\n")
	assert.Contains(t, out, "not ok 2 - setup: broken / connect\n")
	assert.Contains(t, out, "  severity: error\n")
	assert.Contains(t, out, "ok 3 - math / adds\n")
	assert.Contains(t, out, "not ok 4 - math / fails\n  ---\n  message: boom\n  severity: fail\n")
	assert.Contains(t, out, "  message: \"first line […]\"\n")
	assert.Contains(t, out, "ok 6 - math / later # SKIP\n")
	assert.Contains(t, out, "not ok 7 - panics / explodes\n  ---\n  message: \"panic: kaboom\"\n")
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTableFormatter(nil, TableWithWriter(&buf), TableWithTitle("Nightly"))
	runWith(t, []suite.Definition{sampleSuite}, f)
	require.NoError(t, f.Flush())

	out := buf.String()
	assert.Contains(t, out, "Nightly")
	assert.Contains(t, out, rootSuiteName)
	assert.Contains(t, out, "├── adds")
	assert.Contains(t, out, "├── setup: connect")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "FAIL")
}

func TestTableFormatter_ContextsOnly(t *testing.T) {
	var buf bytes.Buffer
	f := NewTableFormatter(nil, TableWithWriter(&buf), TableWithTests(false))
	runWith(t, []suite.Definition{func(b *suite.Builder) {
		b.Context("only context", func(b *suite.Builder) {
			b.Test("hidden test", suite.Func(pass))
		})
	}}, f)
	require.NoError(t, f.Flush())

	out := buf.String()
	assert.Contains(t, out, "only context")
	assert.NotContains(t, out, "hidden test")
	assert.Contains(t, out, "PASS")
}

func TestFormatters_SharedResultsAreNotDoubleCounted(t *testing.T) {
	var buf bytes.Buffer
	results := NewResults()
	f := NewTAPFormatter(results, TAPWithWriter(&buf))

	// the formatter's own HandleEvent must not feed a shared collector
	runWith(t, []suite.Definition{func(b *suite.Builder) {
		b.Test("once", suite.Func(pass))
	}}, results, f)
	f.HandleEvent(event.End{})

	require.NoError(t, f.Flush())
	assert.Contains(t, buf.String(), "1..1\n")
}
