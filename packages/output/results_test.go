package output

import (
	"testing"

	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults_Summary(t *testing.T) {
	results := NewResults()
	runWith(t, []suite.Definition{sampleSuite}, results)

	s := results.Summary()
	_, err := uuid.Parse(s.RunID)
	assert.NoError(t, err)
	assert.Equal(t, results.RunID(), s.RunID)

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 3, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.HookFailures)
	assert.False(t, s.OK())
	assert.False(t, s.StartedAt.IsZero())
	assert.GreaterOrEqual(t, s.Duration, s.TestTime)
}

func TestResults_Records(t *testing.T) {
	results := NewResults()
	runWith(t, []suite.Definition{sampleSuite}, results)

	records := results.Records()
	require.Len(t, records, 7)

	var names []string
	for _, rec := range records {
		names = append(names, rec.Name())
	}
	assert.Equal(t, []string{
		"root passes",
		"broken / connect",
		"math / adds",
		"math / fails",
		"math / multiline",
		"math / later",
		"panics / explodes",
	}, names)

	hook := records[1]
	assert.True(t, hook.IsHook())
	assert.Equal(t, suite.KindSetup, hook.Kind)
	assert.Equal(t, StatusFail, hook.Status)
	assert.EqualError(t, hook.Err, "refused")

	assert.Equal(t, StatusSkip, records[5].Status)
	assert.Equal(t, suite.TaskTiming{}, records[5].Timing)

	assert.Len(t, results.Tests(), 6)
	assert.Len(t, results.Failures(), 4)
}

func TestResults_Suites(t *testing.T) {
	results := NewResults()
	runWith(t, []suite.Definition{sampleSuite}, results)

	var names []string
	for _, s := range results.Suites() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"", "broken", "math", "panics"}, names)
	assert.Len(t, results.Suites()[2].Records, 4)
}

func TestResults_UnlabeledHook(t *testing.T) {
	results := NewResults()
	runWith(t, []suite.Definition{func(b *suite.Builder) {
		b.Context("ctx", func(b *suite.Builder) {
			b.Teardown("", fail)
		})
	}}, results)

	records := results.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "teardown", records[0].Label)
	assert.Equal(t, "ctx / teardown", records[0].Name())
}

func TestSummary_OK(t *testing.T) {
	assert.True(t, Summary{Total: 2, Passed: 1, Skipped: 1}.OK())
	assert.False(t, Summary{Failed: 1}.OK())
	assert.False(t, Summary{HookFailures: 1}.OK())
}
