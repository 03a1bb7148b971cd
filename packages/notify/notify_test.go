package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/control/packages/core/config"
	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/runner"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/abdul-hamid-achik/control/packages/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []*RunSummary
	err       error
}

func (f *fakeNotifier) Notify(ctx context.Context, s *RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return f.err
}

func (f *fakeNotifier) Name() string { return "fake" }

func passing() *RunSummary { return &RunSummary{TotalTests: 1, PassedTests: 1} }
func failing() *RunSummary { return &RunSummary{TotalTests: 1, FailedTests: 1} }

func TestManager_Policies(t *testing.T) {
	tests := []struct {
		name   string
		on     NotifyOn
		runs   []*RunSummary
		notify []bool
	}{
		{"always", NotifyAlways, []*RunSummary{passing(), failing()}, []bool{true, true}},
		{"failure", NotifyFailure, []*RunSummary{passing(), failing()}, []bool{false, true}},
		{"success", NotifySuccess, []*RunSummary{passing(), failing()}, []bool{true, false}},
		{"recovery", NotifyRecovery, []*RunSummary{passing(), failing(), passing(), passing()}, []bool{false, true, true, false}},
		{"hook failure counts as failure", NotifyFailure, []*RunSummary{{HookFailures: 1}}, []bool{true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeNotifier{}
			m := NewManager(tt.on, fake)

			for i, run := range tt.runs {
				before := len(fake.summaries)
				require.NoError(t, m.Notify(context.Background(), run))
				assert.Equal(t, tt.notify[i], len(fake.summaries) > before, "run %d", i)
			}
		})
	}
}

func TestManager_RecoveryFlag(t *testing.T) {
	fake := &fakeNotifier{}
	m := NewManager(NotifyRecovery, fake)

	require.NoError(t, m.Notify(context.Background(), failing()))
	recovered := passing()
	require.NoError(t, m.Notify(context.Background(), recovered))

	assert.True(t, recovered.IsRecovery)
	title, ok := recovered.title()
	assert.True(t, ok)
	assert.Equal(t, "Tests recovered!", title)
}

func TestManager_TriesEveryNotifier(t *testing.T) {
	broken := &fakeNotifier{err: errors.New("down")}
	working := &fakeNotifier{}
	m := NewManager(NotifyAlways, broken)
	m.AddNotifier(working)

	err := m.Notify(context.Background(), passing())
	assert.EqualError(t, err, "down")
	assert.Len(t, working.summaries, 1)
	assert.Equal(t, 2, m.Len())
}

func TestParseNotifyOn(t *testing.T) {
	on, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, on)

	on, err = ParseNotifyOn("recovery")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, on)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestNewRunSummary(t *testing.T) {
	root, err := suite.Load(func(b *suite.Builder) {
		b.Context("api", func(b *suite.Builder) {
			for i := 0; i < maxFailedResults+2; i++ {
				b.Test("", suite.Func(func(ctx context.Context) error { return errors.New("nope\ndetails") }))
			}
			b.Test("ok", suite.Func(func(ctx context.Context) error { return nil }))
			b.After("cleanup", suite.Func(func(ctx context.Context) error { return nil }))
		})
	})
	require.NoError(t, err)

	results := output.NewResults()
	bus := event.NewBus()
	bus.OnAll(results)
	require.NoError(t, runner.NewRunner(bus, nil).Run(context.Background(), root))

	s := NewRunSummary(results, "staging")
	assert.Equal(t, results.RunID(), s.RunID)
	assert.Equal(t, maxFailedResults+3, s.TotalTests)
	assert.Equal(t, 1, s.PassedTests)
	assert.Equal(t, maxFailedResults+2, s.FailedTests)
	assert.Equal(t, "staging", s.Environment)
	assert.Len(t, s.FailedResults, maxFailedResults)
	assert.Equal(t, 2, s.OmittedFailures)
	assert.Equal(t, "nope\ndetails", s.FailedResults[0].Error)
	assert.True(t, s.Failed())
}

func TestSlackNotifier(t *testing.T) {
	var msg slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewSlackNotifier(server.URL, WithSlackChannel("#ci"), WithSlackUsername("bot"))
	summary := &RunSummary{
		RunID:         "run-1",
		TotalTests:    2,
		PassedTests:   1,
		FailedTests:   1,
		FailedResults: []FailedTest{{Name: "api / login", Kind: "test", Error: "401\nbody"}},
	}
	require.NoError(t, s.Notify(context.Background(), summary))

	assert.Equal(t, "#ci", msg.Channel)
	assert.Equal(t, "bot", msg.Username)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "danger", msg.Attachments[0].Color)
	assert.Contains(t, msg.Attachments[0].Title, "1 test(s) failed")
	assert.Contains(t, msg.Attachments[0].Text, "`api / login`")
	assert.Contains(t, msg.Attachments[0].Text, "401 […]")
	assert.Contains(t, msg.Attachments[0].Footer, "run-1")
}

func TestTeamsNotifier(t *testing.T) {
	var msg teamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewTeamsNotifier(server.URL, WithTeamsClient(server.Client()))
	summary := &RunSummary{
		TotalTests:    1,
		HookFailures:  1,
		FailedResults: []FailedTest{{Name: "db / connect", Kind: "setup", Error: "refused"}},
	}
	require.NoError(t, n.Notify(context.Background(), summary))

	require.Len(t, msg.Attachments, 1)
	body := msg.Attachments[0].Content.Body
	assert.Equal(t, "✗ 1 hook(s) failed", body[0].Text)
	assert.Equal(t, "attention", body[0].Color)

	var texts []string
	for _, b := range body {
		texts = append(texts, b.Text)
	}
	assert.Contains(t, texts, "- `db / connect` (setup): refused")
}

func TestWebhookErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewSlackNotifier(server.URL).Notify(context.Background(), passing())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: webhook returned status 403")

	err = NewTeamsNotifier(server.URL).Notify(context.Background(), passing())
	assert.Contains(t, err.Error(), "teams: webhook returned status 403")
}

func TestFromConfig(t *testing.T) {
	m, err := FromConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = FromConfig(&config.NotifyConfig{
		Services:     []string{"slack", "teams"},
		On:           "always",
		SlackWebhook: "https://hooks.slack.test/x",
		TeamsWebhook: "https://teams.test/x",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	_, err = FromConfig(&config.NotifyConfig{Services: []string{"slack"}})
	assert.ErrorContains(t, err, "webhook URL")

	_, err = FromConfig(&config.NotifyConfig{Services: []string{"pager"}})
	assert.ErrorContains(t, err, "unknown notification service")

	_, err = FromConfig(&config.NotifyConfig{Services: []string{"teams"}, On: "weekly", TeamsWebhook: "x"})
	assert.Error(t, err)
}
