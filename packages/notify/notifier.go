// Package notify posts run summaries to chat webhooks.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/control/packages/output"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first passing
	// run after a failure
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name. An empty name means failure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q", s)
	}
}

// maxFailedResults caps the failures listed in one message.
const maxFailedResults = 10

// RunSummary represents the summary of a test run for notifications
type RunSummary struct {
	RunID         string        `json:"run_id"`
	TotalTests    int           `json:"total_tests"`
	PassedTests   int           `json:"passed_tests"`
	FailedTests   int           `json:"failed_tests"`
	SkippedTests  int           `json:"skipped_tests"`
	HookFailures  int           `json:"hook_failures"`
	Duration      time.Duration `json:"duration"`
	Environment   string        `json:"environment,omitempty"`
	FailedResults []FailedTest  `json:"failed_results,omitempty"`
	// OmittedFailures counts failures beyond the listed ones.
	OmittedFailures int  `json:"omitted_failures,omitempty"`
	IsRecovery      bool `json:"is_recovery,omitempty"`
}

// Failed reports whether any test or lifecycle hook failed.
func (s *RunSummary) Failed() bool {
	return s.FailedTests > 0 || s.HookFailures > 0
}

// FailedTest represents a failed test or hook for notifications
type FailedTest struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Error string `json:"error,omitempty"`
}

// NewRunSummary builds a summary from the results of a finished run.
func NewRunSummary(results *output.Results, environment string) *RunSummary {
	s := results.Summary()
	summary := &RunSummary{
		RunID:        s.RunID,
		TotalTests:   s.Total,
		PassedTests:  s.Passed,
		FailedTests:  s.Failed,
		SkippedTests: s.Skipped,
		HookFailures: s.HookFailures,
		Duration:     s.Duration,
		Environment:  environment,
	}

	for _, rec := range results.Failures() {
		if len(summary.FailedResults) == maxFailedResults {
			summary.OmittedFailures++
			continue
		}
		ft := FailedTest{Name: rec.Name(), Kind: rec.Kind.String()}
		if rec.Err != nil {
			ft.Error = rec.Err.Error()
		}
		summary.FailedResults = append(summary.FailedResults, ft)
	}
	return summary
}

// title returns the headline and whether the run went well.
func (s *RunSummary) title() (string, bool) {
	switch {
	case s.FailedTests > 0:
		return fmt.Sprintf("%d test(s) failed", s.FailedTests), false
	case s.HookFailures > 0:
		return fmt.Sprintf("%d hook(s) failed", s.HookFailures), false
	case s.IsRecovery:
		return "Tests recovered!", true
	default:
		return "All tests passed!", true
	}
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about test results
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers and remembers the outcome of the
// previous run for the recovery policy.
type Manager struct {
	mu        sync.Mutex
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of registered notifiers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifiers)
}

// Notify sends notifications based on the configured policy. Every notifier
// is tried; the last error is returned.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	m.mu.Lock()
	currentSuccess := !summary.Failed()
	shouldNotify := false

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.Unlock()

	if !shouldNotify {
		return nil
	}

	var lastErr error
	for _, n := range notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
