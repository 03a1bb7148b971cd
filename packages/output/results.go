package output

import (
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/google/uuid"
)

// Status is the outcome of a recorded task.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// PathSeparator joins context and task labels for display.
const PathSeparator = " / "

// Record is a flat copy of a reported task, taken when its event fires.
type Record struct {
	// Path holds the non-empty labels of the owning contexts, root first.
	Path   []string
	Label  string
	Kind   suite.Kind
	Status Status
	Err    error
	Timing suite.TaskTiming
}

// Name is the full display path of the task.
func (r Record) Name() string {
	return strings.Join(append(append([]string{}, r.Path...), r.Label), PathSeparator)
}

// Suite is the display path of the owning context.
func (r Record) Suite() string {
	return strings.Join(r.Path, PathSeparator)
}

// IsHook reports whether the record is a failed lifecycle hook.
func (r Record) IsHook() bool {
	return r.Kind.IsHook()
}

// Summary aggregates a run.
type Summary struct {
	RunID        string
	Total        int
	Passed       int
	Failed       int
	Skipped      int
	HookFailures int
	// TestTime sums the total timing of every reported test.
	TestTime   time.Duration
	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the run had neither failing tests nor failing hooks.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.HookFailures == 0
}

// Results records every test and failed hook of a run. It is safe for
// concurrent use so a watcher may read it while a run publishes.
type Results struct {
	mu       sync.RWMutex
	runID    string
	records  []Record
	started  time.Time
	finished time.Time

	// owned collectors are private to one formatter, which feeds them.
	owned bool
}

// NewResults creates a collector with a fresh run ID.
func NewResults() *Results {
	return &Results{runID: uuid.New().String()}
}

// ownResults returns shared, or a private collector when shared is nil.
func ownResults(shared *Results) *Results {
	if shared != nil {
		return shared
	}
	r := NewResults()
	r.owned = true
	return r
}

// record forwards e to a private collector. Shared collectors receive
// events from their own bus subscription.
func (r *Results) record(e event.Event) {
	if r.owned {
		r.HandleEvent(e)
	}
}

// RunID identifies the run this collector recorded.
func (r *Results) RunID() string {
	return r.runID
}

func (r *Results) HandleEvent(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev := e.(type) {
	case event.Start:
		r.started = ev.Time
	case event.Test:
		r.records = append(r.records, newRecord(ev.Task))
	case event.Hook:
		r.records = append(r.records, newRecord(ev.Task))
	case event.End:
		r.finished = ev.Time
	}
}

func newRecord(task *suite.Task) Record {
	rec := Record{
		Path:   task.Context().Path(),
		Label:  task.Label,
		Kind:   task.Kind(),
		Err:    task.Err,
		Timing: task.Timing,
	}
	if rec.Label == "" && rec.Kind.IsHook() {
		rec.Label = rec.Kind.String()
	}

	switch {
	case task.Err != nil:
		rec.Status = StatusFail
	case task.Skipped():
		rec.Status = StatusSkip
	default:
		rec.Status = StatusPass
	}
	return rec
}

// Records returns every record in event order.
func (r *Results) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Tests returns the test records in event order.
func (r *Results) Tests() []Record {
	return r.filter(func(rec Record) bool { return !rec.IsHook() })
}

// Failures returns failed tests and hooks in event order.
func (r *Results) Failures() []Record {
	return r.filter(func(rec Record) bool { return rec.Status == StatusFail })
}

func (r *Results) filter(keep func(Record) bool) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// SuiteRecords groups the records of one context.
type SuiteRecords struct {
	Name    string
	Records []Record
}

// Suites groups records by owning context, in order of first appearance.
func (r *Results) Suites() []SuiteRecords {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var suites []SuiteRecords
	index := make(map[string]int)
	for _, rec := range r.records {
		name := rec.Suite()
		i, ok := index[name]
		if !ok {
			i = len(suites)
			index[name] = i
			suites = append(suites, SuiteRecords{Name: name})
		}
		suites[i].Records = append(suites[i].Records, rec)
	}
	return suites
}

// Summary aggregates the recorded run.
func (r *Results) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Summary{
		RunID:      r.runID,
		StartedAt:  r.started,
		FinishedAt: r.finished,
	}
	if !r.started.IsZero() && !r.finished.IsZero() {
		s.Duration = r.finished.Sub(r.started)
	}

	for _, rec := range r.records {
		if rec.IsHook() {
			s.HookFailures++
			continue
		}
		s.Total++
		s.TestTime += rec.Timing.Total
		switch rec.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		case StatusSkip:
			s.Skipped++
		}
	}
	return s
}
