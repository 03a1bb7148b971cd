// Package metrics provides metrics export functionality for control test runs.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/control/packages/output"
)

// TestMetrics represents the metrics of one reported test or failed hook
type TestMetrics struct {
	TestName   string    `json:"test_name"`
	Context    string    `json:"context"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	DurationMs float64   `json:"duration_ms"`
	BeforeMs   float64   `json:"before_ms"`
	AfterMs    float64   `json:"after_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Passed reports whether the test ran and succeeded.
func (m *TestMetrics) Passed() bool {
	return m.Status == string(output.StatusPass)
}

func (m *TestMetrics) isHook() bool {
	return m.Kind != "test"
}

// AggregateMetrics represents aggregated metrics of a run
type AggregateMetrics struct {
	RunID            string                       `json:"run_id"`
	TotalTests       int64                        `json:"total_tests"`
	PassedCount      int64                        `json:"passed_count"`
	FailedCount      int64                        `json:"failed_count"`
	SkippedCount     int64                        `json:"skipped_count"`
	HookFailureCount int64                        `json:"hook_failure_count"`
	TotalDurationMs  float64                      `json:"total_duration_ms"`
	RunDurationMs    float64                      `json:"run_duration_ms"`
	MinDurationMs    float64                      `json:"min_duration_ms"`
	MaxDurationMs    float64                      `json:"max_duration_ms"`
	AvgDurationMs    float64                      `json:"avg_duration_ms"`
	P50DurationMs    float64                      `json:"p50_duration_ms"`
	P95DurationMs    float64                      `json:"p95_duration_ms"`
	P99DurationMs    float64                      `json:"p99_duration_ms"`
	ByContext        map[string]*ContextAggregate `json:"by_context"`
}

// Success reports whether the run had neither failed tests nor failed hooks.
func (a *AggregateMetrics) Success() bool {
	return a.FailedCount == 0 && a.HookFailureCount == 0
}

// ContextNames returns the keys of ByContext, sorted.
func (a *AggregateMetrics) ContextNames() []string {
	names := make([]string, 0, len(a.ByContext))
	for name := range a.ByContext {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContextAggregate represents aggregated metrics for the tests of one context
type ContextAggregate struct {
	Name             string  `json:"name"`
	TotalTests       int64   `json:"total_tests"`
	PassedCount      int64   `json:"passed_count"`
	FailedCount      int64   `json:"failed_count"`
	SkippedCount     int64   `json:"skipped_count"`
	HookFailureCount int64   `json:"hook_failure_count"`
	TotalDurationMs  float64 `json:"total_duration_ms"`
	AvgDurationMs    float64 `json:"avg_duration_ms"`
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	// Export exports metrics to the target destination
	Export(metrics *AggregateMetrics) error

	// ExportSingle exports a single test metric
	ExportSingle(metric *TestMetrics) error

	// Close closes the exporter and flushes any buffered data
	Close() error
}

// rootContext keys tests registered outside any labeled context.
const rootContext = "(root)"

// Collector collects metrics from test runs. Durations of executed tests are
// recorded in microseconds into an HDR histogram for percentiles.
type Collector struct {
	mu        sync.Mutex
	metrics   []*TestMetrics
	aggregate *AggregateMetrics
	histogram *hdrhistogram.Histogram
	exporters []Exporter
}

// NewCollector creates a new metrics collector
func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{
		metrics:   make([]*TestMetrics, 0),
		exporters: exporters,
		histogram: hdrhistogram.New(1, 60_000_000, 3),
		aggregate: &AggregateMetrics{
			ByContext: make(map[string]*ContextAggregate),
		},
	}
}

// FromRecord converts a reported record into a metric.
func FromRecord(rec output.Record, at time.Time) *TestMetrics {
	m := &TestMetrics{
		TestName:   rec.Name(),
		Context:    rec.Suite(),
		Kind:       rec.Kind.String(),
		Status:     string(rec.Status),
		DurationMs: millis(rec.Timing.Total),
		BeforeMs:   millis(rec.Timing.Before),
		AfterMs:    millis(rec.Timing.After),
		Timestamp:  at,
	}
	if m.Context == "" {
		m.Context = rootContext
	}
	if rec.Err != nil {
		m.Error = rec.Err.Error()
	}
	return m
}

// RecordResults records every test and failed hook of a finished run.
func (c *Collector) RecordResults(results *output.Results) {
	summary := results.Summary()

	c.mu.Lock()
	c.aggregate.RunID = summary.RunID
	c.aggregate.RunDurationMs = millis(summary.Duration)
	c.mu.Unlock()

	at := summary.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	for _, rec := range results.Records() {
		c.Record(FromRecord(rec, at))
	}
}

// Record records a test metric
func (c *Collector) Record(m *TestMetrics) {
	c.mu.Lock()
	c.metrics = append(c.metrics, m)
	c.updateAggregate(m)
	c.mu.Unlock()

	// Export to all exporters
	for _, exp := range c.exporters {
		_ = exp.ExportSingle(m)
	}
}

func (c *Collector) updateAggregate(m *TestMetrics) {
	ca, ok := c.aggregate.ByContext[m.Context]
	if !ok {
		ca = &ContextAggregate{Name: m.Context}
		c.aggregate.ByContext[m.Context] = ca
	}

	if m.isHook() {
		c.aggregate.HookFailureCount++
		ca.HookFailureCount++
		return
	}

	c.aggregate.TotalTests++
	ca.TotalTests++

	switch output.Status(m.Status) {
	case output.StatusPass:
		c.aggregate.PassedCount++
		ca.PassedCount++
	case output.StatusFail:
		c.aggregate.FailedCount++
		ca.FailedCount++
	case output.StatusSkip:
		c.aggregate.SkippedCount++
		ca.SkippedCount++
		// skipped tests never ran; keep them out of duration statistics
		return
	}

	executed := c.aggregate.PassedCount + c.aggregate.FailedCount
	c.aggregate.TotalDurationMs += m.DurationMs
	if executed == 1 {
		c.aggregate.MinDurationMs = m.DurationMs
		c.aggregate.MaxDurationMs = m.DurationMs
	} else {
		c.aggregate.MinDurationMs = min(c.aggregate.MinDurationMs, m.DurationMs)
		c.aggregate.MaxDurationMs = max(c.aggregate.MaxDurationMs, m.DurationMs)
	}
	c.aggregate.AvgDurationMs = c.aggregate.TotalDurationMs / float64(executed)

	_ = c.histogram.RecordValue(max(1, int64(m.DurationMs*1000)))
	c.aggregate.P50DurationMs = float64(c.histogram.ValueAtQuantile(50)) / 1000
	c.aggregate.P95DurationMs = float64(c.histogram.ValueAtQuantile(95)) / 1000
	c.aggregate.P99DurationMs = float64(c.histogram.ValueAtQuantile(99)) / 1000

	ca.TotalDurationMs += m.DurationMs
	ca.AvgDurationMs = ca.TotalDurationMs / float64(ca.PassedCount+ca.FailedCount)
}

// Metrics returns the recorded metrics in recording order.
func (c *Collector) Metrics() []*TestMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*TestMetrics, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// GetAggregate returns the aggregated metrics
func (c *Collector) GetAggregate() *AggregateMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aggregate
}

// Flush exports all aggregated metrics
func (c *Collector) Flush() error {
	aggregate := c.GetAggregate()
	for _, exp := range c.exporters {
		if err := exp.Export(aggregate); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all exporters
func (c *Collector) Close() error {
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			return err
		}
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
