package metrics

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

const namespace = "control"

// PrometheusExporter exposes run metrics in the Prometheus text format, as a
// node_exporter textfile, on a writer, or over HTTP.
type PrometheusExporter struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	writer   io.Writer
	filePath string
	server   *http.Server

	tests        *prometheus.GaugeVec
	contextTests *prometheus.GaugeVec
	duration     *prometheus.GaugeVec
	hookFailures prometheus.Gauge
	runDuration  prometheus.Gauge
	success      prometheus.Gauge
	lastRun      prometheus.Gauge
	executed     *prometheus.CounterVec
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusWriter sets the output writer for Prometheus metrics
func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusFile writes metrics to path, atomically, on every Export.
func WithPrometheusFile(path string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.filePath = path
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter backed by a
// private registry.
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	p := &PrometheusExporter{
		registry: registry,
		tests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tests",
			Help:      "Number of tests in the last run by status",
		}, []string{"status"}),
		contextTests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "context_tests",
			Help:      "Number of tests in the last run by context and status",
		}, []string{"context", "status"}),
		duration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_duration_ms",
			Help:      "Duration of executed tests in the last run, in milliseconds",
		}, []string{"quantile"}),
		hookFailures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hook_failures",
			Help:      "Number of failed lifecycle hooks in the last run",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_ms",
			Help:      "Wall time of the last run, in milliseconds",
		}),
		success: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last run had no failures, 0 otherwise",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run was exported",
		}),
		executed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_reported_total",
			Help:      "Tests and failed hooks reported since the exporter started",
		}, []string{"kind", "status"}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Registry returns the registry the exporter's collectors live in.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// ListenAndServe serves /metrics on addr until Close and returns the bound
// address.
func (p *PrometheusExporter) ListenAndServe(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))

	p.mu.Lock()
	p.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := p.server
	p.mu.Unlock()

	go func() {
		_ = server.Serve(ln)
	}()

	return ln.Addr(), nil
}

// Export replaces the last-run gauges with metrics and writes them out
func (p *PrometheusExporter) Export(metrics *AggregateMetrics) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tests.WithLabelValues("pass").Set(float64(metrics.PassedCount))
	p.tests.WithLabelValues("fail").Set(float64(metrics.FailedCount))
	p.tests.WithLabelValues("skip").Set(float64(metrics.SkippedCount))
	p.hookFailures.Set(float64(metrics.HookFailureCount))
	p.runDuration.Set(metrics.RunDurationMs)
	p.lastRun.SetToCurrentTime()

	if metrics.Success() {
		p.success.Set(1)
	} else {
		p.success.Set(0)
	}

	p.duration.Reset()
	if metrics.PassedCount+metrics.FailedCount > 0 {
		p.duration.WithLabelValues("min").Set(metrics.MinDurationMs)
		p.duration.WithLabelValues("max").Set(metrics.MaxDurationMs)
		p.duration.WithLabelValues("avg").Set(metrics.AvgDurationMs)
		p.duration.WithLabelValues("0.5").Set(metrics.P50DurationMs)
		p.duration.WithLabelValues("0.95").Set(metrics.P95DurationMs)
		p.duration.WithLabelValues("0.99").Set(metrics.P99DurationMs)
	}

	// contexts from a previous run must not linger
	p.contextTests.Reset()
	for _, name := range metrics.ContextNames() {
		ca := metrics.ByContext[name]
		p.contextTests.WithLabelValues(name, "pass").Set(float64(ca.PassedCount))
		p.contextTests.WithLabelValues(name, "fail").Set(float64(ca.FailedCount))
		p.contextTests.WithLabelValues(name, "skip").Set(float64(ca.SkippedCount))
	}

	if p.filePath != "" {
		if err := prometheus.WriteToTextfile(p.filePath, p.registry); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	if p.writer != nil {
		if err := p.writeMetrics(p.writer); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}

func (p *PrometheusExporter) writeMetrics(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// ExportSingle counts a single reported test
func (p *PrometheusExporter) ExportSingle(metric *TestMetrics) error {
	p.executed.WithLabelValues(metric.Kind, metric.Status).Inc()
	return nil
}

// Close shuts down the HTTP endpoint, if one was started
func (p *PrometheusExporter) Close() error {
	p.mu.Lock()
	server := p.server
	p.server = nil
	p.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
