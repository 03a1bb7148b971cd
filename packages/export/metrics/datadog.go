package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// DataDogExporter submits run metrics to the DataDog series API
type DataDogExporter struct {
	mu       sync.Mutex
	apiKey   string
	site     string // e.g., "datadoghq.com", "datadoghq.eu"
	endpoint string
	tags     []string
	prefix   string
	client   *http.Client
	pending  []datadogMetric
}

// DataDogOption is a functional option for DataDogExporter
type DataDogOption func(*DataDogExporter)

// WithDataDogAPIKey sets the DataDog API key
func WithDataDogAPIKey(apiKey string) DataDogOption {
	return func(d *DataDogExporter) {
		d.apiKey = apiKey
	}
}

// WithDataDogSite sets the DataDog site (e.g., "datadoghq.com", "datadoghq.eu")
func WithDataDogSite(site string) DataDogOption {
	return func(d *DataDogExporter) {
		d.site = site
	}
}

// WithDataDogEndpoint overrides the series URL derived from the site
func WithDataDogEndpoint(url string) DataDogOption {
	return func(d *DataDogExporter) {
		d.endpoint = url
	}
}

// WithDataDogTags sets additional tags for all metrics
func WithDataDogTags(tags []string) DataDogOption {
	return func(d *DataDogExporter) {
		d.tags = tags
	}
}

// WithDataDogPrefix sets a prefix for metric names
func WithDataDogPrefix(prefix string) DataDogOption {
	return func(d *DataDogExporter) {
		d.prefix = prefix
	}
}

// NewDataDogExporter creates a new DataDog metrics exporter
func NewDataDogExporter(opts ...DataDogOption) *DataDogExporter {
	d := &DataDogExporter{
		site:   "datadoghq.com",
		prefix: "control",
		client: &http.Client{Timeout: 10 * time.Second},
		tags:   make([]string, 0),
	}

	for _, opt := range opts {
		opt(d)
	}

	// Try to get API key from environment if not set
	if d.apiKey == "" {
		d.apiKey = os.Getenv("DD_API_KEY")
	}
	if d.endpoint == "" {
		d.endpoint = fmt.Sprintf("https://api.%s/api/v1/series", d.site)
	}

	return d
}

// datadogMetric represents a metric in DataDog format
type datadogMetric struct {
	Metric string   `json:"metric"`
	Type   string   `json:"type"`
	Points [][]any  `json:"points"`
	Tags   []string `json:"tags,omitempty"`
}

// datadogPayload is the payload sent to DataDog
type datadogPayload struct {
	Series []datadogMetric `json:"series"`
}

func (d *DataDogExporter) point(name, kind string, at time.Time, value float64, tags ...string) datadogMetric {
	return datadogMetric{
		Metric: d.metricName(name),
		Type:   kind,
		Points: [][]any{{float64(at.Unix()), value}},
		Tags:   append(tags, d.tags...),
	}
}

// Export submits the aggregate together with the buffered per-test points
func (d *DataDogExporter) Export(metrics *AggregateMetrics) error {
	if d.apiKey == "" {
		return fmt.Errorf("DataDog API key not configured")
	}

	now := time.Now()
	run := fmt.Sprintf("run_id:%s", metrics.RunID)

	series := []datadogMetric{
		d.point("tests.total", "count", now, float64(metrics.TotalTests), run),
		d.point("tests.passed", "count", now, float64(metrics.PassedCount), run),
		d.point("tests.failed", "count", now, float64(metrics.FailedCount), run),
		d.point("tests.skipped", "count", now, float64(metrics.SkippedCount), run),
		d.point("hooks.failed", "count", now, float64(metrics.HookFailureCount), run),
		d.point("run.duration", "gauge", now, metrics.RunDurationMs, run),
	}

	if metrics.PassedCount+metrics.FailedCount > 0 {
		series = append(series,
			d.point("duration.avg", "gauge", now, metrics.AvgDurationMs, run),
			d.point("duration.min", "gauge", now, metrics.MinDurationMs, run),
			d.point("duration.max", "gauge", now, metrics.MaxDurationMs, run),
			d.point("duration.p50", "gauge", now, metrics.P50DurationMs, run),
			d.point("duration.p95", "gauge", now, metrics.P95DurationMs, run),
			d.point("duration.p99", "gauge", now, metrics.P99DurationMs, run),
		)
	}

	for _, name := range metrics.ContextNames() {
		ca := metrics.ByContext[name]
		context := fmt.Sprintf("context:%s", name)
		series = append(series,
			d.point("context.tests", "count", now, float64(ca.TotalTests), run, context),
			d.point("context.failed", "count", now, float64(ca.FailedCount), run, context),
			d.point("context.duration.avg", "gauge", now, ca.AvgDurationMs, run, context),
		)
	}

	d.mu.Lock()
	series = append(series, d.pending...)
	d.pending = nil
	d.mu.Unlock()

	return d.sendMetrics(series)
}

// ExportSingle buffers a per-test duration point until the next Export
func (d *DataDogExporter) ExportSingle(metric *TestMetrics) error {
	tags := []string{
		fmt.Sprintf("test:%s", metric.TestName),
		fmt.Sprintf("context:%s", metric.Context),
		fmt.Sprintf("kind:%s", metric.Kind),
		fmt.Sprintf("result:%s", metric.Status),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, d.point("test.duration", "gauge", metric.Timestamp, metric.DurationMs, tags...))
	return nil
}

func (d *DataDogExporter) metricName(name string) string {
	return d.prefix + "." + name
}

func (d *DataDogExporter) sendMetrics(series []datadogMetric) error {
	payload := datadogPayload{Series: series}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	req, err := http.NewRequest("POST", d.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("DataDog API returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close closes the DataDog exporter
func (d *DataDogExporter) Close() error {
	return nil
}
