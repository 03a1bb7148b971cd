package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONExporter writes the run aggregate and every recorded metric as one
// JSON document
type JSONExporter struct {
	mu       sync.Mutex
	writer   io.Writer
	filePath string
	pretty   bool
	metrics  []*TestMetrics
}

// JSONOption is a functional option for JSONExporter
type JSONOption func(*JSONExporter)

// WithJSONWriter sets the output writer for JSON metrics
func WithJSONWriter(w io.Writer) JSONOption {
	return func(j *JSONExporter) {
		j.writer = w
	}
}

// WithJSONFile sets the output file for JSON metrics
func WithJSONFile(path string) JSONOption {
	return func(j *JSONExporter) {
		j.filePath = path
	}
}

// WithJSONPretty enables pretty-printed JSON output
func WithJSONPretty(pretty bool) JSONOption {
	return func(j *JSONExporter) {
		j.pretty = pretty
	}
}

// NewJSONExporter creates a new JSON metrics exporter
func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	j := &JSONExporter{
		metrics: make([]*TestMetrics, 0),
		pretty:  true,
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// JSONMetricsOutput is the complete JSON output structure
type JSONMetricsOutput struct {
	Metadata JSONMetadata      `json:"metadata"`
	Summary  *AggregateMetrics `json:"summary"`
	Tests    []*TestMetrics    `json:"tests"`
}

// JSONMetadata contains metadata about the metrics collection
type JSONMetadata struct {
	RunID       string `json:"run_id"`
	GeneratedAt string `json:"generated_at"`
	Success     bool   `json:"success"`
	Version     string `json:"version"`
}

// Export exports aggregated metrics to JSON
func (j *JSONExporter) Export(metrics *AggregateMetrics) error {
	j.mu.Lock()
	tests := make([]*TestMetrics, len(j.metrics))
	copy(tests, j.metrics)
	j.mu.Unlock()

	output := JSONMetricsOutput{
		Metadata: JSONMetadata{
			RunID:       metrics.RunID,
			GeneratedAt: time.Now().Format(time.RFC3339),
			Success:     metrics.Success(),
			Version:     "1.0",
		},
		Summary: metrics,
		Tests:   tests,
	}

	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(output, "", "  ")
	} else {
		data, err = json.Marshal(output)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if j.filePath != "" {
		if err := os.WriteFile(j.filePath, data, 0644); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	if j.writer != nil {
		if _, err := fmt.Fprintf(j.writer, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}

// ExportSingle records a single test metric
func (j *JSONExporter) ExportSingle(metric *TestMetrics) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.metrics = append(j.metrics, metric)
	return nil
}

// Close closes the JSON exporter
func (j *JSONExporter) Close() error {
	return nil
}
