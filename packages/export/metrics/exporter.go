package metrics

import (
	"fmt"
	"io"
)

// Formats lists the accepted exporter names.
var Formats = []string{"json", "prometheus", "datadog"}

// NewExporter builds the exporter for format. file is written on every
// Export; when empty, json and prometheus output goes to w instead.
func NewExporter(format, file string, w io.Writer) (Exporter, error) {
	switch format {
	case "json":
		if file != "" {
			return NewJSONExporter(WithJSONFile(file)), nil
		}
		return NewJSONExporter(WithJSONWriter(w)), nil
	case "prometheus":
		if file != "" {
			return NewPrometheusExporter(WithPrometheusFile(file)), nil
		}
		return NewPrometheusExporter(WithPrometheusWriter(w)), nil
	case "datadog":
		return NewDataDogExporter(), nil
	default:
		return nil, fmt.Errorf("unknown metrics format %q (expected json, prometheus or datadog)", format)
	}
}
