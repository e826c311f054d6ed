package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// PrometheusExporter renders the integer counters collected by a
// ManualReader in Prometheus text exposition format.
type PrometheusExporter struct {
	reader *sdkmetric.ManualReader
}

func NewPrometheusExporter(reader *sdkmetric.ManualReader) *PrometheusExporter {
	return &PrometheusExporter{reader: reader}
}

// Handler serves the current counter values.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := p.Render(r.Context())
		if err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(body))
	})
}

// Render collects once and formats every Sum[int64] metric as a counter.
func (p *PrometheusExporter) Render(ctx context.Context) (string, error) {
	if p == nil || p.reader == nil {
		return "", nil
	}

	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			writeCounter(&b, m.Name, m.Description, sum.DataPoints)
		}
	}
	return b.String(), nil
}

func writeCounter(b *strings.Builder, name, help string, points []metricdata.DataPoint[int64]) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")

	for _, dp := range points {
		b.WriteString(name)
		if dp.Attributes.Len() > 0 {
			b.WriteByte('{')
			for i, kv := range dp.Attributes.ToSlice() {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(string(kv.Key))
				b.WriteString(`="`)
				b.WriteString(escapeLabel(kv.Value.Emit()))
				b.WriteByte('"')
			}
			b.WriteByte('}')
		}
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(dp.Value, 10))
		b.WriteByte('\n')
	}
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}
