package server

import (
	"context"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// dumpMetrics logs every counter collected since start-up, one line per
// data point.
func (app *App) dumpMetrics(ctx context.Context) {
	var rm metricdata.ResourceMetrics
	if err := app.metricsReader.Collect(ctx, &rm); err != nil {
		app.logger.Warn(ctx, "collecting metrics failed", "error", err)
		return
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				args := []any{"metric", m.Name, "value", dp.Value}
				for _, kv := range dp.Attributes.ToSlice() {
					args = append(args, string(kv.Key), kv.Value.Emit())
				}
				app.logger.Info(ctx, "metric", args...)
			}
		}
	}
}
