package state

import (
	"context"

	"github.com/Darkness4/go-remux/telemetry/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// setStateMetrics moves one job from the gauge of prev to the gauge of next.
func setStateMetrics(
	ctx context.Context,
	prev JobStatus,
	next JobStatus,
	labels map[string]string,
) {
	if prev == next {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(labels)+1)
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	m := metrics.Watcher.Jobs
	if prev != JobStatusUnspecified {
		m.Add(
			ctx,
			-1,
			metric.WithAttributes(append(attrs, attribute.String("state", prev.String()))...),
		)
	}
	m.Add(
		ctx,
		1,
		metric.WithAttributes(append(attrs, attribute.String("state", next.String()))...),
	)
}
