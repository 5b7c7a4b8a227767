package telemetry_test

import (
	"context"
	"testing"

	"github.com/Darkness4/go-remux/telemetry"
	"github.com/Darkness4/go-remux/telemetry/metrics"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSetupOTELSDK(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()

	shutdown, err := telemetry.SetupOTELSDK(
		ctx,
		telemetry.WithService("go-remux-test", "dev"),
		telemetry.WithMetricReader(reader),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, shutdown(ctx))
		metrics.InitMetrics(otel.GetMeterProvider())
	}()

	metrics.InitMetrics(otel.GetMeterProvider())
	metrics.Remux.Runs.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	name, ok := rm.Resource.Set().Value("service.name")
	require.True(t, ok)
	require.Equal(t, "go-remux-test", name.AsString())

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "remux.runs" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			require.Equal(t, int64(2), sum.DataPoints[0].Value)
			found = true
		}
	}
	require.True(t, found)
}
