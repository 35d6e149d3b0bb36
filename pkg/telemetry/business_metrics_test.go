package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestBusinessMetricsUsableBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		ReceiptsProcessedTotal.Add(context.Background(), 1)
		ReceiptProcessingDuration.Record(context.Background(), 0.5)
	})
}

func TestInitBusinessMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		require.NoError(t, bindBusinessMetrics(noop.NewMeterProvider().Meter("business")))
	})

	require.NoError(t, InitBusinessMetrics(provider))

	ctx := context.Background()
	ReceiptsProcessedTotal.Add(ctx, 2, api.WithAttributes(attribute.String("strategy", "lidl")))
	ReceiptsNeedingReview.Add(ctx, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), sums["receipts.processed.total"])
	assert.Equal(t, int64(1), sums["receipts.review.total"])
}
