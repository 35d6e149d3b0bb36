package telemetry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitTelemetry starts runtime instrumentation, binds the business metrics and,
// when pool is not nil, exports its connection statistics.
func InitTelemetry(provider *metric.MeterProvider, pool *pgxpool.Pool) error {
	if err := runtime.Start(runtime.WithMeterProvider(provider)); err != nil {
		return fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	if err := InitBusinessMetrics(provider); err != nil {
		return fmt.Errorf("failed to initialize business metrics: %w", err)
	}

	if pool == nil {
		return nil
	}

	meter := provider.Meter("db_pool")
	acquired, err := meter.Int64ObservableGauge("db.pool.acquired_connections",
		api.WithDescription("Connections currently in use"))
	if err != nil {
		return err
	}
	idle, err := meter.Int64ObservableGauge("db.pool.idle_connections",
		api.WithDescription("Idle connections in the pool"))
	if err != nil {
		return err
	}
	total, err := meter.Int64ObservableGauge("db.pool.total_connections",
		api.WithDescription("All connections in the pool"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o api.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(acquired, int64(stat.AcquiredConns()))
		o.ObserveInt64(idle, int64(stat.IdleConns()))
		o.ObserveInt64(total, int64(stat.TotalConns()))
		return nil
	}, acquired, idle, total)
	if err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}

	return nil
}
