package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

// InstrumentedPool records the duration of every statement sent through it.
type InstrumentedPool struct {
	*pgxpool.Pool
	queryDuration api.Float64Histogram
}

func NewInstrumentedPool(provider api.MeterProvider, pool *pgxpool.Pool) (*InstrumentedPool, error) {
	meter := provider.Meter("db_queries")

	queryDuration, err := meter.Float64Histogram(
		"db.query_duration",
		api.WithDescription("Duration of database queries in milliseconds."),
		api.WithUnit("ms"),
	)
	if err != nil {
		slog.Error("Error creating query_duration histogram", slog.String("error", err.Error()))
		return nil, err
	}

	return &InstrumentedPool{
		Pool:          pool,
		queryDuration: queryDuration,
	}, nil
}

func (ip *InstrumentedPool) record(ctx context.Context, op string, start time.Time, err error) {
	ip.queryDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		api.WithAttributes(attribute.String("operation", op), attribute.Bool("error", err != nil)))
	if err != nil {
		DatabaseErrorsTotal.Add(ctx, 1, api.WithAttributes(attribute.String("operation", op)))
	}
}

func (ip *InstrumentedPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := ip.Pool.Exec(ctx, sql, args...)
	ip.record(ctx, "exec", start, err)
	return tag, err
}

func (ip *InstrumentedPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := ip.Pool.Query(ctx, sql, args...)
	ip.record(ctx, "query", start, err)
	return rows, err
}

func (ip *InstrumentedPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	start := time.Now()
	row := ip.Pool.QueryRow(ctx, sql, args...)
	ip.record(ctx, "query_row", start, nil)
	return row
}

func (ip *InstrumentedPool) Begin(ctx context.Context) (pgx.Tx, error) {
	start := time.Now()
	tx, err := ip.Pool.Begin(ctx)
	ip.record(ctx, "begin", start, err)
	return tx, err
}
