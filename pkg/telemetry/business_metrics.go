package telemetry

import (
	"log/slog"

	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Business metrics for receipt processing. They record into a no-op provider
// until InitBusinessMetrics binds them to a real one.
var (
	ReceiptsProcessedTotal    api.Int64Counter
	ReceiptItemsTotal         api.Int64Counter
	ReceiptsNeedingReview     api.Int64Counter
	ReceiptCorrectionsTotal   api.Int64Counter
	ReceiptProcessingDuration api.Float64Histogram

	// Error tracking
	ApplicationErrorsTotal api.Int64Counter
	DatabaseErrorsTotal    api.Int64Counter
)

func init() {
	if err := bindBusinessMetrics(noop.NewMeterProvider().Meter("business")); err != nil {
		panic(err)
	}
}

// InitBusinessMetrics binds all business-level metrics to provider.
func InitBusinessMetrics(provider api.MeterProvider) error {
	if err := bindBusinessMetrics(provider.Meter("business")); err != nil {
		return err
	}
	slog.Info("Business metrics initialized successfully")
	return nil
}

func bindBusinessMetrics(meter api.Meter) error {
	var err error

	ReceiptsProcessedTotal, err = meter.Int64Counter("receipts.processed.total",
		api.WithDescription("Total receipts processed by strategy and report status"))
	if err != nil {
		return err
	}

	ReceiptItemsTotal, err = meter.Int64Counter("receipts.items.total",
		api.WithDescription("Total receipt line items by verification status"))
	if err != nil {
		return err
	}

	ReceiptsNeedingReview, err = meter.Int64Counter("receipts.review.total",
		api.WithDescription("Total receipts that need manual review"))
	if err != nil {
		return err
	}

	ReceiptCorrectionsTotal, err = meter.Int64Counter("receipts.corrections.total",
		api.WithDescription("Total automatic corrections applied to line items"))
	if err != nil {
		return err
	}

	ReceiptProcessingDuration, err = meter.Float64Histogram("receipts.processing.duration",
		api.WithDescription("Duration of receipt processing in seconds"),
		api.WithUnit("s"))
	if err != nil {
		return err
	}

	// Error Metrics
	ApplicationErrorsTotal, err = meter.Int64Counter("application.errors.total",
		api.WithDescription("Total application errors by component and type"))
	if err != nil {
		return err
	}

	DatabaseErrorsTotal, err = meter.Int64Counter("database.errors.total",
		api.WithDescription("Total database errors by operation and type"))
	if err != nil {
		return err
	}

	return nil
}
