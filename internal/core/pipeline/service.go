package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"

	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
	"github.com/PocketPalCo/receipts-service/pkg/telemetry"
)

// ErrEmptyReceipt is returned when a request carries neither text nor images.
var ErrEmptyReceipt = errors.New("receipt has no text and no images")

// ReceiptStore persists finalized receipts.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, receipt *receipts.Receipt) error
}

// Service handles receipt processing requests
type Service struct {
	pipeline *Pipeline
	store    ReceiptStore
	logger   *slog.Logger
}

// NewService wires a pipeline to an optional store.
func NewService(p *Pipeline, store ReceiptStore, logger *slog.Logger) *Service {
	return &Service{
		pipeline: p,
		store:    store,
		logger:   logger,
	}
}

// ProcessReceipt runs one receipt through the pipeline and stores it. A store
// failure is logged and the receipt is still returned.
func (s *Service) ProcessReceipt(ctx context.Context, in Input) (*receipts.Receipt, error) {
	ctx, span := tracer.Start(ctx, "receipts.ProcessReceipt")
	defer span.End()

	if strings.TrimSpace(in.RawText) == "" && len(in.Images) == 0 {
		return nil, ErrEmptyReceipt
	}

	start := time.Now()
	receipt := s.pipeline.Process(ctx, in)
	s.record(ctx, receipt, time.Since(start))
	s.save(ctx, receipt)

	return receipt, nil
}

// ProcessReceipts runs every input concurrently; result i belongs to inputs[i].
// Empty inputs yield a nil entry.
func (s *Service) ProcessReceipts(ctx context.Context, inputs []Input) []*receipts.Receipt {
	ctx, span := tracer.Start(ctx, "receipts.ProcessReceipts")
	defer span.End()
	span.SetAttributes(attribute.Int("receipts", len(inputs)))

	valid := make([]Input, 0, len(inputs))
	positions := make([]int, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.RawText) == "" && len(in.Images) == 0 {
			s.logger.Warn("Skipping empty receipt", "source_id", in.ID, "index", i)
			continue
		}
		valid = append(valid, in)
		positions = append(positions, i)
	}

	start := time.Now()
	processed := s.pipeline.ProcessMany(ctx, valid)
	elapsed := time.Since(start)

	out := make([]*receipts.Receipt, len(inputs))
	for j, receipt := range processed {
		s.record(ctx, receipt, elapsed)
		s.save(ctx, receipt)
		out[positions[j]] = receipt
	}

	s.logger.Info("Receipt batch processed",
		"receipts", len(inputs),
		"processed", len(processed),
		"duration_ms", elapsed.Milliseconds())
	return out
}

func (s *Service) save(ctx context.Context, receipt *receipts.Receipt) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveReceipt(ctx, receipt); err != nil {
		telemetry.ApplicationErrorsTotal.Add(ctx, 1, api.WithAttributes(
			attribute.String("component", "receipt_store"),
			attribute.String("type", "save"),
		))
		s.logger.Error("Failed to store receipt",
			"error", err,
			"receipt_id", receipt.ID,
			"source_id", receipt.SourceID)
	}
}

func (s *Service) record(ctx context.Context, receipt *receipts.Receipt, elapsed time.Duration) {
	attrs := api.WithAttributes(
		attribute.String("strategy", receipt.Strategy),
		attribute.String("status", string(receipt.Report.Status)),
	)
	telemetry.ReceiptsProcessedTotal.Add(ctx, 1, attrs)
	telemetry.ReceiptProcessingDuration.Record(ctx, elapsed.Seconds(), attrs)

	byStatus := map[receipts.VerificationStatus]int64{}
	for _, item := range receipt.Items {
		byStatus[item.Status]++
	}
	for status, n := range byStatus {
		telemetry.ReceiptItemsTotal.Add(ctx, n, api.WithAttributes(attribute.String("status", string(status))))
	}
	if n := byStatus[receipts.StatusCorrected]; n > 0 {
		telemetry.ReceiptCorrectionsTotal.Add(ctx, n)
	}

	if receipt.NeedsReview() {
		telemetry.ReceiptsNeedingReview.Add(ctx, 1)
		s.logger.Warn("Receipt needs manual review",
			"receipt_id", receipt.ID,
			"source_id", receipt.SourceID,
			"strategy", receipt.Strategy,
			"flags", receipt.Report.Flags,
			"discrepancy", receipt.Report.Discrepancy.StringFixed(2))
		return
	}

	s.logger.Info("Receipt processed successfully",
		"receipt_id", receipt.ID,
		"source_id", receipt.SourceID,
		"strategy", receipt.Strategy,
		"status", receipt.Report.Status,
		"items_count", len(receipt.Items),
		"total", receipt.Report.TotalComputed.StringFixed(2))
}
