package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

var tracer = otel.Tracer("postgres-store")

// ReceiptStore writes finalized receipts with their items and report in one transaction.
type ReceiptStore struct {
	db     DB
	logger *slog.Logger
}

func NewReceiptStore(db DB, logger *slog.Logger) *ReceiptStore {
	return &ReceiptStore{db: db, logger: logger}
}

const insertReceiptSQL = `
	INSERT INTO receipts (id, source_id, shop_name, shop_canonical, purchase_date, strategy, status,
	                      total_expected, total_computed, discrepancy, needs_review, report, processed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const insertItemSQL = `
	INSERT INTO receipt_items (receipt_id, item_order, raw_name, quantity, unit, unit_price, total_price,
	                           discount, status, notes, synthetic, canonical_name, category, confidence,
	                           match_source, perishable)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

func (s *ReceiptStore) SaveReceipt(ctx context.Context, r *receipts.Receipt) (err error) {
	ctx, span := tracer.Start(ctx, "postgres.SaveReceipt")
	defer span.End()

	report, err := json.Marshal(r.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("Failed to rollback transaction", "error", rbErr, "receipt_id", r.ID)
		}
	}()

	_, err = tx.Exec(ctx, insertReceiptSQL,
		r.ID, nullable(r.SourceID), r.ShopName, r.ShopCanonical, r.PurchaseDate, r.Strategy,
		string(r.Report.Status), r.Report.TotalExpected, r.Report.TotalComputed, r.Report.Discrepancy,
		r.NeedsReview(), report, r.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	for i, item := range r.Items {
		if _, err = tx.Exec(ctx, insertItemSQL, itemArgs(r, i, item)...); err != nil {
			return fmt.Errorf("failed to insert receipt item %d: %w", i+1, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit receipt: %w", err)
	}

	s.logger.Debug("Receipt stored", "receipt_id", r.ID, "items_count", len(r.Items))
	return nil
}

func itemArgs(r *receipts.Receipt, i int, item receipts.ReceiptItem) []any {
	notes := append([]string{}, item.Notes...)

	var canonical, category, source *string
	var confidence *float64
	var perishable *bool
	if p := item.Product; p != nil {
		canonical, category = &p.CanonicalName, &p.Category
		src := string(p.Source)
		source = &src
		confidence, perishable = &p.Confidence, &p.Perishable
	}

	return []any{
		r.ID, i + 1, item.RawName, item.Quantity, item.Unit, item.UnitPrice, item.TotalPrice,
		item.Discount, string(item.Status), notes, item.Synthetic, canonical, category, confidence,
		source, perishable,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
