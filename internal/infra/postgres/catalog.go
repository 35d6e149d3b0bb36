package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/PocketPalCo/receipts-service/internal/core/products"
)

// CatalogRepository reads and maintains the product catalog table.
type CatalogRepository struct {
	db     DB
	logger *slog.Logger
}

func NewCatalogRepository(db DB, logger *slog.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// GetAllProducts retrieves all catalog products for the knowledge base
func (r *CatalogRepository) GetAllProducts(ctx context.Context) ([]*products.CatalogProduct, error) {
	ctx, span := tracer.Start(ctx, "catalog.GetAllProducts")
	defer span.End()

	query := `
		SELECT id, canonical_name, category, perishable, shelf_life_days, aliases, created_at, updated_at
		FROM catalog_products
		ORDER BY category, canonical_name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query catalog products: %w", err)
	}
	defer rows.Close()

	var result []*products.CatalogProduct
	for rows.Next() {
		var p products.CatalogProduct
		err := rows.Scan(
			&p.ID,
			&p.CanonicalName,
			&p.Category,
			&p.Perishable,
			&p.ShelfLifeDays,
			&p.Aliases,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan catalog product row", "error", err)
			continue
		}
		result = append(result, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog products: %w", err)
	}

	r.logger.Debug("Retrieved catalog products from database", "count", len(result))
	return result, nil
}

// UpsertProduct inserts a product or replaces the category and aliases of an existing one.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p *products.CatalogProduct) error {
	ctx, span := tracer.Start(ctx, "catalog.UpsertProduct")
	defer span.End()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	aliases := append([]string{}, p.Aliases...)

	query := `
		INSERT INTO catalog_products (id, canonical_name, category, perishable, shelf_life_days, aliases)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (canonical_name) DO UPDATE
		SET category = EXCLUDED.category,
		    perishable = EXCLUDED.perishable,
		    shelf_life_days = EXCLUDED.shelf_life_days,
		    aliases = EXCLUDED.aliases,
		    updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query, p.ID, p.CanonicalName, p.Category, p.Perishable, p.ShelfLifeDays, aliases)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert catalog product: %w", err)
	}
	return nil
}
