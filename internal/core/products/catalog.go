package products

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PocketPalCo/receipts-service/internal/core/knowledge"
)

// CatalogProduct is a product row maintained outside the built-in knowledge base.
type CatalogProduct struct {
	ID            uuid.UUID `json:"id" db:"id"`
	CanonicalName string    `json:"canonical_name" db:"canonical_name"`
	Category      string    `json:"category" db:"category"`
	Perishable    bool      `json:"perishable" db:"perishable"`
	ShelfLifeDays int       `json:"shelf_life_days" db:"shelf_life_days"`
	Aliases       []string  `json:"aliases" db:"aliases"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CatalogSource lists catalog products.
type CatalogSource interface {
	GetAllProducts(ctx context.Context) ([]*CatalogProduct, error)
}

// LoadCatalog registers every catalog product and its aliases in kb. Products
// whose category is outside the vocabulary are filed under knowledge.OtherCategory.
func LoadCatalog(ctx context.Context, kb *knowledge.Base, src CatalogSource) (int, error) {
	ctx, span := tracer.Start(ctx, "products.LoadCatalog")
	defer span.End()

	rows, err := src.GetAllProducts(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to load product catalog: %w", err)
	}

	loaded := 0
	for _, row := range rows {
		if row == nil || row.CanonicalName == "" {
			continue
		}
		category, ok := kb.CanonicalCategory(row.Category)
		if !ok {
			category = knowledge.OtherCategory
		}
		kb.AddProduct(knowledge.Product{
			CanonicalName: row.CanonicalName,
			Category:      category,
			Perishable:    row.Perishable,
			ShelfLifeDays: row.ShelfLifeDays,
		}, row.Aliases...)
		loaded++
	}
	return loaded, nil
}
