package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

func TestItemArgs(t *testing.T) {
	r := &receipts.Receipt{ID: uuid.New()}
	item := receipts.ReceiptItem{
		RawName:    "Mleko",
		Quantity:   decimal.NewFromInt(2),
		UnitPrice:  decimal.NewNullDecimal(decimal.RequireFromString("3.49")),
		TotalPrice: decimal.RequireFromString("6.98"),
		Discount:   decimal.Zero,
		Status:     receipts.StatusVerified,
		Product: &receipts.ProductMatch{
			CanonicalName: "Mleko",
			Category:      "Nabiał",
			Confidence:    1,
			Source:        receipts.SourceAlias,
			Perishable:    true,
		},
	}

	args := itemArgs(r, 0, item)

	require.Len(t, args, 16)
	assert.Equal(t, r.ID, args[0])
	assert.Equal(t, 1, args[1])
	assert.Equal(t, "verified", args[8])
	assert.Equal(t, []string{}, args[9], "notes are never NULL")
	assert.Equal(t, "Mleko", *args[11].(*string))
	assert.Equal(t, "alias", *args[14].(*string))
	assert.True(t, *args[15].(*bool))
}

func TestItemArgsWithoutProduct(t *testing.T) {
	r := &receipts.Receipt{ID: uuid.New()}
	item := receipts.ReceiptItem{RawName: receipts.AdjustmentItemName, Synthetic: true, Notes: []string{"gap"}}

	args := itemArgs(r, 4, item)

	assert.Equal(t, 5, args[1])
	assert.Equal(t, []string{"gap"}, args[9])
	assert.True(t, args[10].(bool))
	assert.Nil(t, args[11].(*string))
	assert.Nil(t, args[13].(*float64))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "scan-1", *nullable("scan-1"))
}
