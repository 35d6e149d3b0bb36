package extraction

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

// ToItems converts the model's guesses into working items. Unreadable totals flag
// the item; unreadable unit prices are left missing for the verifier to derive.
// The printed line amount is kept in Raw.TotalPrice; TotalPrice is net of any
// discount printed on the same line.
func ToItems(raw receipts.RawExtraction) []receipts.ReceiptItem {
	items := make([]receipts.ReceiptItem, 0, len(raw.Items))
	for _, guess := range raw.Items {
		items = append(items, toItem(guess))
	}
	return items
}

func toItem(g receipts.RawItemGuess) receipts.ReceiptItem {
	item := receipts.ReceiptItem{
		RawName:  normalize.CollapseWhitespace(g.RawName),
		Quantity: decimal.NewFromInt(1),
		Discount: decimal.Zero,
		Status:   receipts.StatusUnverified,
		Raw:      receipts.RawValues{Quantity: "1"},
	}

	if qty, unit, ok := normalize.ParseQuantity(g.QuantityText); ok {
		item.Quantity = qty
		item.Unit = unit
		item.Raw.Quantity = qty.String()
	} else if g.QuantityText != "" {
		item.AddNote(fmt.Sprintf("unreadable quantity %q, assumed 1", g.QuantityText))
	}

	if s, ok := normalize.CanonicalNumber(g.UnitPriceText); ok {
		item.UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString(s))
		item.Raw.UnitPrice = s
	}

	if s, ok := normalize.CanonicalNumber(g.TotalPriceText); ok {
		item.TotalPrice = decimal.RequireFromString(s)
		item.Raw.TotalPrice = s
	} else {
		item.Flag(fmt.Sprintf("unreadable total price %q", g.TotalPriceText))
	}

	if g.DiscountText != nil {
		if d, ok := normalize.ParseDecimal(*g.DiscountText); ok && !d.IsZero() {
			item.Discount = d.Abs()
			item.TotalPrice = item.TotalPrice.Sub(item.Discount)
		}
	}

	return item
}
