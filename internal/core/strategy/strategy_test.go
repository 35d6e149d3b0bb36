package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PocketPalCo/receipts-service/internal/core/knowledge"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

func line(name, total string) receipts.ReceiptItem {
	return receipts.ReceiptItem{
		RawName:    name,
		Quantity:   decimal.NewFromInt(1),
		TotalPrice: decimal.RequireFromString(total),
		Discount:   decimal.Zero,
		Status:     receipts.StatusUnverified,
		Raw:        receipts.RawValues{Quantity: "1", TotalPrice: total},
	}
}

func strPtr(s string) *string { return &s }

func TestSelect(t *testing.T) {
	r := NewResolver(knowledge.Default())

	tests := []struct {
		guess *string
		want  Kind
	}{
		{strPtr("LIDL sp. z o.o. sp.k."), KindLidl},
		{strPtr("lidl"), KindLidl},
		{strPtr("Jeronimo Martins Polska S.A."), KindBiedronka},
		{strPtr("BIEDRONKA 3421"), KindBiedronka},
		{strPtr("Auchan Hipermarket"), KindAuchan},
		{strPtr("Kaufland"), KindGeneric},
		{strPtr(""), KindGeneric},
		{nil, KindGeneric},
	}
	for _, tt := range tests {
		name := "<nil>"
		if tt.guess != nil {
			name = *tt.guess
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Select(tt.guess).Kind)
		})
	}
}

func TestLidlMergesRabatIntoPrecedingItem(t *testing.T) {
	items := []receipts.ReceiptItem{
		line("Mleko", "4.50"),
		line("RABAT", "-1.00"),
	}

	out := Lidl.PostProcess(items)

	require.Len(t, out, 1)
	assert.Equal(t, "Mleko", out[0].RawName)
	assert.Equal(t, "3.50", out[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "1.00", out[0].Discount.StringFixed(2))
	assert.Len(t, items, 2, "input is not modified")
	assert.Equal(t, "4.50", items[0].TotalPrice.StringFixed(2))
}

func TestConsecutiveDiscountsAccumulate(t *testing.T) {
	out := Biedronka.PostProcess([]receipts.ReceiptItem{
		line("Ser Gouda", "12.99"),
		line("Rabat", "-2.00"),
		line("Moja Biedronka", "1.50"),
		line("Chleb", "4.99"),
		line("OPUST", "-0.99"),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "3.50", out[0].Discount.StringFixed(2))
	assert.Equal(t, "9.49", out[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "0.99", out[1].Discount.StringFixed(2))
	assert.Equal(t, "4.00", out[1].TotalPrice.StringFixed(2))
}

func TestLeadingDiscountIsFlagged(t *testing.T) {
	out := Auchan.PostProcess([]receipts.ReceiptItem{
		line("RABAT", "-1.00"),
		line("Woda", "2.00"),
	})

	require.Len(t, out, 2)
	assert.Equal(t, receipts.StatusFlagged, out[0].Status)
	assert.Equal(t, "2.00", out[1].TotalPrice.StringFixed(2))
	assert.True(t, out[1].Discount.IsZero())
}

func TestGarbageIsStripped(t *testing.T) {
	for _, s := range []Strategy{Generic, Lidl, Biedronka, Auchan} {
		t.Run(string(s.Kind), func(t *testing.T) {
			out := s.PostProcess([]receipts.ReceiptItem{
				line("PARAGON FISKALNY", "0"),
				line("Jogurt", "2.49"),
				line("SUMA PLN", "2.49"),
				line("PTU A 23%", "0.47"),
				line("Sprzedaż opodatkowana A", "2.49"),
				line("----------", "0"),
				line("Gotówka", "10.00"),
				line("Reszta", "7.51"),
			})
			require.Len(t, out, 1)
			assert.Equal(t, "Jogurt", out[0].RawName)
		})
	}
}

func TestGenericDoesNotMergeDiscounts(t *testing.T) {
	out := Generic.PostProcess([]receipts.ReceiptItem{
		line("Mleko", "4.50"),
		line("RABAT", "-1.00"),
	})

	assert.Len(t, out, 2)
}

func TestWeightedGoodsAreSplit(t *testing.T) {
	out := Lidl.PostProcess([]receipts.ReceiptItem{
		line("BANANY 0,536 kg x 5,99", "3.21"),
		line("JOGURT 3 szt x 2,49", "7.47"),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "BANANY", out[0].RawName)
	assert.Equal(t, "0.536", out[0].Quantity.String())
	require.NotNil(t, out[0].Unit)
	assert.Equal(t, "kg", *out[0].Unit)
	assert.Equal(t, "5.99", out[0].UnitPrice.Decimal.StringFixed(2))

	assert.Equal(t, "JOGURT", out[1].RawName)
	assert.Equal(t, "3", out[1].Quantity.String())
	require.NotNil(t, out[1].Unit)
	assert.Equal(t, "szt", *out[1].Unit)
}

func TestBiedronkaStripsTaxClass(t *testing.T) {
	out := Biedronka.PostProcess([]receipts.ReceiptItem{line("*MLEKO 3,2% 1L C", "3.49")})

	require.Len(t, out, 1)
	assert.Equal(t, "MLEKO 3,2% 1L", out[0].RawName)
}

func TestSyntheticItemsAreUntouched(t *testing.T) {
	adj := line(receipts.AdjustmentItemName, "-0.50")
	adj.Synthetic = true

	out := Lidl.PostProcess([]receipts.ReceiptItem{line("Chleb", "5.00"), adj})

	require.Len(t, out, 2)
	assert.True(t, out[0].Discount.IsZero())
}

func TestPostProcessIsIdempotentAndNeverGrows(t *testing.T) {
	inputs := [][]receipts.ReceiptItem{
		{line("Mleko", "4.50"), line("RABAT", "-1.00")},
		{line("RABAT", "-1.00"), line("Woda", "2.00"), line("Rabat", "-3.00"), line("Kupon Lidl Plus", "-0.50")},
		{line("SUMA", "10"), line("BANANY 1,2 kg x 4,99", "5.99"), line("Upust", "-6.50")},
		{line("*SER C B*", "9.99"), line("opust", "-10.00"), line("Mleko", "3.00")},
		{line("JOGURT* 2 x 2,49", "4.98")},
		{line("SER A 2 x 3,99", "7.98")},
		{line("#MASLO* B 2 szt x 6,99 C", "13.98")},
		{},
	}

	for _, s := range []Strategy{Generic, Lidl, Biedronka, Auchan} {
		for i, in := range inputs {
			once := s.PostProcess(in)
			twice := s.PostProcess(once)

			assert.LessOrEqual(t, len(once), len(in), "%s input %d", s.Kind, i)
			assert.Equal(t, once, twice, "%s input %d", s.Kind, i)
		}
	}
}

func TestMultiplierSplitCleansUncoveredName(t *testing.T) {
	lidl := Lidl.PostProcess([]receipts.ReceiptItem{line("JOGURT* 2 x 2,49", "4.98")})
	require.Len(t, lidl, 1)
	assert.Equal(t, "JOGURT", lidl[0].RawName)
	assert.Equal(t, "2", lidl[0].Quantity.String())

	biedronka := Biedronka.PostProcess([]receipts.ReceiptItem{line("SER A 2 x 3,99", "7.98")})
	require.Len(t, biedronka, 1)
	assert.Equal(t, "SER", biedronka[0].RawName)
	assert.Equal(t, "3.99", biedronka[0].UnitPrice.Decimal.StringFixed(2))
}
