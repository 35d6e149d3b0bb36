package verify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

func item(name, qty, unit, total string) receipts.ReceiptItem {
	it := receipts.ReceiptItem{
		RawName:    name,
		Quantity:   decimal.RequireFromString(qty),
		TotalPrice: decimal.RequireFromString(total),
		Discount:   decimal.Zero,
		Status:     receipts.StatusUnverified,
		Raw:        receipts.RawValues{Quantity: qty, UnitPrice: unit, TotalPrice: total},
	}
	if unit != "" {
		it.UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString(unit))
	}
	return it
}

func strPtr(s string) *string { return &s }

func newVerifier() *Verifier {
	return New(DefaultTolerance, DefaultTolerance)
}

func TestVerifyItemConsistent(t *testing.T) {
	it := item("Mleko", "2", "3.49", "6.98")
	newVerifier().VerifyItem(&it)

	assert.Equal(t, receipts.StatusVerified, it.Status)
	assert.Empty(t, it.Notes)
}

func TestVerifyItemWithinTolerance(t *testing.T) {
	it := item("Bułka", "3", "0.33", "1.00")
	newVerifier().VerifyItem(&it)

	assert.Equal(t, receipts.StatusVerified, it.Status)
	assert.Equal(t, "1.00", it.TotalPrice.StringFixed(2))
}

func TestVerifyItemDecimalShiftOnTotal(t *testing.T) {
	it := item("Chleb", "1", "5.00", "50.00")
	newVerifier().VerifyItem(&it)

	assert.Equal(t, receipts.StatusCorrected, it.Status)
	assert.Equal(t, "5.00", it.TotalPrice.StringFixed(2))
	require.Len(t, it.Notes, 1)
	assert.Contains(t, it.Notes[0], "decimal shift /10")
}

func TestVerifyItemTranspositionOnUnitPrice(t *testing.T) {
	it := item("Masło", "2", "1.25", "4.30")
	newVerifier().VerifyItem(&it)

	assert.Equal(t, receipts.StatusCorrected, it.Status)
	assert.Equal(t, "2.15", it.UnitPrice.Decimal.StringFixed(2))
	assert.Equal(t, "4.30", it.TotalPrice.StringFixed(2))
	require.Len(t, it.Notes, 1)
	assert.Contains(t, it.Notes[0], "digit transposition")
}

func TestVerifyItemDerivesMissingUnitPrice(t *testing.T) {
	it := item("Jabłka", "2", "", "5.00")
	newVerifier().VerifyItem(&it)

	assert.Equal(t, receipts.StatusCorrected, it.Status)
	require.True(t, it.UnitPrice.Valid)
	assert.Equal(t, "2.50", it.UnitPrice.Decimal.StringFixed(2))
}

func TestVerifyItemDerivesUnitPriceIncludingDiscount(t *testing.T) {
	it := item("Ser", "1", "", "10.00")
	it.Discount = decimal.RequireFromString("2.00")
	it.TotalPrice = decimal.RequireFromString("8.00")
	newVerifier().VerifyItem(&it)

	require.True(t, it.UnitPrice.Valid)
	assert.Equal(t, "10.00", it.UnitPrice.Decimal.StringFixed(2))
}

func TestVerifyItemDerivesUnitPriceForLargeQuantity(t *testing.T) {
	it := item("SER GOUDA", "700", "", "4.99")
	it.Unit = strPtr("g")
	newVerifier().VerifyItem(&it)

	assert.Equal(t, receipts.StatusCorrected, it.Status)
	require.True(t, it.UnitPrice.Valid)
	gap := it.Quantity.Mul(it.UnitPrice.Decimal).Sub(it.Discount).Sub(it.TotalPrice).Abs()
	assert.True(t, gap.LessThanOrEqual(DefaultTolerance), "gap %s", gap)
}

func TestVerifyItemFlagsUnderivableUnitPrice(t *testing.T) {
	it := item("Woda", "3", "", "1.00")
	New(decimal.Zero, decimal.Zero).VerifyItem(&it)

	assert.Equal(t, receipts.StatusFlagged, it.Status)
	assert.False(t, it.UnitPrice.Valid)
}

func TestVerifyItemInfersHiddenDiscount(t *testing.T) {
	it := item("Jogurt", "1", "4.99", "4.49")
	newVerifier().VerifyItem(&it)

	assert.Equal(t, receipts.StatusCorrected, it.Status)
	assert.Equal(t, "0.50", it.Discount.StringFixed(2))
	assert.Equal(t, "4.49", it.TotalPrice.StringFixed(2))
}

func TestVerifyItemFlagsWhatCannotBeExplained(t *testing.T) {
	it := item("Kawa", "1", "3.00", "7.00")
	newVerifier().VerifyItem(&it)

	assert.Equal(t, receipts.StatusFlagged, it.Status)
	assert.Equal(t, "7.00", it.TotalPrice.StringFixed(2))
	assert.NotEmpty(t, it.Notes)
}

func TestVerifyItemSkipsFlaggedAndSynthetic(t *testing.T) {
	flagged := item("Kawa", "1", "3.00", "7.00")
	flagged.Flag("unreadable")
	synthetic := item(receipts.AdjustmentItemName, "1", "1.00", "9.00")
	synthetic.Synthetic = true

	v := newVerifier()
	v.VerifyItem(&flagged)
	v.VerifyItem(&synthetic)

	assert.Len(t, flagged.Notes, 1)
	assert.Equal(t, receipts.StatusUnverified, synthetic.Status)
	assert.Empty(t, synthetic.Notes)
}

func TestVerifyKeepsCorrectedStatusOnSecondRun(t *testing.T) {
	v := newVerifier()
	first, _ := v.Verify([]receipts.ReceiptItem{item("Chleb", "1", "5.00", "50.00")}, nil)
	second, _ := v.Verify(first, nil)

	assert.Equal(t, receipts.StatusCorrected, second[0].Status)
	assert.Equal(t, first[0].Notes, second[0].Notes)
}

func TestVerifyConsistentReceipt(t *testing.T) {
	items := []receipts.ReceiptItem{
		item("Mleko", "2", "3.49", "6.98"),
		item("Chleb", "1", "4.99", "4.99"),
	}

	out, report := newVerifier().Verify(items, strPtr("11,97"))

	require.Len(t, out, 2)
	assert.Equal(t, receipts.ReportConsistent, report.Status)
	assert.Equal(t, "11.97", report.TotalComputed.StringFixed(2))
	require.True(t, report.TotalExpected.Valid)
	assert.True(t, report.Discrepancy.IsZero())
	assert.Empty(t, report.Flags)
}

func TestVerifyCorrectedItemsStayConsistent(t *testing.T) {
	items := []receipts.ReceiptItem{item("Chleb", "1", "5.00", "50.00")}

	out, report := newVerifier().Verify(items, strPtr("5.00"))

	assert.Equal(t, receipts.StatusCorrected, out[0].Status)
	assert.Equal(t, receipts.ReportConsistent, report.Status)
	assert.Contains(t, report.ItemNotes, 0)
	assert.Equal(t, "50.00", items[0].TotalPrice.StringFixed(2), "input is not modified")
}

func TestVerifyAddsAdjustmentForUnexplainedGap(t *testing.T) {
	items := []receipts.ReceiptItem{
		item("Mleko", "2", "3.49", "6.98"),
		item("Chleb", "1", "3.02", "3.02"),
	}

	out, report := newVerifier().Verify(items, strPtr("15.37"))

	require.Len(t, out, 3)
	adj := out[2]
	assert.True(t, adj.Synthetic)
	assert.Equal(t, receipts.AdjustmentItemName, adj.RawName)
	assert.Equal(t, receipts.StatusFlagged, adj.Status)
	assert.Equal(t, "5.37", adj.TotalPrice.StringFixed(2))

	assert.Equal(t, receipts.ReportFlaggedForReview, report.Status)
	assert.True(t, report.HasFlag(receipts.FlagUnreconciledTotal))
	assert.Equal(t, "10.00", report.TotalComputed.StringFixed(2))
	assert.Equal(t, "5.37", report.Discrepancy.StringFixed(2))
	assert.Len(t, items, 2)
}

func TestVerifyCorrectsDeclaredTotal(t *testing.T) {
	items := []receipts.ReceiptItem{
		item("Mleko", "2", "3.49", "6.98"),
		item("Masło", "1", "5.52", "5.52"),
	}

	out, report := newVerifier().Verify(items, strPtr("125.0"))

	require.Len(t, out, 2)
	assert.Equal(t, receipts.ReportCorrectedAutomatically, report.Status)
	assert.Equal(t, "12.50", report.TotalExpected.Decimal.StringFixed(2))
	assert.True(t, report.Discrepancy.IsZero())
	require.NotEmpty(t, report.Notes)
	assert.Contains(t, report.Notes[0], "decimal shift /10")
}

func TestVerifyFlaggedItemFlagsReport(t *testing.T) {
	items := []receipts.ReceiptItem{
		item("Kawa", "1", "3.00", "7.00"),
	}

	_, report := newVerifier().Verify(items, strPtr("7.00"))

	assert.Equal(t, receipts.ReportFlaggedForReview, report.Status)
	assert.True(t, report.HasFlag(receipts.FlagFlaggedItems))
	assert.False(t, report.HasFlag(receipts.FlagUnreconciledTotal))
}

func TestVerifyUnreadableDeclaredTotal(t *testing.T) {
	_, report := newVerifier().Verify([]receipts.ReceiptItem{item("Mleko", "1", "3.49", "3.49")}, strPtr("SUMA"))

	assert.False(t, report.TotalExpected.Valid)
	assert.Equal(t, receipts.ReportConsistent, report.Status)
	assert.NotEmpty(t, report.Notes)
}

func TestNewFromStringsFallsBack(t *testing.T) {
	v := NewFromStrings("0,05", "bogus")
	assert.Equal(t, "0.05", v.itemTolerance.StringFixed(2))
	assert.True(t, v.receiptTolerance.Equal(DefaultTolerance))
}
