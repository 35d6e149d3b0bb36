// Package verify checks the arithmetic of receipt items and of the receipt total,
// correcting values only through a fixed, auditable set of OCR hypotheses.
package verify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

// DefaultTolerance is the largest arithmetic difference treated as rounding.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Verifier never fails; what it cannot reconcile it flags.
type Verifier struct {
	itemTolerance    decimal.Decimal
	receiptTolerance decimal.Decimal
	hypotheses       []Hypothesis
}

// New returns a Verifier with the given item and receipt tolerances.
func New(itemTolerance, receiptTolerance decimal.Decimal) *Verifier {
	return &Verifier{
		itemTolerance:    itemTolerance.Abs(),
		receiptTolerance: receiptTolerance.Abs(),
		hypotheses:       DefaultHypotheses,
	}
}

// NewFromStrings parses tolerances written as decimal strings, falling back to DefaultTolerance.
func NewFromStrings(itemTolerance, receiptTolerance string) *Verifier {
	parse := func(s string) decimal.Decimal {
		d, ok := normalize.ParseDecimal(s)
		if !ok {
			return DefaultTolerance
		}
		return d
	}
	return New(parse(itemTolerance), parse(receiptTolerance))
}

func (v *Verifier) consistent(q, u, d, t decimal.Decimal) bool {
	return q.Mul(u).Sub(d).Sub(t).Abs().LessThanOrEqual(v.itemTolerance)
}

// VerifyItem runs the per-item checks in order: consistency, missing unit price,
// OCR hypotheses on total, unit price and quantity, hidden discount, and finally flagging.
func (v *Verifier) VerifyItem(item *receipts.ReceiptItem) {
	if item.Synthetic || item.Status == receipts.StatusFlagged {
		return
	}

	q, d, t := item.Quantity, item.Discount, item.TotalPrice

	if !item.UnitPrice.Valid {
		if !q.IsPositive() {
			item.Flag("quantity is not positive, unit price cannot be derived")
			return
		}
		u, ok := v.deriveUnitPrice(q, d, t)
		if !ok {
			item.Flag(fmt.Sprintf("unit price cannot be derived from total %s", t.StringFixed(2)))
			return
		}
		item.UnitPrice = decimal.NewNullDecimal(u)
		item.Status = receipts.StatusCorrected
		item.AddNote(fmt.Sprintf("unit price %s derived from total", u.String()))
		return
	}

	u := item.UnitPrice.Decimal
	if v.consistent(q, u, d, t) {
		if item.Status == receipts.StatusUnverified {
			item.Status = receipts.StatusVerified
		}
		return
	}

	if v.applyHypotheses(item) {
		item.Status = receipts.StatusCorrected
		return
	}

	if t.LessThan(q.Mul(u)) {
		item.Discount = q.Mul(u).Sub(t)
		item.Status = receipts.StatusCorrected
		item.AddNote(fmt.Sprintf("hidden discount %s inferred", item.Discount.StringFixed(2)))
		return
	}

	item.Flag(fmt.Sprintf("%s x %s - %s does not match total %s", q.String(), u.String(), d.String(), t.String()))
}

func (v *Verifier) applyHypotheses(item *receipts.ReceiptItem) bool {
	q, u, d, t := item.Quantity, item.UnitPrice.Decimal, item.Discount, item.TotalPrice

	// Raw.TotalPrice is the printed amount before discounts were taken off.
	if c, name, ok := Apply(v.hypotheses, item.Raw.TotalPrice, func(c decimal.Decimal) bool {
		return v.consistent(q, u, d, c.Sub(d))
	}); ok {
		item.TotalPrice = c.Sub(d)
		item.AddNote(fmt.Sprintf("total price corrected by %s: %s -> %s", name, item.Raw.TotalPrice, c.String()))
		return true
	}

	if c, name, ok := Apply(v.hypotheses, item.Raw.UnitPrice, func(c decimal.Decimal) bool {
		return v.consistent(q, c, d, t)
	}); ok {
		item.UnitPrice = decimal.NewNullDecimal(c)
		item.AddNote(fmt.Sprintf("unit price corrected by %s: %s -> %s", name, item.Raw.UnitPrice, c.String()))
		return true
	}

	if c, name, ok := Apply(v.hypotheses, item.Raw.Quantity, func(c decimal.Decimal) bool {
		return c.IsPositive() && v.consistent(c, u, d, t)
	}); ok {
		item.Quantity = c
		item.AddNote(fmt.Sprintf("quantity corrected by %s: %s -> %s", name, item.Raw.Quantity, c.String()))
		return true
	}

	return false
}

// Verify checks every item, then compares their sum with the declared receipt total.
// A gap above the receipt tolerance that no hypothesis on the printed total explains
// becomes one flagged synthetic adjustment line. The input slice is not modified.
func (v *Verifier) Verify(items []receipts.ReceiptItem, declaredTotal *string) ([]receipts.ReceiptItem, receipts.VerificationReport) {
	out := receipts.CloneItems(items)
	report := receipts.VerificationReport{Status: receipts.ReportConsistent}

	for i := range out {
		v.VerifyItem(&out[i])
	}

	computed := decimal.Zero
	for _, item := range out {
		computed = computed.Add(item.TotalPrice)
	}
	report.TotalComputed = computed

	var totalCorrected, unreconciled bool
	if declaredTotal != nil {
		raw, ok := normalize.CanonicalNumber(*declaredTotal)
		if !ok {
			report.Notes = append(report.Notes, fmt.Sprintf("declared total %q is unreadable", *declaredTotal))
		} else {
			declared := decimal.RequireFromString(raw)
			report.TotalExpected = decimal.NewNullDecimal(declared)
			report.Discrepancy = declared.Sub(computed)

			if report.Discrepancy.Abs().GreaterThan(v.receiptTolerance) {
				if c, name, ok := Apply(v.hypotheses, raw, func(c decimal.Decimal) bool {
					return c.Sub(computed).Abs().LessThanOrEqual(v.receiptTolerance)
				}); ok {
					totalCorrected = true
					report.TotalExpected = decimal.NewNullDecimal(c)
					report.Discrepancy = c.Sub(computed)
					report.Notes = append(report.Notes, fmt.Sprintf("declared total corrected by %s: %s -> %s", name, raw, c.String()))
				} else {
					unreconciled = true
					out = append(out, adjustment(report.Discrepancy, computed, declared))
					report.AddFlag(receipts.FlagUnreconciledTotal)
					report.Notes = append(report.Notes, fmt.Sprintf("items sum to %s but receipt total is %s", computed.StringFixed(2), declared.StringFixed(2)))
				}
			}
		}
	}

	flagged := false
	for i, item := range out {
		if item.Status == receipts.StatusFlagged {
			flagged = true
		}
		if len(item.Notes) > 0 {
			if report.ItemNotes == nil {
				report.ItemNotes = make(map[int][]string)
			}
			report.ItemNotes[i] = append([]string(nil), item.Notes...)
		}
	}
	if flagged {
		report.AddFlag(receipts.FlagFlaggedItems)
	}

	switch {
	case flagged || unreconciled:
		report.Status = receipts.ReportFlaggedForReview
	case totalCorrected:
		report.Status = receipts.ReportCorrectedAutomatically
	default:
		report.Status = receipts.ReportConsistent
	}

	return out, report
}

// Prices are tried with cents first; goods sold by the gram need finer rates.
var unitPricePlaces = []int32{2, 4, 8}

func (v *Verifier) deriveUnitPrice(q, d, t decimal.Decimal) (decimal.Decimal, bool) {
	for _, places := range unitPricePlaces {
		u := t.Add(d).DivRound(q, places)
		if v.consistent(q, u, d, t) {
			return u, true
		}
	}
	return decimal.Decimal{}, false
}

func adjustment(gap, computed, declared decimal.Decimal) receipts.ReceiptItem {
	item := receipts.ReceiptItem{
		RawName:    receipts.AdjustmentItemName,
		Quantity:   decimal.NewFromInt(1),
		UnitPrice:  decimal.NewNullDecimal(gap),
		TotalPrice: gap,
		Discount:   decimal.Zero,
		Synthetic:  true,
	}
	item.Flag(fmt.Sprintf("items sum to %s, receipt total is %s", computed.StringFixed(2), declared.StringFixed(2)))
	return item
}
