package receipts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VerificationStatus is the arithmetic state of a single line item.
type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "unverified"
	StatusVerified   VerificationStatus = "verified"
	StatusCorrected  VerificationStatus = "corrected"
	StatusFlagged    VerificationStatus = "flagged"
)

// MatchSource tells which resolution step produced a ProductMatch.
type MatchSource string

const (
	SourceAlias      MatchSource = "alias"
	SourceStaticRule MatchSource = "static_rule"
	SourceLLM        MatchSource = "llm"
)

// ReportStatus is the receipt-level outcome of verification.
type ReportStatus string

const (
	ReportConsistent             ReportStatus = "consistent"
	ReportCorrectedAutomatically ReportStatus = "corrected_automatically"
	ReportFlaggedForReview       ReportStatus = "flagged_for_review"
)

// ReportFlag marks a degraded or suspicious condition of a processed receipt.
type ReportFlag string

const (
	FlagExtractionFailure  ReportFlag = "extraction_failure"
	FlagDegradedResolution ReportFlag = "degraded_resolution"
	FlagUnreconciledTotal  ReportFlag = "unreconciled_total"
	FlagFlaggedItems       ReportFlag = "flagged_items"
)

// UnknownCategory is assigned when a product cannot be classified.
const UnknownCategory = "Nieznana"

// AdjustmentItemName names the synthetic line added when items do not sum to the receipt total.
const AdjustmentItemName = "Unknown adjustment"

// RawItemGuess is one line item exactly as the language model reported it.
type RawItemGuess struct {
	RawName        string  `json:"raw_name"`
	QuantityText   string  `json:"quantity_text"`
	UnitPriceText  string  `json:"unit_price_text"`
	TotalPriceText string  `json:"total_price_text"`
	DiscountText   *string `json:"discount_text,omitempty"`
}

// RawExtraction is the unvalidated output of the extraction step.
// Items is never nil; a failed extraction carries an empty slice and Failed set.
type RawExtraction struct {
	ShopNameGuess     *string        `json:"shop_name_guess,omitempty"`
	PurchaseDateGuess *string        `json:"purchase_date_guess,omitempty"`
	TotalText         *string        `json:"total_text,omitempty"`
	Items             []RawItemGuess `json:"items"`
	Failed            bool           `json:"failed"`
	Error             string         `json:"error,omitempty"`
}

// ProductMatch is the canonical product a raw line name resolved to.
type ProductMatch struct {
	CanonicalName string      `json:"canonical_name"`
	Category      string      `json:"category"`
	Confidence    float64     `json:"confidence"`
	Source        MatchSource `json:"source"`
	Perishable    bool        `json:"perishable"`
}

// Fallback returns the match used when nothing could classify rawName.
func Fallback(rawName string) ProductMatch {
	return ProductMatch{
		CanonicalName: rawName,
		Category:      UnknownCategory,
		Confidence:    0,
		Source:        SourceLLM,
	}
}

// RawValues keeps the digit strings a value was parsed from, so that
// OCR hypotheses can be evaluated against what was printed.
type RawValues struct {
	Quantity   string `json:"quantity,omitempty"`
	UnitPrice  string `json:"unit_price,omitempty"`
	TotalPrice string `json:"total_price,omitempty"`
}

// ReceiptItem is a working line item. TotalPrice is the net amount:
// Quantity*UnitPrice - Discount == TotalPrice for any non-flagged item.
type ReceiptItem struct {
	RawName    string              `json:"raw_name"`
	Quantity   decimal.Decimal     `json:"quantity"`
	Unit       *string             `json:"unit,omitempty"`
	UnitPrice  decimal.NullDecimal `json:"unit_price"`
	TotalPrice decimal.Decimal     `json:"total_price"`
	Discount   decimal.Decimal     `json:"discount"`
	Status     VerificationStatus  `json:"status"`
	Notes      []string            `json:"notes,omitempty"`
	Product    *ProductMatch       `json:"product,omitempty"`
	Raw        RawValues           `json:"-"`
	Synthetic  bool                `json:"synthetic,omitempty"`
}

// AddNote appends a correction or audit note to the item.
func (i *ReceiptItem) AddNote(note string) {
	i.Notes = append(i.Notes, note)
}

// Flag marks the item for manual review with a reason.
func (i *ReceiptItem) Flag(reason string) {
	i.Status = StatusFlagged
	i.AddNote(reason)
}

// Clone returns a deep copy of the item.
func (i ReceiptItem) Clone() ReceiptItem {
	c := i
	if i.Unit != nil {
		u := *i.Unit
		c.Unit = &u
	}
	if i.Notes != nil {
		c.Notes = append([]string(nil), i.Notes...)
	}
	if i.Product != nil {
		p := *i.Product
		c.Product = &p
	}
	return c
}

// VerificationReport summarizes the arithmetic checks of one receipt.
type VerificationReport struct {
	TotalExpected decimal.NullDecimal `json:"total_expected"`
	TotalComputed decimal.Decimal     `json:"total_computed"`
	Discrepancy   decimal.Decimal     `json:"discrepancy"`
	ItemNotes     map[int][]string    `json:"item_notes,omitempty"`
	Notes         []string            `json:"notes,omitempty"`
	Flags         []ReportFlag        `json:"flags,omitempty"`
	Status        ReportStatus        `json:"status"`
}

// AddFlag records flag once.
func (r *VerificationReport) AddFlag(flag ReportFlag) {
	for _, f := range r.Flags {
		if f == flag {
			return
		}
	}
	r.Flags = append(r.Flags, flag)
}

// HasFlag reports whether flag was recorded.
func (r VerificationReport) HasFlag(flag ReportFlag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Receipt is the finalized record handed to persistence. It is not modified after the pipeline returns it.
type Receipt struct {
	ID            uuid.UUID          `json:"id"`
	SourceID      string             `json:"source_id,omitempty"`
	ShopName      *string            `json:"shop_name,omitempty"`
	ShopCanonical *string            `json:"shop_canonical,omitempty"`
	PurchaseDate  *time.Time         `json:"purchase_date,omitempty"`
	Strategy      string             `json:"strategy"`
	Items         []ReceiptItem      `json:"items"`
	Report        VerificationReport `json:"report"`
	ProcessedAt   time.Time          `json:"processed_at"`
}

// NeedsReview reports whether a person has to look at the receipt before it is trusted.
func (r *Receipt) NeedsReview() bool {
	if r.Report.Status == ReportFlaggedForReview {
		return true
	}
	for _, item := range r.Items {
		if item.Status == StatusFlagged {
			return true
		}
	}
	return false
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []ReceiptItem) []ReceiptItem {
	out := make([]ReceiptItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
