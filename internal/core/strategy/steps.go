package strategy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

// Lines that are printed on every Polish fiscal receipt but are not products.
// Matched against normalize.Key of the line name.
var garbagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(suma|razem|do zaplaty|total)\b`),
	regexp.MustCompile(`^(ptu|vat|podatek|kwota ptu|suma ptu)\b`),
	regexp.MustCompile(`^(sprzedaz|sp\.?) opodatk`),
	regexp.MustCompile(`^paragon fiskalny\b`),
	regexp.MustCompile(`^(nip|regon|kasjer|kasa)\b`),
	regexp.MustCompile(`^nr (sys|kasy|transakcji|paragonu)\b`),
	regexp.MustCompile(`^(reszta|gotowka|platnosc|wplata)\b`),
	regexp.MustCompile(`^karta( platnicza| kredytowa| debetowa| visa| mastercard)?$`),
}

var (
	ocrNoise = regexp.MustCompile(`^[*#|_~]+|[*#|_~]+$`)
	// Biedronka prints the tax class after the name, e.g. "MLEKO 3,2% 1L C".
	taxClassLetters = regexp.MustCompile(`(\s+[A-E])+$`)
	// "BANANY 0,536 kg x 5,99" or "JOGURT 3 szt x 2,49"
	multiplier = regexp.MustCompile(`(?i)\s+(\d+(?:[.,]\d+)?)\s*(kg|g|l|szt\.?)?\s*[x*]\s*(\d+[.,]\d{2})\s*$`)
)

func isGarbage(name string) bool {
	key := normalize.Key(name)
	if key == "" {
		return true
	}
	for _, p := range garbagePatterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func stripGarbage(items []receipts.ReceiptItem) []receipts.ReceiptItem {
	out := items[:0]
	for _, item := range items {
		if item.Synthetic || !isGarbage(item.RawName) {
			out = append(out, item)
		}
	}
	return out
}

// nameCleaner tidies a line name. Applying it to its own output changes nothing.
type nameCleaner func(name string) string

// tidyNames strips OCR noise and, for shops that print them, trailing tax class
// letters, repeating until the name stops changing.
func tidyNames(stripTaxClass bool) nameCleaner {
	return func(name string) string {
		for {
			next := normalize.CollapseWhitespace(ocrNoise.ReplaceAllString(normalize.CollapseWhitespace(name), ""))
			if stripTaxClass {
				if cleaned := strings.TrimSpace(taxClassLetters.ReplaceAllString(next, "")); cleaned != "" {
					next = cleaned
				}
			}
			if next == name {
				return name
			}
			name = next
		}
	}
}

func cleanNames(clean nameCleaner) step {
	return func(items []receipts.ReceiptItem) []receipts.ReceiptItem {
		for i := range items {
			if !items[i].Synthetic {
				items[i].RawName = clean(items[i].RawName)
			}
		}
		return items
	}
}

// splitMultipliers moves a "quantity x unit price" suffix from the name into the item fields.
// The remaining name goes through clean again, since the suffix may have hidden noise.
func splitMultipliers(clean nameCleaner) step {
	return func(items []receipts.ReceiptItem) []receipts.ReceiptItem {
		for i := range items {
			splitMultiplier(&items[i], clean)
		}
		return items
	}
}

func splitMultiplier(item *receipts.ReceiptItem, clean nameCleaner) {
	if item.Synthetic {
		return
	}
	m := multiplier.FindStringSubmatch(item.RawName)
	if m == nil {
		return
	}
	name := clean(strings.TrimSpace(multiplier.ReplaceAllString(item.RawName, "")))
	qty, ok := normalize.ParseDecimal(m[1])
	if name == "" || !ok || !qty.IsPositive() {
		return
	}

	item.RawName = name
	item.Quantity = qty
	item.Raw.Quantity = qty.String()
	if m[2] != "" {
		unit := strings.TrimSuffix(strings.ToLower(m[2]), ".")
		item.Unit = &unit
	}
	if price, ok := normalize.CanonicalNumber(m[3]); ok && !item.UnitPrice.Valid {
		item.UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
		item.Raw.UnitPrice = price
	}
}

// mergeDiscounts folds every discount line into the closest preceding product line.
// A discount line is one whose name matches pattern or whose amount is negative.
// A discount with nothing before it stays in place, flagged.
func mergeDiscounts(pattern *regexp.Regexp) step {
	isDiscount := func(item receipts.ReceiptItem) bool {
		// the printed sign, since merging can push a product's net total below zero
		if strings.HasPrefix(item.Raw.TotalPrice, "-") {
			return true
		}
		return pattern.MatchString(normalize.Key(item.RawName))
	}

	return func(items []receipts.ReceiptItem) []receipts.ReceiptItem {
		out := make([]receipts.ReceiptItem, 0, len(items))
		target := -1

		for _, item := range items {
			switch {
			case item.Synthetic:
				out = append(out, item)
			case !isDiscount(item):
				out = append(out, item)
				target = len(out) - 1
			case item.Raw.TotalPrice == "":
				// unreadable amount, nothing to merge
				out = append(out, item)
			case target < 0:
				if item.Status != receipts.StatusFlagged {
					item.Flag("discount line with no preceding item")
				}
				out = append(out, item)
			default:
				amount := item.TotalPrice.Abs()
				t := &out[target]
				t.Discount = t.Discount.Add(amount)
				t.TotalPrice = t.TotalPrice.Sub(amount)
				t.AddNote(fmt.Sprintf("discount %s merged from %q", amount.StringFixed(2), item.RawName))
			}
		}
		return out
	}
}
