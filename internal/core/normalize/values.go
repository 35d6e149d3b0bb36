package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	currencyMarks = regexp.MustCompile(`(?i)(zł|zl|pln|eur|€|\$)`)
	// Tax class letter printed after the amount, e.g. "4,50 A" or "4,50A".
	taxClassSuffix = regexp.MustCompile(`(?i)\s*[a-e]$`)
	numberChars    = regexp.MustCompile(`^[0-9.,]+$`)

	quantityPattern = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s*(?:x|\*)?\s*([a-z.]*)$`)
	datePattern     = regexp.MustCompile(`\d{1,4}[.\-/]\d{1,2}[.\-/]\d{2,4}`)
)

var unitAliases = map[string]string{
	"kg":    "kg",
	"g":     "g",
	"l":     "l",
	"ml":    "ml",
	"szt":   "szt",
	"szt.":  "szt",
	"sztuk": "szt",
	"op":    "op",
	"op.":   "op",
	"opak":  "op",
	"opak.": "op",
}

var dateLayouts = []string{
	"2006-1-2",
	"2006.1.2",
	"2006/1/2",
	"2.1.2006",
	"2-1-2006",
	"2/1/2006",
	"2.1.06",
	"2-1-06",
	"2/1/06",
}

// CanonicalNumber reduces a printed amount to a plain signed decimal string such as "-1.00".
// Currency marks, tax class suffixes, spaces and thousand separators are dropped. The digits
// are kept exactly as printed, which is what OCR hypotheses operate on.
func CanonicalNumber(text string) (string, bool) {
	s := strings.TrimSpace(text)
	s = currencyMarks.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t', '\'':
			return -1
		}
		return r
	}, s)
	s = taxClassSuffix.ReplaceAllString(s, "")

	negative := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "−") {
		negative = true
		s = strings.TrimLeft(s, "-−")
	}
	if strings.HasSuffix(s, "-") {
		// discounts are often printed as "1,00-"
		negative = true
		s = strings.TrimRight(s, "-")
	}

	if s == "" || !numberChars.MatchString(s) {
		return "", false
	}

	s = resolveSeparators(s)
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	if s == "" || strings.Count(s, ".") > 1 {
		return "", false
	}

	if negative {
		s = "-" + s
	}
	return s, true
}

// resolveSeparators decides which of ',' and '.' is the decimal separator and drops the other.
func resolveSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// ParseDecimal parses a printed amount. ok is false when the text is not a number.
func ParseDecimal(text string) (decimal.Decimal, bool) {
	s, ok := CanonicalNumber(text)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseQuantity parses quantities like "2", "0,536 kg", "3 szt." or "1x".
// The quantity must be positive. unit is nil when none was printed.
func ParseQuantity(text string) (qty decimal.Decimal, unit *string, ok bool) {
	s := strings.ToLower(CollapseWhitespace(text))
	m := quantityPattern.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero, nil, false
	}

	qty, ok = ParseDecimal(m[1])
	if !ok || !qty.IsPositive() {
		return decimal.Zero, nil, false
	}

	if m[2] != "" {
		canonical, known := unitAliases[m[2]]
		if !known {
			return decimal.Zero, nil, false
		}
		unit = &canonical
	}
	return qty, unit, true
}

// ParseDate finds a calendar date in text. Day-first layouts are preferred for
// ambiguous numeric dates since receipts are printed that way.
func ParseDate(text string) (time.Time, bool) {
	token := datePattern.FindString(text)
	if token == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, token)
		if err != nil {
			continue
		}
		if t.Year() < 1990 || t.Year() > 2100 {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
