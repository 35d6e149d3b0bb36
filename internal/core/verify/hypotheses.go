package verify

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Hypothesis is one kind of OCR misreading. Candidates lists, in a fixed order,
// the printed strings the misread one could have come from.
type Hypothesis struct {
	Name       string
	Candidates func(raw string) []string
}

// DefaultHypotheses are tried in this order; the first candidate that fits wins.
var DefaultHypotheses = []Hypothesis{
	{Name: "decimal shift /10", Candidates: shiftLeft},
	{Name: "decimal shift x10", Candidates: shiftRight},
	{Name: "digit transposition", Candidates: transpositions},
	{Name: "extra trailing digit", Candidates: dropTrailingDigit},
	{Name: "missing trailing digit", Candidates: appendTrailingDigit},
}

// Apply returns the first candidate value accepted by accept, with the hypothesis name.
func Apply(hypotheses []Hypothesis, raw string, accept func(decimal.Decimal) bool) (decimal.Decimal, string, bool) {
	if raw == "" {
		return decimal.Zero, "", false
	}
	for _, h := range hypotheses {
		for _, candidate := range h.Candidates(raw) {
			value, err := decimal.NewFromString(candidate)
			if err != nil || candidate == raw {
				continue
			}
			if accept(value) {
				return value, h.Name, true
			}
		}
	}
	return decimal.Zero, "", false
}

// digitString is a printed number split into sign, digits and the position of the decimal point.
type digitString struct {
	negative bool
	digits   string
	point    int
}

func parseDigits(raw string) (digitString, bool) {
	var d digitString
	s := raw
	if strings.HasPrefix(s, "-") {
		d.negative = true
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	d.digits = intPart + fracPart
	d.point = len(intPart)
	if d.digits == "" {
		return d, false
	}
	for _, r := range d.digits {
		if r < '0' || r > '9' {
			return d, false
		}
	}
	return d, true
}

func (d digitString) String() string {
	digits, point := d.digits, d.point
	for point <= 0 {
		digits = "0" + digits
		point++
	}
	for point > len(digits) {
		digits += "0"
	}

	s := digits[:point]
	if point < len(digits) {
		s += "." + digits[point:]
	}
	if d.negative {
		s = "-" + s
	}
	return s
}

func shiftLeft(raw string) []string {
	d, ok := parseDigits(raw)
	if !ok {
		return nil
	}
	d.point--
	return []string{d.String()}
}

func shiftRight(raw string) []string {
	d, ok := parseDigits(raw)
	if !ok {
		return nil
	}
	d.point++
	return []string{d.String()}
}

func transpositions(raw string) []string {
	d, ok := parseDigits(raw)
	if !ok {
		return nil
	}
	var out []string
	for i := 0; i+1 < len(d.digits); i++ {
		if d.digits[i] == d.digits[i+1] {
			continue
		}
		b := []byte(d.digits)
		b[i], b[i+1] = b[i+1], b[i]
		swapped := d
		swapped.digits = string(b)
		out = append(out, swapped.String())
	}
	return out
}

func dropTrailingDigit(raw string) []string {
	d, ok := parseDigits(raw)
	if !ok || len(d.digits) < 2 {
		return nil
	}
	d.digits = d.digits[:len(d.digits)-1]
	if d.point > len(d.digits) {
		d.point = len(d.digits)
	}
	return []string{d.String()}
}

func appendTrailingDigit(raw string) []string {
	d, ok := parseDigits(raw)
	if !ok {
		return nil
	}
	integer := d.point == len(d.digits)
	out := make([]string, 0, 10)
	for digit := '0'; digit <= '9'; digit++ {
		c := d
		c.digits = d.digits + string(digit)
		if integer {
			c.point++
		}
		out = append(out, c.String())
	}
	return out
}
