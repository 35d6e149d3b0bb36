// Package normalize turns the loosely formatted strings found on receipts into typed values.
// Every function is pure and safe for concurrent use.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ł has no decomposition, so it survives mark stripping.
	polishLetters = strings.NewReplacer("ł", "l", "Ł", "L")

	decimalComma = regexp.MustCompile(`(\d),(\d)`)
	keyNoise     = regexp.MustCompile(`[^\p{L}\p{N}.%]+`)
)

// StripDiacritics removes combining marks, so "Łaciate" becomes "Laciate" and "żółć" becomes "zolc".
func StripDiacritics(s string) string {
	// transform.Chain keeps state, so it cannot be shared between goroutines.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, polishLetters.Replace(s))
	if err != nil {
		return s
	}
	return out
}

// CollapseWhitespace trims s and replaces every whitespace run with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeText lower-cases s, strips diacritics, collapses whitespace and
// rewrites decimal commas between digits as dots.
func NormalizeText(s string) string {
	s = StripDiacritics(strings.ToLower(s))
	s = decimalComma.ReplaceAllString(s, "$1.$2")
	return CollapseWhitespace(s)
}

// Key is NormalizeText with punctuation other than '.' and '%' removed.
// It is the lookup key for aliases and the exact normalization cache.
func Key(s string) string {
	s = keyNoise.ReplaceAllString(NormalizeText(s), " ")
	s = strings.Trim(CollapseWhitespace(s), ".")
	return strings.TrimSpace(s)
}

// Tokens splits Key(s) into words.
func Tokens(s string) []string {
	return strings.Fields(Key(s))
}
