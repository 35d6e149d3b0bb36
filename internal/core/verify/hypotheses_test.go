package verify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) []string
		raw  string
		want []string
	}{
		{"shift left", shiftLeft, "50.00", []string{"5.000"}},
		{"shift left integer", shiftLeft, "5", []string{"0.5"}},
		{"shift right", shiftRight, "0.50", []string{"05.0"}},
		{"shift right negative", shiftRight, "-1.25", []string{"-12.5"}},
		{"transpositions", transpositions, "1.25", []string{"2.15", "1.52"}},
		{"transpositions skip equal", transpositions, "4.49", []string{"4.94"}},
		{"drop trailing", dropTrailingDigit, "12.995", []string{"12.99"}},
		{"drop trailing integer", dropTrailingDigit, "125", []string{"12"}},
		{"drop trailing single digit", dropTrailingDigit, "5", nil},
		{"garbage", shiftLeft, "abc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.raw))
		})
	}
}

func TestAppendTrailingDigit(t *testing.T) {
	got := appendTrailingDigit("4.9")
	assert.Len(t, got, 10)
	assert.Equal(t, "4.90", got[0])
	assert.Equal(t, "4.99", got[9])

	got = appendTrailingDigit("12")
	assert.Equal(t, "120", got[0])
	assert.Equal(t, "129", got[9])
}

func TestApplyReturnsFirstAcceptedCandidate(t *testing.T) {
	want := decimal.RequireFromString("5")
	value, name, ok := Apply(DefaultHypotheses, "50.00", func(d decimal.Decimal) bool { return d.Equal(want) })

	assert.True(t, ok)
	assert.Equal(t, "decimal shift /10", name)
	assert.True(t, value.Equal(want))
}

func TestApplyNothingAccepted(t *testing.T) {
	_, _, ok := Apply(DefaultHypotheses, "7.00", func(decimal.Decimal) bool { return false })
	assert.False(t, ok)

	_, _, ok = Apply(DefaultHypotheses, "", func(decimal.Decimal) bool { return true })
	assert.False(t, ok)
}
