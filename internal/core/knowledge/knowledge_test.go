package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupIgnoresCaseAndDiacritics(t *testing.T) {
	kb := Default()

	p, ok := kb.Lookup("MASŁO EKSTRA")
	require.True(t, ok)
	assert.Equal(t, "Masło", p.CanonicalName)
	assert.Equal(t, "Nabiał", p.Category)
	assert.True(t, p.Perishable)

	p, ok = kb.Lookup("Mleko 3,2%")
	require.True(t, ok)
	assert.Equal(t, "Mleko", p.CanonicalName)

	_, ok = kb.Lookup("Odkurzacz")
	assert.False(t, ok)

	_, ok = kb.Lookup("  ")
	assert.False(t, ok)
}

func TestCanonicalNameIsAnAlias(t *testing.T) {
	kb := Default()

	p, ok := kb.Lookup("pierś z kurczaka")
	require.True(t, ok)
	assert.Equal(t, "Mięso i wędliny", p.Category)
}

func TestNormalizeShop(t *testing.T) {
	kb := Default()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"LIDL sp. z o.o. sp.k.", "Lidl", true},
		{"Jeronimo Martins Polska S.A.", "Biedronka", true},
		{"BIEDRONKA nr 3421", "Biedronka", true},
		{"Auchan Polska Sp. z o.o.", "Auchan", true},
		{"Sklep u Zenka", "", false},
		{"Dinozaur zabawki", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := kb.NormalizeShop(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFuzzyKey(t *testing.T) {
	kb := Default()

	assert.Equal(t, "3.2% mleko uht", kb.FuzzyKey("mleko uht 3,2% łaciate"))
	assert.Equal(t, kb.FuzzyKey("Mleko UHT 3.2%"), kb.FuzzyKey("mleko uht 3,2% łaciate"))
	assert.Equal(t, kb.FuzzyKey("UHT mleko 3.2%"), kb.FuzzyKey("Mleko UHT 3.2%"))
	assert.Equal(t, "laciate", kb.FuzzyKey("Łaciate"), "a name made only of a brand keeps its tokens")
}

func TestCanonicalCategory(t *testing.T) {
	kb := Default()

	c, ok := kb.CanonicalCategory("nabial")
	require.True(t, ok)
	assert.Equal(t, "Nabiał", c)

	_, ok = kb.CanonicalCategory("Elektronika")
	assert.False(t, ok)
}

func TestAddProductExtendsAliases(t *testing.T) {
	kb := New([]string{"Nabiał"})
	kb.AddProduct(Product{CanonicalName: "Kefir", Category: "Nabiał", Perishable: true}, "kefir naturalny")

	p, ok := kb.Lookup("Kefir Naturalny")
	require.True(t, ok)
	assert.Equal(t, "Kefir", p.CanonicalName)

	p, ok = kb.Product("kefir")
	require.True(t, ok)
	assert.True(t, p.Perishable)
}
