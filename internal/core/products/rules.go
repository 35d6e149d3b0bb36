package products

import (
	"strings"

	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
)

// Rule maps trigger keywords to a canonical product. A keyword matches whole
// words of the normalized name; rules are evaluated in order and the first match wins.
type Rule struct {
	Keywords      []string
	CanonicalName string
	Category      string
	Perishable    bool
}

// DefaultRules covers frequent products whose receipt names carry extra words
// (brand, size, variant) that defeat the alias table.
var DefaultRules = []Rule{
	{Keywords: []string{"mleko"}, CanonicalName: "Mleko", Category: "Nabiał", Perishable: true},
	{Keywords: []string{"jogurt", "jog"}, CanonicalName: "Jogurt", Category: "Nabiał", Perishable: true},
	{Keywords: []string{"kefir", "maslanka"}, CanonicalName: "Kefir", Category: "Nabiał", Perishable: true},
	{Keywords: []string{"maslo"}, CanonicalName: "Masło", Category: "Nabiał", Perishable: true},
	{Keywords: []string{"twarog", "serek"}, CanonicalName: "Twaróg", Category: "Nabiał", Perishable: true},
	{Keywords: []string{"jaja", "jajka"}, CanonicalName: "Jajka", Category: "Nabiał", Perishable: true},
	{Keywords: []string{"chleb"}, CanonicalName: "Chleb", Category: "Pieczywo", Perishable: true},
	{Keywords: []string{"bulka", "bulki", "kajzerka", "rogal"}, CanonicalName: "Bułka", Category: "Pieczywo", Perishable: true},
	{Keywords: []string{"kurczak", "kurczaka", "indyk", "indyka"}, CanonicalName: "Drób", Category: "Mięso i wędliny", Perishable: true},
	{Keywords: []string{"szynka", "poledwica", "kielbasa", "parowki"}, CanonicalName: "Wędlina", Category: "Mięso i wędliny", Perishable: true},
	{Keywords: []string{"losos", "dorsz", "sledz", "tunczyk"}, CanonicalName: "Ryba", Category: "Ryby i owoce morza", Perishable: true},
	{Keywords: []string{"jablka", "jablko"}, CanonicalName: "Jabłka", Category: "Owoce", Perishable: true},
	{Keywords: []string{"banan", "banany"}, CanonicalName: "Banany", Category: "Owoce", Perishable: true},
	{Keywords: []string{"pomidor", "pomidory"}, CanonicalName: "Pomidory", Category: "Warzywa", Perishable: true},
	{Keywords: []string{"ziemniaki", "ziemniak"}, CanonicalName: "Ziemniaki", Category: "Warzywa", Perishable: true},
	{Keywords: []string{"woda"}, CanonicalName: "Woda", Category: "Napoje"},
	{Keywords: []string{"sok", "nektar"}, CanonicalName: "Sok", Category: "Napoje"},
	{Keywords: []string{"piwo"}, CanonicalName: "Piwo", Category: "Alkohol"},
	{Keywords: []string{"wino"}, CanonicalName: "Wino", Category: "Alkohol"},
	{Keywords: []string{"czekolada", "baton", "wafelek"}, CanonicalName: "Słodycze", Category: "Słodycze i przekąski"},
	{Keywords: []string{"chipsy", "paluszki"}, CanonicalName: "Przekąski", Category: "Słodycze i przekąski"},
	{Keywords: []string{"maka"}, CanonicalName: "Mąka", Category: "Produkty sypkie"},
	{Keywords: []string{"cukier"}, CanonicalName: "Cukier", Category: "Produkty sypkie"},
	{Keywords: []string{"ryz"}, CanonicalName: "Ryż", Category: "Produkty sypkie"},
	{Keywords: []string{"makaron"}, CanonicalName: "Makaron", Category: "Produkty sypkie"},
	{Keywords: []string{"ketchup", "majonez", "musztarda"}, CanonicalName: "Sos", Category: "Przyprawy i sosy"},
	{Keywords: []string{"pizza", "pierogi"}, CanonicalName: "Danie gotowe", Category: "Dania gotowe", Perishable: true},
	{Keywords: []string{"proszek", "plyn", "domestos"}, CanonicalName: "Środek czystości", Category: "Chemia domowa"},
	{Keywords: []string{"szampon", "mydlo", "pasta"}, CanonicalName: "Kosmetyk", Category: "Higiena i kosmetyki"},
	{Keywords: []string{"karma", "whiskas", "pedigree"}, CanonicalName: "Karma dla zwierząt", Category: "Artykuły dla zwierząt"},
}

func (r Rule) matches(paddedKey string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(paddedKey, " "+normalize.Key(kw)+" ") {
			return true
		}
	}
	return false
}

func matchRule(rules []Rule, rawName string) (Rule, bool) {
	padded := " " + normalize.Key(rawName) + " "
	for _, r := range rules {
		if r.matches(padded) {
			return r, true
		}
	}
	return Rule{}, false
}
