// Package strategy holds the shop-specific clean-up applied to extracted items.
//
// The set of strategies is closed: Lidl, Biedronka, Auchan and the Generic
// fallback. A strategy is chosen once per receipt from a static detector table;
// its post-processing is deterministic and idempotent.
package strategy

import (
	"regexp"
	"strings"

	"github.com/PocketPalCo/receipts-service/internal/core/knowledge"
	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

// Kind identifies a strategy.
type Kind string

const (
	KindGeneric   Kind = "generic"
	KindLidl      Kind = "lidl"
	KindBiedronka Kind = "biedronka"
	KindAuchan    Kind = "auchan"
)

type step func(items []receipts.ReceiptItem) []receipts.ReceiptItem

// Strategy is one shop variant: how to recognize the shop and how to clean its items.
type Strategy struct {
	Kind    Kind
	markers []string
	steps   []step
}

// Detect reports whether shopGuess names this strategy's shop. Matching ignores
// case and diacritics and looks for a marker as whole words.
func (s Strategy) Detect(shopGuess *string) bool {
	if shopGuess == nil {
		return false
	}
	padded := " " + normalize.Key(*shopGuess) + " "
	for _, marker := range s.markers {
		if strings.Contains(padded, " "+marker+" ") {
			return true
		}
	}
	return false
}

// PostProcess returns the cleaned items. The input slice is not modified and the
// result never has more items than the input.
func (s Strategy) PostProcess(items []receipts.ReceiptItem) []receipts.ReceiptItem {
	out := receipts.CloneItems(items)
	for _, st := range s.steps {
		out = st(out)
	}
	return out
}

var (
	plainNames     = tidyNames(false)
	biedronkaNames = tidyNames(true)

	Generic = Strategy{
		Kind:  KindGeneric,
		steps: []step{stripGarbage},
	}

	Lidl = Strategy{
		Kind:    KindLidl,
		markers: []string{"lidl"},
		steps: []step{
			stripGarbage,
			cleanNames(plainNames),
			splitMultipliers(plainNames),
			mergeDiscounts(discountPattern(`lidl plus`, `kupon`)),
		},
	}

	Biedronka = Strategy{
		Kind:    KindBiedronka,
		markers: []string{"biedronka", "jeronimo martins"},
		steps: []step{
			stripGarbage,
			cleanNames(biedronkaNames),
			splitMultipliers(biedronkaNames),
			mergeDiscounts(discountPattern(`moja biedronka`, `karta mb`, `karta moja biedronka`)),
		},
	}

	Auchan = Strategy{
		Kind:    KindAuchan,
		markers: []string{"auchan"},
		steps: []step{
			stripGarbage,
			cleanNames(plainNames),
			splitMultipliers(plainNames),
			mergeDiscounts(discountPattern(`karta auchan`, `skarbonka`)),
		},
	}
)

// Resolver selects the strategy for a receipt.
type Resolver struct {
	kb    *knowledge.Base
	table []Strategy
}

// NewResolver builds the detector table. kb may be nil; it adds shop aliases
// such as company names printed instead of the brand.
func NewResolver(kb *knowledge.Base) *Resolver {
	return &Resolver{
		kb:    kb,
		table: []Strategy{Lidl, Biedronka, Auchan},
	}
}

// Select returns the first strategy whose detector matches, or Generic.
func (r *Resolver) Select(shopGuess *string) Strategy {
	candidates := []*string{shopGuess}
	if shopGuess != nil && r.kb != nil {
		if canonical, ok := r.kb.NormalizeShop(*shopGuess); ok {
			candidates = append(candidates, &canonical)
		}
	}

	for _, s := range r.table {
		for _, c := range candidates {
			if s.Detect(c) {
				return s
			}
		}
	}
	return Generic
}

func discountPattern(shopMarkers ...string) *regexp.Regexp {
	words := append([]string{`rabat`, `opust`, `upust`, `promocja`, `znizka`, `obnizka`}, shopMarkers...)
	return regexp.MustCompile(`^(` + strings.Join(words, "|") + `)\b`)
}
