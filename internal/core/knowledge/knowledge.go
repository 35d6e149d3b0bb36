// Package knowledge holds the static reference data used while reading receipts:
// product aliases with their category and perishability, the category vocabulary,
// shop name aliases and the brand vocabulary used for fuzzy matching.
package knowledge

import (
	"sort"
	"strings"
	"sync"

	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
)

// OtherCategory is used for classified products that fit no specific category.
const OtherCategory = "Inne"

// Product is what an alias resolves to.
type Product struct {
	CanonicalName string `json:"canonical_name"`
	Category      string `json:"category"`
	Perishable    bool   `json:"perishable"`
	ShelfLifeDays int    `json:"shelf_life_days,omitempty"`
}

// Base is the knowledge base. Lookups are safe for concurrent use.
type Base struct {
	mu         sync.RWMutex
	aliases    map[string]Product
	byName     map[string]Product
	categories []string
	shops      []shop
	brands     map[string]struct{}
}

type shop struct {
	canonical string
	aliases   []string
}

// New returns an empty base with the given category vocabulary.
func New(categories []string) *Base {
	return &Base{
		aliases:    make(map[string]Product),
		byName:     make(map[string]Product),
		categories: append([]string(nil), categories...),
		brands:     make(map[string]struct{}),
	}
}

// Default returns a base loaded with the built-in Polish grocery data.
func Default() *Base {
	b := New(defaultCategories)
	for _, p := range defaultProducts {
		b.AddProduct(p.product, p.aliases...)
	}
	for _, s := range defaultShops {
		b.AddShop(s.canonical, s.aliases...)
	}
	b.AddBrands(defaultBrands...)
	return b
}

// AddProduct registers p under its canonical name and every alias.
func (b *Base) AddProduct(p Product, aliases ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.byName[normalize.Key(p.CanonicalName)] = p
	b.aliases[normalize.Key(p.CanonicalName)] = p
	for _, alias := range aliases {
		if key := normalize.Key(alias); key != "" {
			b.aliases[key] = p
		}
	}
}

// AddShop registers a canonical shop name and the names it is printed as.
func (b *Base) AddShop(canonical string, aliases ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := []string{normalize.Key(canonical)}
	for _, alias := range aliases {
		keys = append(keys, normalize.Key(alias))
	}
	b.shops = append(b.shops, shop{canonical: canonical, aliases: keys})
}

// AddBrands extends the brand vocabulary.
func (b *Base) AddBrands(brands ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, brand := range brands {
		for _, token := range normalize.Tokens(brand) {
			b.brands[token] = struct{}{}
		}
	}
}

// Lookup resolves a raw product name through the alias table.
func (b *Base) Lookup(rawName string) (Product, bool) {
	key := normalize.Key(rawName)
	if key == "" {
		return Product{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.aliases[key]
	return p, ok
}

// Product returns the metadata of a canonical product name.
func (b *Base) Product(canonicalName string) (Product, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.byName[normalize.Key(canonicalName)]
	return p, ok
}

// Categories returns the category vocabulary in display order.
func (b *Base) Categories() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]string(nil), b.categories...)
}

// CanonicalCategory maps category onto the vocabulary, ignoring case and diacritics.
func (b *Base) CanonicalCategory(category string) (string, bool) {
	key := normalize.Key(category)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.categories {
		if normalize.Key(c) == key {
			return c, true
		}
	}
	return "", false
}

// NormalizeShop maps a printed shop name to its canonical form.
func (b *Base) NormalizeShop(name string) (string, bool) {
	padded := " " + normalize.Key(name) + " "
	if strings.TrimSpace(padded) == "" {
		return "", false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.shops {
		for _, alias := range s.aliases {
			if alias != "" && strings.Contains(padded, " "+alias+" ") {
				return s.canonical, true
			}
		}
	}
	return "", false
}

// IsBrand reports whether token belongs to the brand vocabulary.
func (b *Base) IsBrand(token string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.brands[normalize.Key(token)]
	return ok
}

// FuzzyKey reduces a product name to the part that identifies the product:
// normalized tokens without brand names, de-duplicated and sorted. Names that
// differ only in brand, word order, case, diacritics or decimal separator share a key.
func (b *Base) FuzzyKey(name string) string {
	tokens := normalize.Tokens(name)

	b.mu.RLock()
	kept := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, brand := b.brands[t]; brand {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		kept = append(kept, t)
	}
	b.mu.RUnlock()

	if len(kept) == 0 {
		kept = tokens
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}
