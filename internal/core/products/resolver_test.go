package products

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PocketPalCo/receipts-service/internal/core/ai"
	"github.com/PocketPalCo/receipts-service/internal/core/cache"
	"github.com/PocketPalCo/receipts-service/internal/core/knowledge"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

type fakeClassifier struct {
	answer *ai.ProductClassification
	err    error
	calls  atomic.Int32
}

func (f *fakeClassifier) ClassifyProduct(_ context.Context, _ string, _ []string) (*ai.ProductClassification, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	a := *f.answer
	return &a, nil
}

func newResolver(kb *knowledge.Base, c *cache.NormalizationCache, cl Classifier, opts ...Option) *Resolver {
	return NewResolver(kb, c, cl, slog.Default(), opts...)
}

func TestResolveAlias(t *testing.T) {
	cl := &fakeClassifier{err: errors.New("must not be called")}
	r := newResolver(knowledge.Default(), nil, cl)

	m := r.Resolve(context.Background(), "MASLO EXTRA 200G")

	assert.Equal(t, "Masło", m.CanonicalName)
	assert.Equal(t, "Nabiał", m.Category)
	assert.Equal(t, 1.0, m.Confidence)
	assert.Equal(t, receipts.SourceAlias, m.Source)
	assert.True(t, m.Perishable)
	assert.Zero(t, cl.calls.Load())
}

func TestResolveStaticRule(t *testing.T) {
	cl := &fakeClassifier{err: errors.New("must not be called")}
	r := newResolver(knowledge.Default(), nil, cl)

	m := r.Resolve(context.Background(), "Piwo Tyskie 0,5L but.")

	assert.Equal(t, "Piwo", m.CanonicalName)
	assert.Equal(t, "Alkohol", m.Category)
	assert.Equal(t, receipts.SourceStaticRule, m.Source)
	assert.Equal(t, 1.0, m.Confidence)
	assert.Zero(t, cl.calls.Load())
}

func TestRulesFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Keywords: []string{"ser"}, CanonicalName: "Ser", Category: "Nabiał"},
		{Keywords: []string{"ser"}, CanonicalName: "Inny ser", Category: "Inne"},
	}
	r := newResolver(knowledge.New(nil), nil, nil, WithRules(rules))

	m, ok := r.ResolveLocal(context.Background(), "SER gouda")
	require.True(t, ok)
	assert.Equal(t, "Ser", m.CanonicalName)

	_, ok = r.ResolveLocal(context.Background(), "serwetki")
	assert.False(t, ok, "keywords match whole words only")
}

func TestResolveUsesSimilarCacheEntryWithoutCallingModel(t *testing.T) {
	ctx := context.Background()
	kb := knowledge.Default()
	c := cache.New(kb)
	first := &fakeClassifier{answer: &ai.ProductClassification{CanonicalName: "Mleko UHT 3,2%", Category: "nabiał", Confidence: 0.87}}

	r := newResolver(kb, c, first, WithRules(nil))
	m := r.Resolve(ctx, "Mleko UHT 3.2%")
	require.Equal(t, int32(1), first.calls.Load())
	assert.Equal(t, "Nabiał", m.Category)
	assert.Equal(t, receipts.SourceLLM, m.Source)

	second := &fakeClassifier{err: errors.New("must not be called")}
	r = newResolver(kb, c, second, WithRules(nil))
	got := r.Resolve(ctx, "mleko uht 3,2% łaciate")

	assert.Zero(t, second.calls.Load())
	assert.Equal(t, "Mleko UHT 3,2%", got.CanonicalName)
	assert.Equal(t, 0.87, got.Confidence)
}

func TestResolveLLMAnswerIsClamped(t *testing.T) {
	cl := &fakeClassifier{answer: &ai.ProductClassification{CanonicalName: "  Świeca  zapachowa ", Category: "Dekoracje", Confidence: 1.0}}
	r := newResolver(knowledge.Default(), nil, cl)

	m := r.Resolve(context.Background(), "SWIECA ZAPACH. WANILIA")

	assert.Equal(t, "Świeca zapachowa", m.CanonicalName)
	assert.Equal(t, knowledge.OtherCategory, m.Category)
	assert.Equal(t, maxLLMConfidence, m.Confidence)
	assert.Equal(t, receipts.SourceLLM, m.Source)
	assert.False(t, m.Perishable)
}

func TestResolveFallsBackOnModelFailure(t *testing.T) {
	ctx := context.Background()
	kb := knowledge.Default()
	c := cache.New(kb)
	cl := &fakeClassifier{err: ai.ErrMalformedResponse}
	r := newResolver(kb, c, cl)

	m := r.Resolve(ctx, "XYZ 123 QWE")

	assert.Equal(t, receipts.Fallback("XYZ 123 QWE"), m)
	assert.Equal(t, receipts.UnknownCategory, m.Category)
	assert.Zero(t, c.Len(), "fallbacks are not cached")
}

func TestResolveRemoteWithoutClassifier(t *testing.T) {
	r := newResolver(knowledge.Default(), nil, nil)

	_, err := r.ResolveRemote(context.Background(), "cokolwiek")
	assert.ErrorIs(t, err, ErrNoClassifier)
	assert.Equal(t, receipts.UnknownCategory, r.Resolve(context.Background(), "cokolwiek").Category)
}

type staticCatalog []*CatalogProduct

func (s staticCatalog) GetAllProducts(context.Context) ([]*CatalogProduct, error) {
	return s, nil
}

func TestLoadCatalog(t *testing.T) {
	kb := knowledge.Default()
	n, err := LoadCatalog(context.Background(), kb, staticCatalog{
		{CanonicalName: "Kombucha", Category: "napoje", Aliases: []string{"kombucha imbir", "kombucha 330ml"}},
		{CanonicalName: "Grzyby suszone", Category: "Grzyby", Aliases: []string{"grzyby susz"}},
		{CanonicalName: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, ok := kb.Lookup("KOMBUCHA 330ML")
	require.True(t, ok)
	assert.Equal(t, "Napoje", p.Category)

	p, ok = kb.Lookup("grzyby susz")
	require.True(t, ok)
	assert.Equal(t, knowledge.OtherCategory, p.Category)
}
