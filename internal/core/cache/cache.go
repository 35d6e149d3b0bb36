// Package cache remembers product resolutions by exact normalized name and by
// similarity of the name's fuzzy key.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/PocketPalCo/receipts-service/internal/core/knowledge"
	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

// DefaultThreshold is the minimum cosine similarity accepted as the same product.
const DefaultThreshold = 0.94

var errUnexpectedVectors = errors.New("embedder returned unexpected number of vectors")

// RemoteStore is a shared exact-match tier. Get returns (nil, nil) on a miss.
type RemoteStore interface {
	Get(ctx context.Context, key string) (*receipts.ProductMatch, error)
	Set(ctx context.Context, key string, match receipts.ProductMatch) error
}

type indexEntry struct {
	fuzzyKey string
	vector   []float32
	match    receipts.ProductMatch
}

// NormalizationCache is safe for concurrent use. Reads never take a lock: the
// exact map is a sync.Map and the similarity index is an immutable slice swapped
// atomically on every write. Writes are serialized and the last writer wins.
type NormalizationCache struct {
	kb        *knowledge.Base
	embedder  Embedder
	remote    RemoteStore
	threshold float64
	logger    *slog.Logger

	exact   sync.Map // normalize.Key -> receipts.ProductMatch
	index   atomic.Pointer[[]indexEntry]
	writeMu sync.Mutex

	lookups metric.Int64Counter
}

// Option customizes a NormalizationCache.
type Option func(*NormalizationCache)

// WithEmbedder replaces the offline trigram embedder.
func WithEmbedder(e Embedder) Option {
	return func(c *NormalizationCache) { c.embedder = e }
}

// WithRemoteStore adds a shared exact-match tier behind the local map.
func WithRemoteStore(r RemoteStore) Option {
	return func(c *NormalizationCache) { c.remote = r }
}

// WithThreshold sets the minimum cosine similarity; values outside (0, 1] are ignored.
func WithThreshold(t float64) Option {
	return func(c *NormalizationCache) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithLogger sets the logger for backend failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *NormalizationCache) { c.logger = l }
}

func New(kb *knowledge.Base, opts ...Option) *NormalizationCache {
	meter := otel.Meter("normalization_cache")
	lookups, _ := meter.Int64Counter(
		"normalization_cache_lookups_total",
		metric.WithDescription("Normalization cache lookups by result"),
		metric.WithUnit("1"),
	)

	c := &NormalizationCache{
		kb:        kb,
		embedder:  TrigramEmbedder{},
		threshold: DefaultThreshold,
		logger:    slog.Default(),
		lookups:   lookups,
	}
	for _, opt := range opts {
		opt(c)
	}
	empty := make([]indexEntry, 0)
	c.index.Store(&empty)
	return c
}

// Threshold returns the similarity threshold in use.
func (c *NormalizationCache) Threshold() float64 {
	return c.threshold
}

// Len returns the number of entries in the similarity index.
func (c *NormalizationCache) Len() int {
	return len(*c.index.Load())
}

// Lookup tries the exact key, then the remote tier, then similarity.
// The returned match keeps the confidence it was stored with.
func (c *NormalizationCache) Lookup(ctx context.Context, rawName string) (receipts.ProductMatch, bool) {
	if m, ok := c.LookupExact(ctx, rawName); ok {
		c.record(ctx, "exact")
		return m, true
	}
	if m, ok := c.LookupSimilar(ctx, rawName); ok {
		c.record(ctx, "similar")
		return m, true
	}
	c.record(ctx, "miss")
	return receipts.ProductMatch{}, false
}

// LookupExact consults the local map and, on a miss, the remote tier.
func (c *NormalizationCache) LookupExact(ctx context.Context, rawName string) (receipts.ProductMatch, bool) {
	key := normalize.Key(rawName)
	if key == "" {
		return receipts.ProductMatch{}, false
	}
	if v, ok := c.exact.Load(key); ok {
		return v.(receipts.ProductMatch), true
	}
	if c.remote == nil {
		return receipts.ProductMatch{}, false
	}

	m, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Remote cache lookup failed", "key", key, "error", err)
		return receipts.ProductMatch{}, false
	}
	if m == nil {
		return receipts.ProductMatch{}, false
	}
	c.storeLocal(ctx, rawName, key, *m)
	return *m, true
}

// LookupSimilar returns the stored match whose fuzzy key is most similar to
// rawName's, if that similarity reaches the threshold.
func (c *NormalizationCache) LookupSimilar(ctx context.Context, rawName string) (receipts.ProductMatch, bool) {
	entries := *c.index.Load()
	if len(entries) == 0 {
		return receipts.ProductMatch{}, false
	}

	fuzzy := c.kb.FuzzyKey(rawName)
	if fuzzy == "" {
		return receipts.ProductMatch{}, false
	}
	for _, e := range entries {
		if e.fuzzyKey == fuzzy {
			return e.match, true
		}
	}

	vec, err := c.embed(ctx, fuzzy)
	if err != nil {
		c.logger.Warn("Embedding failed, skipping similarity lookup", "name", rawName, "error", err)
		return receipts.ProductMatch{}, false
	}

	best, bestScore := -1, 0.0
	for i, e := range entries {
		if score := Cosine(vec, e.vector); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < c.threshold {
		return receipts.ProductMatch{}, false
	}
	return entries[best].match, true
}

// Store records match under rawName's exact key and in the similarity index,
// writing through to the remote tier when one is configured.
func (c *NormalizationCache) Store(ctx context.Context, rawName string, match receipts.ProductMatch) {
	key := normalize.Key(rawName)
	if key == "" {
		return
	}
	c.storeLocal(ctx, rawName, key, match)

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, match); err != nil {
			c.logger.Warn("Remote cache write failed", "key", key, "error", err)
		}
	}
}

func (c *NormalizationCache) storeLocal(ctx context.Context, rawName, key string, match receipts.ProductMatch) {
	c.exact.Store(key, match)

	fuzzy := c.kb.FuzzyKey(rawName)
	if fuzzy == "" {
		return
	}
	vec, err := c.embed(ctx, fuzzy)
	if err != nil {
		c.logger.Warn("Embedding failed, entry not indexed", "name", rawName, "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	current := *c.index.Load()
	next := make([]indexEntry, 0, len(current)+1)
	for _, e := range current {
		if e.fuzzyKey != fuzzy {
			next = append(next, e)
		}
	}
	next = append(next, indexEntry{fuzzyKey: fuzzy, vector: vec, match: match})
	c.index.Store(&next)
}

func (c *NormalizationCache) embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errUnexpectedVectors
	}
	return vecs[0], nil
}

func (c *NormalizationCache) record(ctx context.Context, result string) {
	c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
