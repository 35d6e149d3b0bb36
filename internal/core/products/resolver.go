// Package products resolves raw receipt line names to canonical products.
package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PocketPalCo/receipts-service/internal/core/ai"
	"github.com/PocketPalCo/receipts-service/internal/core/cache"
	"github.com/PocketPalCo/receipts-service/internal/core/knowledge"
	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

var tracer = otel.Tracer("products-resolver")

// ErrNoClassifier is returned by ResolveRemote when no language model is configured.
var ErrNoClassifier = errors.New("no product classifier configured")

// maxLLMConfidence keeps model answers below the certainty of alias and rule matches.
const maxLLMConfidence = 0.99

// Classifier asks a language model for the canonical product of a raw name.
type Classifier interface {
	ClassifyProduct(ctx context.Context, rawName string, categories []string) (*ai.ProductClassification, error)
}

var perishableCategories = map[string]bool{
	"Nabiał":             true,
	"Pieczywo":           true,
	"Mięso i wędliny":    true,
	"Ryby i owoce morza": true,
	"Owoce":              true,
	"Warzywa":            true,
	"Dania gotowe":       true,
}

// Resolver resolves names through the alias table, the static rules, the
// normalization cache and finally the classifier, in that order.
type Resolver struct {
	kb         *knowledge.Base
	rules      []Rule
	cache      *cache.NormalizationCache
	classifier Classifier
	logger     *slog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithRules replaces DefaultRules.
func WithRules(rules []Rule) Option {
	return func(r *Resolver) { r.rules = rules }
}

func NewResolver(kb *knowledge.Base, c *cache.NormalizationCache, classifier Classifier, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		kb:         kb,
		rules:      DefaultRules,
		cache:      c,
		classifier: classifier,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails: a name nothing can classify gets receipts.Fallback.
func (r *Resolver) Resolve(ctx context.Context, rawName string) receipts.ProductMatch {
	if m, ok := r.ResolveLocal(ctx, rawName); ok {
		return m
	}
	m, err := r.ResolveRemote(ctx, rawName)
	if err != nil {
		r.logger.Warn("Product resolution failed, using fallback", "raw_name", rawName, "error", err)
		return receipts.Fallback(rawName)
	}
	return m
}

// ResolveLocal tries every step that needs no language model.
func (r *Resolver) ResolveLocal(ctx context.Context, rawName string) (receipts.ProductMatch, bool) {
	if p, ok := r.kb.Lookup(rawName); ok {
		return receipts.ProductMatch{
			CanonicalName: p.CanonicalName,
			Category:      p.Category,
			Confidence:    1,
			Source:        receipts.SourceAlias,
			Perishable:    p.Perishable,
		}, true
	}

	if rule, ok := matchRule(r.rules, rawName); ok {
		perishable := rule.Perishable
		if p, known := r.kb.Product(rule.CanonicalName); known {
			perishable = p.Perishable
		}
		return receipts.ProductMatch{
			CanonicalName: rule.CanonicalName,
			Category:      rule.Category,
			Confidence:    1,
			Source:        receipts.SourceStaticRule,
			Perishable:    perishable,
		}, true
	}

	if r.cache != nil {
		if m, ok := r.cache.Lookup(ctx, rawName); ok {
			return m, true
		}
	}
	return receipts.ProductMatch{}, false
}

// ResolveRemote asks the classifier and caches a successful answer. Errors are
// returned unchanged so that callers decide how to degrade.
func (r *Resolver) ResolveRemote(ctx context.Context, rawName string) (receipts.ProductMatch, error) {
	if r.classifier == nil {
		return receipts.ProductMatch{}, ErrNoClassifier
	}

	ctx, span := tracer.Start(ctx, "products.ResolveRemote")
	defer span.End()
	span.SetAttributes(attribute.String("raw_name", rawName))

	answer, err := r.classifier.ClassifyProduct(ctx, rawName, r.kb.Categories())
	if err != nil {
		span.RecordError(err)
		return receipts.ProductMatch{}, fmt.Errorf("failed to classify product: %w", err)
	}

	m := r.fromClassification(rawName, answer)
	if r.cache != nil {
		r.cache.Store(ctx, rawName, m)
	}

	r.logger.Debug("Product classified",
		"raw_name", rawName,
		"canonical_name", m.CanonicalName,
		"category", m.Category,
		"confidence", m.Confidence)
	return m, nil
}

func (r *Resolver) fromClassification(rawName string, c *ai.ProductClassification) receipts.ProductMatch {
	name := normalize.CollapseWhitespace(c.CanonicalName)
	if name == "" {
		name = normalize.CollapseWhitespace(rawName)
	}

	category, ok := r.kb.CanonicalCategory(c.Category)
	if !ok {
		category = knowledge.OtherCategory
	}

	confidence := c.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > maxLLMConfidence {
		confidence = maxLLMConfidence
	}

	perishable := perishableCategories[category]
	if p, known := r.kb.Product(name); known {
		perishable = p.Perishable
	}

	return receipts.ProductMatch{
		CanonicalName: name,
		Category:      category,
		Confidence:    confidence,
		Source:        receipts.SourceLLM,
		Perishable:    perishable,
	}
}
