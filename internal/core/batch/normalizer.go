package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/PocketPalCo/receipts-service/internal/core/normalize"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

var tracer = otel.Tracer("batch-normalizer")

const (
	DefaultBatchSize   = 50
	DefaultConcurrency = 10
)

// ItemResolver is implemented by products.Resolver.
type ItemResolver interface {
	ResolveLocal(ctx context.Context, rawName string) (receipts.ProductMatch, bool)
	ResolveRemote(ctx context.Context, rawName string) (receipts.ProductMatch, error)
}

// Normalizer resolves line names in deduplicated batches.
type Normalizer struct {
	resolver    ItemResolver
	limiter     *Limiter
	logger      *slog.Logger
	batchSize   int
	concurrency int

	remoteCalls metric.Int64Counter
	fallbacks   metric.Int64Counter
	duration    metric.Float64Histogram
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithBatchSize caps how many names are sent through one worker pool.
func WithBatchSize(n int) Option {
	return func(b *Normalizer) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithConcurrency sets the worker pool width per batch.
func WithConcurrency(n int) Option {
	return func(b *Normalizer) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func NewNormalizer(resolver ItemResolver, limiter *Limiter, logger *slog.Logger, opts ...Option) *Normalizer {
	meter := otel.Meter("batch_normalizer")
	remoteCalls, _ := meter.Int64Counter(
		"product_resolution_remote_total",
		metric.WithDescription("Product names sent to the language model"),
		metric.WithUnit("1"),
	)
	fallbacks, _ := meter.Int64Counter(
		"product_resolution_fallback_total",
		metric.WithDescription("Product names that fell back to the unknown category"),
		metric.WithUnit("1"),
	)
	duration, _ := meter.Float64Histogram(
		"product_resolution_batch_duration_seconds",
		metric.WithDescription("Time to resolve all product names of one receipt"),
		metric.WithUnit("s"),
	)

	n := &Normalizer{
		resolver:    resolver,
		limiter:     limiter,
		logger:      logger,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		remoteCalls: remoteCalls,
		fallbacks:   fallbacks,
		duration:    duration,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.limiter == nil {
		n.limiter = NewLimiter(n.concurrency)
	}
	return n
}

// ResolveItems returns copies of items with Product set, in input order.
// Synthetic lines are left unresolved. degraded is true when ctx ended before
// every name was resolved; those names carry the fallback match.
func (n *Normalizer) ResolveItems(ctx context.Context, items []receipts.ReceiptItem) ([]receipts.ReceiptItem, bool) {
	out := receipts.CloneItems(items)

	names := make([]string, 0, len(out))
	positions := make([]int, 0, len(out))
	for i, item := range out {
		if item.Synthetic {
			continue
		}
		names = append(names, item.RawName)
		positions = append(positions, i)
	}

	matches, degraded := n.ResolveNames(ctx, names)
	for j, i := range positions {
		m := matches[j]
		out[i].Product = &m
	}
	return out, degraded
}

// ResolveNames resolves each name; result i belongs to names[i]. Equal names
// (after normalization) are resolved once.
func (n *Normalizer) ResolveNames(ctx context.Context, names []string) ([]receipts.ProductMatch, bool) {
	ctx, span := tracer.Start(ctx, "batch.ResolveNames")
	defer span.End()
	start := time.Now()

	unique := make([]string, 0, len(names))
	slot := make([]int, len(names))
	seen := make(map[string]int, len(names))
	for i, name := range names {
		key := normalize.Key(name)
		if key == "" {
			key = name
		}
		idx, ok := seen[key]
		if !ok {
			idx = len(unique)
			seen[key] = idx
			unique = append(unique, name)
		}
		slot[i] = idx
	}

	resolved := make([]receipts.ProductMatch, len(unique))
	var misses []int
	for i, name := range unique {
		if m, ok := n.resolver.ResolveLocal(ctx, name); ok {
			resolved[i] = m
			continue
		}
		misses = append(misses, i)
	}

	var degraded atomic.Bool
	for startIdx := 0; startIdx < len(misses); startIdx += n.batchSize {
		end := startIdx + n.batchSize
		if end > len(misses) {
			end = len(misses)
		}
		n.runBatch(ctx, unique, misses[startIdx:end], resolved, &degraded)
	}

	out := make([]receipts.ProductMatch, len(names))
	for i := range names {
		out[i] = resolved[slot[i]]
	}

	span.SetAttributes(
		attribute.Int("names", len(names)),
		attribute.Int("unique", len(unique)),
		attribute.Int("remote", len(misses)),
		attribute.Bool("degraded", degraded.Load()),
	)
	n.duration.Record(ctx, time.Since(start).Seconds())

	if degraded.Load() {
		n.logger.Warn("Product resolution degraded, deadline reached",
			"names", len(names),
			"remote", len(misses))
	}
	return out, degraded.Load()
}

// runBatch resolves the unique names at positions idx with a fixed pool of
// workers, each call gated by the shared limiter.
func (n *Normalizer) runBatch(ctx context.Context, unique []string, idx []int, resolved []receipts.ProductMatch, degraded *atomic.Bool) {
	jobs := make(chan int, len(idx))
	for _, i := range idx {
		jobs <- i
	}
	close(jobs)

	workers := n.concurrency
	if workers > len(idx) {
		workers = len(idx)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				resolved[i] = n.resolveRemote(ctx, unique[i], degraded)
			}
		}()
	}
	wg.Wait()
}

func (n *Normalizer) resolveRemote(ctx context.Context, name string, degraded *atomic.Bool) receipts.ProductMatch {
	if ctx.Err() != nil {
		degraded.Store(true)
		n.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "deadline")))
		return receipts.Fallback(name)
	}

	var match receipts.ProductMatch
	err := n.limiter.Do(ctx, func(ctx context.Context) error {
		n.remoteCalls.Add(ctx, 1)
		m, err := n.resolver.ResolveRemote(ctx, name)
		if err != nil {
			return err
		}
		match = m
		return nil
	})
	if err == nil {
		return match
	}

	reason := "error"
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		degraded.Store(true)
		reason = "deadline"
	}
	n.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	n.logger.Warn("Product resolution failed, using fallback", "raw_name", name, "error", err)
	return receipts.Fallback(name)
}
