// Package app assembles the receipt pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"github.com/PocketPalCo/receipts-service/config"
	"github.com/PocketPalCo/receipts-service/internal/core/ai"
	"github.com/PocketPalCo/receipts-service/internal/core/batch"
	"github.com/PocketPalCo/receipts-service/internal/core/cache"
	"github.com/PocketPalCo/receipts-service/internal/core/extraction"
	"github.com/PocketPalCo/receipts-service/internal/core/knowledge"
	"github.com/PocketPalCo/receipts-service/internal/core/pipeline"
	"github.com/PocketPalCo/receipts-service/internal/core/products"
	"github.com/PocketPalCo/receipts-service/internal/core/strategy"
	"github.com/PocketPalCo/receipts-service/internal/core/verify"
	"github.com/PocketPalCo/receipts-service/internal/infra/postgres"
	"github.com/PocketPalCo/receipts-service/internal/infra/redis"
)

// Components holds everything Build wires together.
type Components struct {
	Knowledge *knowledge.Base
	Cache     *cache.NormalizationCache
	Pipeline  *pipeline.Pipeline
	Service   *pipeline.Service

	redisClient *goredis.Client
}

// Build wires the pipeline. db may be nil, in which case the catalog is not
// loaded and receipts are not persisted.
func Build(ctx context.Context, cfg config.Config, db postgres.DB, logger *slog.Logger) (*Components, error) {
	pc := cfg.GetPipelineConfig()
	kb := knowledge.Default()

	if db != nil {
		n, err := products.LoadCatalog(ctx, kb, postgres.NewCatalogRepository(db, logger))
		if err != nil {
			logger.Warn("Product catalog not loaded, using built-in knowledge only", "error", err)
		} else {
			logger.Info("Product catalog loaded", "products", n)
		}
	}

	llm := ai.NewOpenAIClient(cfg.GetOpenAIConfig(), logger, ai.WithPromptsDir(cfg.PromptsDir))

	c := &Components{Knowledge: kb}
	limiter := batch.NewLimiter(pc.BatchConcurrency)

	cacheOpts := []cache.Option{
		cache.WithThreshold(pc.SimilarityThreshold),
		cache.WithLogger(logger),
	}
	if cfg.Embeddings == "openai" {
		cacheOpts = append(cacheOpts, cache.WithEmbedder(batch.NewLimitedEmbedder(llm, limiter)))
	}
	if cfg.CacheBackend == "redis" {
		client, err := redis.Init(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.redisClient = client
		cacheOpts = append(cacheOpts, cache.WithRemoteStore(redis.NewRemoteStore(client, pc.CacheTTL)))
	}
	c.Cache = cache.New(kb, cacheOpts...)

	resolver := products.NewResolver(kb, c.Cache, llm, logger)
	normalizer := batch.NewNormalizer(resolver, limiter, logger,
		batch.WithBatchSize(pc.BatchSize),
		batch.WithConcurrency(pc.BatchConcurrency),
	)

	adapter, err := extraction.NewAdapter(llm, llm.Prompts(), logger, pc.MaxExtractedItems)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create extraction adapter: %w", err)
	}

	c.Pipeline = pipeline.New(pipeline.Deps{
		Knowledge:  kb,
		Extractor:  adapter,
		Strategies: strategy.NewResolver(kb),
		Verifier:   verify.NewFromStrings(pc.ItemTolerance, pc.ReceiptTolerance),
		Normalizer: normalizer,
		Limiter:    limiter,
		Logger:     logger,
	},
		pipeline.WithReceiptTimeout(pc.ReceiptTimeout),
		pipeline.WithReceiptConcurrency(pc.ReceiptConcurrency),
	)

	var store pipeline.ReceiptStore
	if db != nil {
		store = postgres.NewReceiptStore(db, logger)
	}
	c.Service = pipeline.NewService(c.Pipeline, store, logger)

	return c, nil
}

// Close releases the remote cache connection.
func (c *Components) Close() {
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
}
