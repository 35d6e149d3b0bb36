package batch

import (
	"context"

	"github.com/PocketPalCo/receipts-service/internal/core/cache"
)

// LimitedEmbedder sends embedding requests through the shared Limiter, so they
// count against the same bound as extraction and classification calls.
type LimitedEmbedder struct {
	embedder cache.Embedder
	limiter  *Limiter
}

func NewLimitedEmbedder(embedder cache.Embedder, limiter *Limiter) *LimitedEmbedder {
	return &LimitedEmbedder{embedder: embedder, limiter: limiter}
}

func (e *LimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := e.limiter.Do(ctx, func(ctx context.Context) error {
		v, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	return vectors, err
}
