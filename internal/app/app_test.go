package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PocketPalCo/receipts-service/config"
	"github.com/PocketPalCo/receipts-service/internal/core/cache"
	"github.com/PocketPalCo/receipts-service/internal/core/pipeline"
)

func TestBuildInMemory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SimilarityThreshold = 0.9
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := Build(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Pipeline)
	require.NotNil(t, c.Service)
	assert.Equal(t, 0.9, c.Cache.Threshold())
	assert.Equal(t, 0, c.Cache.Len())

	_, err = c.Service.ProcessReceipt(context.Background(), pipeline.Input{ID: "empty"})
	assert.ErrorIs(t, err, pipeline.ErrEmptyReceipt)
}

func TestBuildWithRemoteEmbeddings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embeddings = "openai"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := Build(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, cache.DefaultThreshold, c.Cache.Threshold())
}
