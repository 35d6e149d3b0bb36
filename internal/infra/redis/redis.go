// Package redis provides the shared tier of the normalization cache.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"

	"github.com/PocketPalCo/receipts-service/config"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

var tracer = otel.Tracer("redis-store")

const keyPrefix = "receipts:norm:"

func Init(ctx context.Context, cfg config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr(),
		Username: cfg.RedisUser,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDb,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return client, nil
}

// Cmdable is the part of the go-redis client used by RemoteStore.
type Cmdable interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// RemoteStore keeps product matches under hashed keys with a TTL.
type RemoteStore struct {
	client Cmdable
	ttl    time.Duration
}

func NewRemoteStore(client Cmdable, ttl time.Duration) *RemoteStore {
	return &RemoteStore{client: client, ttl: ttl}
}

// Key returns the redis key for a normalized product name.
func Key(normalizedName string) string {
	sum := sha256.Sum256([]byte(normalizedName))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (s *RemoteStore) Get(ctx context.Context, key string) (*receipts.ProductMatch, error) {
	ctx, span := tracer.Start(ctx, "redis.Get")
	defer span.End()

	data, err := s.client.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read cached match: %w", err)
	}

	var m receipts.ProductMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode cached match: %w", err)
	}
	return &m, nil
}

func (s *RemoteStore) Set(ctx context.Context, key string, match receipts.ProductMatch) error {
	ctx, span := tracer.Start(ctx, "redis.Set")
	defer span.End()

	data, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("failed to encode match: %w", err)
	}
	if err := s.client.Set(ctx, Key(key), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write cached match: %w", err)
	}
	return nil
}
