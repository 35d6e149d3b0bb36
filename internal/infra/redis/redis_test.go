package redis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

type fakeClient struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(ctx context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := goredis.NewStringCmd(ctx, "get", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(goredis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := goredis.NewStatusCmd(ctx, "set", key, value)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewRemoteStore(client, time.Hour)

	match := receipts.ProductMatch{CanonicalName: "Mleko", Category: "Nabiał", Confidence: 0.9, Source: receipts.SourceLLM, Perishable: true}
	require.NoError(t, store.Set(ctx, "mleko uht 3.2%", match))

	got, err := store.Get(ctx, "mleko uht 3.2%")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, match, *got)

	key := Key("mleko uht 3.2%")
	assert.True(t, strings.HasPrefix(key, "receipts:norm:"))
	assert.Equal(t, time.Hour, client.ttls[key])
}

func TestRemoteStoreMiss(t *testing.T) {
	got, err := NewRemoteStore(newFakeClient(), time.Hour).Get(context.Background(), "nieznany")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoteStoreErrors(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")
	store := NewRemoteStore(client, time.Hour)

	_, err := store.Get(context.Background(), "x")
	assert.Error(t, err)
	assert.Error(t, store.Set(context.Background(), "x", receipts.ProductMatch{}))
}

func TestKeyIsStable(t *testing.T) {
	assert.Equal(t, Key("chleb"), Key("chleb"))
	assert.NotEqual(t, Key("chleb"), Key("chleb razowy"))
	assert.Len(t, Key("chleb"), len("receipts:norm:")+64)
}
