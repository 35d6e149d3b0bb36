package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
)

type fakeResolver struct {
	local    map[string]receipts.ProductMatch
	fail     map[string]bool
	delay    time.Duration
	block    bool
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (f *fakeResolver) ResolveLocal(_ context.Context, rawName string) (receipts.ProductMatch, bool) {
	m, ok := f.local[rawName]
	return m, ok
}

func (f *fakeResolver) ResolveRemote(ctx context.Context, rawName string) (receipts.ProductMatch, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, rawName)
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.block {
		<-ctx.Done()
		return receipts.ProductMatch{}, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail[rawName] {
		return receipts.ProductMatch{}, errors.New("model unavailable")
	}
	return receipts.ProductMatch{
		CanonicalName: strings.ToUpper(rawName),
		Category:      "Inne",
		Confidence:    0.8,
		Source:        receipts.SourceLLM,
	}, nil
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("produkt %d", i)
	}
	return out
}

func TestResolveNamesKeepsOrderAndBoundsConcurrency(t *testing.T) {
	r := &fakeResolver{delay: 5 * time.Millisecond}
	limiter := NewLimiter(10)
	n := NewNormalizer(r, limiter, slog.Default(), WithConcurrency(10), WithBatchSize(50))

	in := names(50)
	out, degraded := n.ResolveNames(context.Background(), in)

	require.Len(t, out, 50)
	assert.False(t, degraded)
	for i, m := range out {
		assert.Equal(t, strings.ToUpper(in[i]), m.CanonicalName)
	}
	assert.Equal(t, int32(50), r.calls.Load())
	assert.LessOrEqual(t, int(r.peak.Load()), 10)
	assert.LessOrEqual(t, limiter.Peak(), 10)
}

func TestResolveNamesDeduplicates(t *testing.T) {
	r := &fakeResolver{}
	n := NewNormalizer(r, NewLimiter(4), slog.Default())

	out, _ := n.ResolveNames(context.Background(), []string{"Mleko 2%", "MLEKO  2%", "Chleb", "mleko 2%"})

	require.Len(t, out, 4)
	assert.Equal(t, int32(2), r.calls.Load())
	assert.Equal(t, out[0], out[1])
	assert.Equal(t, out[0], out[3])
	assert.Equal(t, "CHLEB", out[2].CanonicalName)
}

func TestResolveNamesUsesLocalMatches(t *testing.T) {
	r := &fakeResolver{local: map[string]receipts.ProductMatch{
		"Masło": {CanonicalName: "Masło", Category: "Nabiał", Confidence: 1, Source: receipts.SourceAlias},
	}}
	n := NewNormalizer(r, NewLimiter(2), slog.Default())

	out, _ := n.ResolveNames(context.Background(), []string{"Masło", "Kawa"})

	assert.Equal(t, receipts.SourceAlias, out[0].Source)
	assert.Equal(t, "KAWA", out[1].CanonicalName)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestResolveNamesSplitsIntoBatches(t *testing.T) {
	r := &fakeResolver{}
	n := NewNormalizer(r, NewLimiter(3), slog.Default(), WithBatchSize(5), WithConcurrency(3))

	in := names(12)
	out, degraded := n.ResolveNames(context.Background(), in)

	assert.False(t, degraded)
	for i, m := range out {
		assert.Equal(t, strings.ToUpper(in[i]), m.CanonicalName)
	}
	assert.Equal(t, int32(12), r.calls.Load())
}

func TestResolveNamesFallsBackPerItem(t *testing.T) {
	r := &fakeResolver{fail: map[string]bool{"produkt 1": true}}
	n := NewNormalizer(r, NewLimiter(2), slog.Default())

	out, degraded := n.ResolveNames(context.Background(), names(3))

	assert.False(t, degraded)
	assert.Equal(t, "PRODUKT 0", out[0].CanonicalName)
	assert.Equal(t, receipts.Fallback("produkt 1"), out[1])
	assert.Equal(t, "PRODUKT 2", out[2].CanonicalName)
}

func TestResolveNamesDeadlineDegrades(t *testing.T) {
	r := &fakeResolver{block: true}
	n := NewNormalizer(r, NewLimiter(2), slog.Default(), WithConcurrency(2))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out, degraded := n.ResolveNames(ctx, names(6))

	assert.True(t, degraded)
	require.Len(t, out, 6)
	for i, m := range out {
		assert.Equal(t, receipts.UnknownCategory, m.Category, "item %d", i)
		assert.Zero(t, m.Confidence)
	}
}

func TestResolveItemsSkipsSyntheticLines(t *testing.T) {
	r := &fakeResolver{}
	n := NewNormalizer(r, NewLimiter(2), slog.Default())

	items := []receipts.ReceiptItem{
		{RawName: "Kawa", Quantity: decimal.NewFromInt(1)},
		{RawName: receipts.AdjustmentItemName, Quantity: decimal.NewFromInt(1), Synthetic: true},
		{RawName: "Herbata", Quantity: decimal.NewFromInt(1)},
	}

	out, degraded := n.ResolveItems(context.Background(), items)

	assert.False(t, degraded)
	require.Len(t, out, 3)
	require.NotNil(t, out[0].Product)
	assert.Equal(t, "KAWA", out[0].Product.CanonicalName)
	assert.Nil(t, out[1].Product)
	require.NotNil(t, out[2].Product)
	assert.Equal(t, "HERBATA", out[2].Product.CanonicalName)
	assert.Nil(t, items[0].Product, "input is not modified")
}

func TestLimiterIsSharedAcrossNormalizers(t *testing.T) {
	r := &fakeResolver{delay: 5 * time.Millisecond}
	limiter := NewLimiter(3)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := NewNormalizer(r, limiter, slog.Default(), WithConcurrency(10))
			in := make([]string, 10)
			for j := range in {
				in[j] = fmt.Sprintf("paragon %d pozycja %d", i, j)
			}
			n.ResolveNames(context.Background(), in)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(40), r.calls.Load())
	assert.LessOrEqual(t, int(r.peak.Load()), 3)
	assert.LessOrEqual(t, limiter.Peak(), 3)
}

func TestLimiterReturnsContextError(t *testing.T) {
	l := NewLimiter(1)
	acquired := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.Do(context.Background(), func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	called := false
	err := l.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	assert.Equal(t, 1, l.Size())
}
