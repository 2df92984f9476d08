package insights

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian-books/internal/invoicing"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheVersionBumpChangesKeys(t *testing.T) {
	ctx := context.Background()
	cache := testCache(t)

	before, err := cache.BuildKey(ctx, "insights", "invoice_stats")
	require.NoError(t, err)

	again, err := cache.BuildKey(ctx, "insights", "invoice_stats")
	require.NoError(t, err)
	require.Equal(t, before, again)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "insights", "invoice_stats")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheFetchJSONLoadsOnce(t *testing.T) {
	ctx := context.Background()
	cache := testCache(t)

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return map[string]int{"value": 42}, nil
	}

	var first, second map[string]int
	require.NoError(t, cache.FetchJSON(ctx, "k", &first, loader))
	require.NoError(t, cache.FetchJSON(ctx, "k", &second, loader))

	require.Equal(t, 1, loads)
	require.Equal(t, 42, second["value"])
}

func TestNilCachePassesThrough(t *testing.T) {
	ctx := context.Background()
	var cache *Cache

	key, err := cache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a:b", key)

	var out map[string]string
	err = cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return map[string]string{"ok": "yes"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "yes", out["ok"])

	require.NoError(t, cache.Bump(ctx))
}

func TestStatsServedFromCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	cache := testCache(t)

	source := &staticSource{facts: []InvoiceFact{
		{Status: invoicing.StatusPaid, Total: dec(t, "10.00"), PaymentDate: paidOn(fixedClock())},
	}}
	svc := NewService(source, cache)
	svc.WithNow(fixedClock)

	_, err := svc.GetStats(ctx)
	require.NoError(t, err)
	_, err = svc.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	require.NoError(t, svc.Invalidate(ctx))

	_, err = svc.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}
