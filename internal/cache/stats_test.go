package cache

import (
	"context"
	"testing"
	"time"

	"finance_tracker/internal/services/metrics"
)

func TestStatsKey(t *testing.T) {
	now := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	if got := StatsKey("42", now); got != "payments:stats:42:2024-06-01" {
		t.Fatalf("got %q", got)
	}
}

func TestStatsCache_disabledIsMiss(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	var nilCache *StatsCache
	if _, ok := nilCache.Get(ctx, "1", now); ok {
		t.Fatalf("nil cache reported a hit")
	}
	nilCache.Set(ctx, "1", now, metrics.Stats{Total: 1})
	nilCache.Invalidate(ctx, "1", now)

	c := NewStatsCache(nil, 0, nil)
	if c.TTL != DefaultStatsTTL {
		t.Fatalf("ttl: got %s", c.TTL)
	}
	c.Set(ctx, "1", now, metrics.Stats{Total: 1})
	if _, ok := c.Get(ctx, "1", now); ok {
		t.Fatalf("cache without client reported a hit")
	}
}
