package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finance_tracker/internal/services/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultStatsTTL = time.Minute

// StatsCache keeps per-user aggregates for the current day. A nil cache or a
// nil client turns every call into a miss.
type StatsCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logrus.Logger
}

func NewStatsCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StatsCache{Client: client, TTL: ttl, Logger: logger}
}

// StatsKey depends on the day because overdue and monthly totals do.
func StatsKey(userID string, now time.Time) string {
	return fmt.Sprintf("payments:stats:%s:%s", userID, now.Format("2006-01-02"))
}

func (c *StatsCache) enabled() bool {
	return c != nil && c.Client != nil
}

func (c *StatsCache) Get(ctx context.Context, userID string, now time.Time) (metrics.Stats, bool) {
	if !c.enabled() {
		return metrics.Stats{}, false
	}
	key := StatsKey(userID, now)

	raw, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return metrics.Stats{}, false
	}
	if err != nil {
		c.Logger.Printf("[CACHE][STATS][ERR] get key=%s err=%v", key, err)
		return metrics.Stats{}, false
	}

	var st metrics.Stats
	if err := json.Unmarshal(raw, &st); err != nil {
		c.Logger.Printf("[CACHE][STATS][WARN] bad payload key=%s err=%v", key, err)
		return metrics.Stats{}, false
	}
	return st, true
}

func (c *StatsCache) Set(ctx context.Context, userID string, now time.Time, st metrics.Stats) {
	if !c.enabled() {
		return
	}
	key := StatsKey(userID, now)

	b, err := json.Marshal(st)
	if err != nil {
		c.Logger.Printf("[CACHE][STATS][ERR] marshal key=%s err=%v", key, err)
		return
	}
	if err := c.Client.Set(ctx, key, b, c.TTL).Err(); err != nil {
		c.Logger.Printf("[CACHE][STATS][ERR] set key=%s err=%v", key, err)
	}
}

func (c *StatsCache) Invalidate(ctx context.Context, userID string, now time.Time) {
	if !c.enabled() {
		return
	}
	key := StatsKey(userID, now)
	if err := c.Client.Del(ctx, key).Err(); err != nil {
		c.Logger.Printf("[CACHE][STATS][ERR] del key=%s err=%v", key, err)
	}
}
