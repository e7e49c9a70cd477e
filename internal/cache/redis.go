// Package cache mirrors derived values into Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const statsKey = "plant:stats"

// StatsCache stores the last published GlobalStats snapshot
type StatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStatsCache(client redis.Cmdable, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

func (c *StatsCache) Save(ctx context.Context, stats *models.GlobalStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stats: %w", err)
	}
	return nil
}

// Load returns errs.ErrNotFound when nothing is cached
func (c *StatsCache) Load(ctx context.Context) (*models.GlobalStats, error) {
	val, err := c.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached stats: %w", err)
	}
	var stats models.GlobalStats
	if err := json.Unmarshal(val, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode cached stats: %w", err)
	}
	return &stats, nil
}
