package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"popsim/internal/model"

	"github.com/redis/go-redis/v9"
)

// StatsCache holds computed statistics keyed by result id
type StatsCache interface {
	GetSimulationStats(ctx context.Context, simID string) (*model.SimulationStats, error)
	SetSimulationStats(ctx context.Context, simID string, stats *model.SimulationStats) error
	GetPollStats(ctx context.Context, pollID string) (*model.PollStats, error)
	SetPollStats(ctx context.Context, pollID string, stats *model.PollStats) error
	Invalidate(ctx context.Context, id string) error
}

type statsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache creates a Redis statistics cache
func NewStatsCache(client *redis.Client) StatsCache {
	return &statsCache{
		client: client,
		ttl:    DefaultTTL,
	}
}

func (c *statsCache) simKey(id string) string {
	return fmt.Sprintf("sim:%s:stats", id)
}

func (c *statsCache) pollKey(id string) string {
	return fmt.Sprintf("poll:%s:stats", id)
}

func (c *statsCache) GetSimulationStats(ctx context.Context, simID string) (*model.SimulationStats, error) {
	var stats model.SimulationStats
	ok, err := c.get(ctx, c.simKey(simID), &stats)
	if err != nil || !ok {
		return nil, err
	}
	return &stats, nil
}

func (c *statsCache) SetSimulationStats(ctx context.Context, simID string, stats *model.SimulationStats) error {
	return c.set(ctx, c.simKey(simID), stats)
}

func (c *statsCache) GetPollStats(ctx context.Context, pollID string) (*model.PollStats, error) {
	var stats model.PollStats
	ok, err := c.get(ctx, c.pollKey(pollID), &stats)
	if err != nil || !ok {
		return nil, err
	}
	return &stats, nil
}

func (c *statsCache) SetPollStats(ctx context.Context, pollID string, stats *model.PollStats) error {
	return c.set(ctx, c.pollKey(pollID), stats)
}

func (c *statsCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.simKey(id), c.pollKey(id)).Err()
}

func (c *statsCache) get(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, err
	}
	return true, nil
}

func (c *statsCache) set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
