// Package cache keeps short-lived run state in Redis: live run status while a
// simulation or poll is generating, and computed statistics for quick reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"popsim/internal/model"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long run state outlives its last update
const DefaultTTL = 24 * time.Hour

const recentRunsKey = "runs:recent"

// RunCache tracks the status of long-running operations
type RunCache interface {
	SetStatus(ctx context.Context, status *model.RunStatus) error
	GetStatus(ctx context.Context, runID string) (*model.RunStatus, error)
	// Recent returns the most recently updated runs, newest first
	Recent(ctx context.Context, limit int) ([]*model.RunStatus, error)
	Delete(ctx context.Context, runID string) error
}

type runCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunCache creates a Redis run status cache
func NewRunCache(client *redis.Client) RunCache {
	return &runCache{
		client: client,
		ttl:    DefaultTTL,
	}
}

func (c *runCache) key(runID string) string {
	return fmt.Sprintf("run:%s:status", runID)
}

func (c *runCache) SetStatus(ctx context.Context, status *model.RunStatus) error {
	status.UpdatedAt = time.Now()
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.key(status.RunID), data, c.ttl)
	pipe.ZAdd(ctx, recentRunsKey, redis.Z{
		Score:  float64(status.UpdatedAt.UnixMilli()),
		Member: status.RunID,
	})
	pipe.Expire(ctx, recentRunsKey, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *runCache) GetStatus(ctx context.Context, runID string) (*model.RunStatus, error) {
	data, err := c.client.Get(ctx, c.key(runID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var status model.RunStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *runCache) Recent(ctx context.Context, limit int) ([]*model.RunStatus, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := c.client.ZRevRange(ctx, recentRunsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.RunStatus, 0, len(ids))
	for _, id := range ids {
		s, err := c.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if s == nil {
			// expired status; drop it from the index
			c.client.ZRem(ctx, recentRunsKey, id)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *runCache) Delete(ctx context.Context, runID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key(runID))
	pipe.ZRem(ctx, recentRunsKey, runID)
	_, err := pipe.Exec(ctx)
	return err
}
