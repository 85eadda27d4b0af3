package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"popsim/internal/model"
)

type memoryRunCache struct {
	mu   sync.RWMutex
	runs map[string]model.RunStatus
}

// NewMemoryRunCache creates a process-local run status cache
func NewMemoryRunCache() RunCache {
	return &memoryRunCache{runs: make(map[string]model.RunStatus)}
}

func (c *memoryRunCache) SetStatus(_ context.Context, status *model.RunStatus) error {
	status.UpdatedAt = time.Now()
	c.mu.Lock()
	c.runs[status.RunID] = *status
	c.mu.Unlock()
	return nil
}

func (c *memoryRunCache) GetStatus(_ context.Context, runID string) (*model.RunStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.runs[runID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *memoryRunCache) Recent(_ context.Context, limit int) ([]*model.RunStatus, error) {
	c.mu.RLock()
	out := make([]*model.RunStatus, 0, len(c.runs))
	for _, s := range c.runs {
		s := s
		out = append(out, &s)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *memoryRunCache) Delete(_ context.Context, runID string) error {
	c.mu.Lock()
	delete(c.runs, runID)
	c.mu.Unlock()
	return nil
}

type memoryStatsCache struct {
	mu    sync.RWMutex
	sims  map[string]model.SimulationStats
	polls map[string]model.PollStats
}

// NewMemoryStatsCache creates a process-local statistics cache
func NewMemoryStatsCache() StatsCache {
	return &memoryStatsCache{
		sims:  make(map[string]model.SimulationStats),
		polls: make(map[string]model.PollStats),
	}
}

func (c *memoryStatsCache) GetSimulationStats(_ context.Context, simID string) (*model.SimulationStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sims[simID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *memoryStatsCache) SetSimulationStats(_ context.Context, simID string, stats *model.SimulationStats) error {
	c.mu.Lock()
	c.sims[simID] = *stats
	c.mu.Unlock()
	return nil
}

func (c *memoryStatsCache) GetPollStats(_ context.Context, pollID string) (*model.PollStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.polls[pollID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *memoryStatsCache) SetPollStats(_ context.Context, pollID string, stats *model.PollStats) error {
	c.mu.Lock()
	c.polls[pollID] = *stats
	c.mu.Unlock()
	return nil
}

func (c *memoryStatsCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.sims, id)
	delete(c.polls, id)
	c.mu.Unlock()
	return nil
}
