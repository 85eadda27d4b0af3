package cache

import (
	"context"
	"testing"
	"time"

	"popsim/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRunCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	c := NewRunCache(client)

	missing, err := c.GetStatus(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, c.SetStatus(ctx, &model.RunStatus{RunID: "r1", Kind: model.RunSimulation, State: model.RunRunning, Stage: "reactions", Current: 3, Total: 10}))
	got, err := c.GetStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Current)
	assert.Equal(t, model.RunRunning, got.State)
	assert.False(t, got.UpdatedAt.IsZero())

	ttl := mr.TTL("run:r1:status")
	assert.Equal(t, DefaultTTL, ttl)
}

func TestRunCacheRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	c := NewRunCache(client)

	require.NoError(t, c.SetStatus(ctx, &model.RunStatus{RunID: "a"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.SetStatus(ctx, &model.RunStatus{RunID: "b"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.SetStatus(ctx, &model.RunStatus{RunID: "c"}))

	mr.Del("run:b:status")

	recent, err := c.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].RunID)
	assert.Equal(t, "a", recent[1].RunID)

	require.NoError(t, c.Delete(ctx, "c"))
	recent, _ = c.Recent(ctx, 10)
	assert.Len(t, recent, 1)
}

func TestStatsCache(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedis(t)
	c := NewStatsCache(client)

	stats := &model.SimulationStats{Global: model.ReactionStats{Count: 4, MeanStanceLast: 51.5}}
	require.NoError(t, c.SetSimulationStats(ctx, "s1", stats))
	got, err := c.GetSimulationStats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Global.Count)

	require.NoError(t, c.SetPollStats(ctx, "p1", &model.PollStats{Overall: model.PollBreakdown{Responses: 7}}))
	p, err := c.GetPollStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Overall.Responses)

	require.NoError(t, c.Invalidate(ctx, "s1"))
	got, err = c.GetSimulationStats(ctx, "s1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCaches(t *testing.T) {
	ctx := context.Background()
	rc := NewMemoryRunCache()
	require.NoError(t, rc.SetStatus(ctx, &model.RunStatus{RunID: "r"}))
	s, _ := rc.GetStatus(ctx, "r")
	require.NotNil(t, s)
	recent, _ := rc.Recent(ctx, 0)
	assert.Len(t, recent, 1)

	sc := NewMemoryStatsCache()
	none, err := sc.GetPollStats(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, none)
}
