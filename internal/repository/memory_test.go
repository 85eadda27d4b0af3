package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"popsim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClusterReserveIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryClusterRepo()
	require.NoError(t, repo.Create(ctx, &model.Cluster{ID: "c1", ZoneID: "z"}))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		starts []int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start, err := repo.ReserveAgentNumbers(ctx, "c1", 3)
			assert.NoError(t, err)
			mu.Lock()
			starts = append(starts, start)
			mu.Unlock()
		}()
	}
	wg.Wait()

	seen := map[int]bool{}
	for _, s := range starts {
		for n := s; n < s+3; n++ {
			assert.False(t, seen[n], "number %d handed out twice", n)
			seen[n] = true
		}
	}
	c, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 61, c.NextAgentNumber)

	_, err = repo.ReserveAgentNumbers(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryClusterUpdateKeepsCounter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryClusterRepo()
	require.NoError(t, repo.Create(ctx, &model.Cluster{ID: "c1", ZoneID: "z", Name: "Old"}))
	_, err := repo.ReserveAgentNumbers(ctx, "c1", 5)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, &model.Cluster{ID: "c1", ZoneID: "z", Name: "New", NextAgentNumber: 1}))
	c, _ := repo.GetByID(ctx, "c1")
	assert.Equal(t, "New", c.Name)
	assert.Equal(t, 6, c.NextAgentNumber)

	assert.ErrorIs(t, repo.Update(ctx, &model.Cluster{ID: "nope"}), ErrNotFound)
}

func TestReserveAgentNumbersStartsAtOneWithoutCounter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryClusterRepo()
	// stored as older data would be, with no counter
	repo.(*memoryClusterRepo).s.put("legacy", model.Cluster{ID: "legacy", ZoneID: "z"})

	start, err := repo.ReserveAgentNumbers(ctx, "legacy", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, start)

	start, err = repo.ReserveAgentNumbers(ctx, "legacy", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, start)

	assert.Equal(t, 1, firstAgentNumber(0))
	assert.Equal(t, 7, firstAgentNumber(7))
}

func TestMemoryReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAgentRepo()
	require.NoError(t, repo.CreateMany(ctx, []model.Agent{{ID: "a1", ClusterID: "c1", Name: "Ada", Traits: []string{"calm"}}}))

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	got.Name = "Changed"
	got.Traits = []string{"loud"}

	again, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.Name)
	assert.Equal(t, []string{"calm"}, again.Traits)
}

func TestMemoryListByZoneKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryClusterRepo()
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, repo.Create(ctx, &model.Cluster{ID: id, ZoneID: "z1"}))
	}
	require.NoError(t, repo.Create(ctx, &model.Cluster{ID: "x", ZoneID: "z2"}))

	got, err := repo.ListByZone(ctx, "z1")
	require.NoError(t, err)
	ids := []string{}
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)

	all, _ := repo.ListByZone(ctx, "")
	assert.Len(t, all, 4)

	n, _ := repo.DeleteByZone(ctx, "z1")
	assert.Equal(t, int64(3), n)
}

func TestMemoryAgentsRejectDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAgentRepo()
	require.NoError(t, repo.CreateMany(ctx, []model.Agent{
		{ID: "a2", ClusterID: "c1", AgentNumber: 2},
		{ID: "a1", ClusterID: "c1", AgentNumber: 1},
	}))
	assert.Error(t, repo.CreateMany(ctx, []model.Agent{{ID: "a3", ClusterID: "c1", AgentNumber: 2}}))

	agents, err := repo.ListByCluster(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, 1, agents[0].AgentNumber)

	count, _ := repo.CountByCluster(ctx, "c1")
	assert.Equal(t, int64(2), count)
}

func TestMemorySimulationListStripsHeavyFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySimulationRepo()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		require.NoError(t, repo.Save(ctx, &model.Simulation{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Panel:     []model.Agent{{ID: "a"}},
			Results:   []model.ReactionResult{{AgentID: "a"}},
		}))
	}

	list, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
	assert.Nil(t, list[0].Results)

	full, _ := repo.GetByID(ctx, "new")
	assert.Len(t, full.Results, 1, "stored copy untouched")

	missing, err := repo.GetByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
	assert.ErrorIs(t, repo.Delete(ctx, "nope"), ErrNotFound)
}
