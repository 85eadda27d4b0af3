package repository

import (
	"testing"
	"time"

	"popsim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestFallback(t *testing.T) *FallbackStore {
	t.Helper()
	s, err := OpenFallback("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFallbackSimulations(t *testing.T) {
	s := openTestFallback(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveSimulation(&model.Simulation{ID: "s1", Title: "first", CreatedAt: base}))
	require.NoError(t, s.SaveSimulation(&model.Simulation{ID: "s2", Title: "second", CreatedAt: base.Add(time.Minute)}))

	got, err := s.GetSimulation("s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Title)

	all, err := s.Simulations()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].ID)

	require.NoError(t, s.DeleteSimulation("s1"))
	got, err = s.GetSimulation("s1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFallbackAgentsOrdered(t *testing.T) {
	s := openTestFallback(t)
	require.NoError(t, s.SaveAgents([]model.Agent{
		{ID: "a10", ClusterID: "c1", AgentNumber: 10},
		{ID: "a2", ClusterID: "c1", AgentNumber: 2},
		{ID: "b1", ClusterID: "c11", AgentNumber: 1},
	}))

	agents, err := s.Agents("c1")
	require.NoError(t, err)
	require.Len(t, agents, 2, "prefix must not match c11")
	assert.Equal(t, "a2", agents[0].ID)
	assert.Equal(t, "a10", agents[1].ID)
}

func TestFallbackPolls(t *testing.T) {
	s := openTestFallback(t)
	require.NoError(t, s.SavePoll(&model.PollResult{ID: "p1", Poll: model.Poll{Question: "Q?"}}))

	p, err := s.GetPoll("p1")
	require.NoError(t, err)
	assert.Equal(t, "Q?", p.Poll.Question)

	polls, err := s.Polls()
	require.NoError(t, err)
	assert.Len(t, polls, 1)
}
