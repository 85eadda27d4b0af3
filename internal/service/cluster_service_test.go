package service

import (
	"context"
	"testing"

	"popsim/internal/model"
	"popsim/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterNormalizeWeights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, w := range []float64{10, 10, 10} {
		c := *f.clusters[i]
		c.Weight = w
		_, err := f.clusterSvc.Update(ctx, &c)
		require.NoError(t, err)
	}

	clusters, err := f.clusterSvc.NormalizeWeights(ctx, f.zone.ID)
	require.NoError(t, err)
	got := make([]float64, len(clusters))
	for i, c := range clusters {
		got[i] = c.Weight
	}
	assert.Equal(t, []float64{34, 33, 33}, got)

	stored, err := f.clusterSvc.Get(ctx, f.clusters[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 34.0, stored.Weight)
}

func TestClusterUpdateKeepsAgentCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAgents(t, f.clusters[0], 4)

	edit := &model.Cluster{ID: f.clusters[0].ID, ZoneID: "somewhere-else", Name: "Drivers", Description: "Daily drivers from the outer suburbs", Weight: 40, NextAgentNumber: 1}
	updated, err := f.clusterSvc.Update(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "Drivers", updated.Name)
	assert.Equal(t, f.zone.ID, updated.ZoneID)
	assert.Equal(t, 5, updated.NextAgentNumber)

	var ve *model.ValidationError
	_, err = f.clusterSvc.Update(ctx, &model.Cluster{ID: f.clusters[0].ID, Name: "Drivers", Description: "short", Weight: 40})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "description", ve.Field)

	_, err = f.clusterSvc.Update(ctx, &model.Cluster{ID: "missing", Name: "x", Description: "long enough description here"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClusterCreateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.clusterSvc.Create(ctx, &model.Cluster{ZoneID: "missing", Name: "Ghosts", Description: "Nobody lives in this cluster at all"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var ve *model.ValidationError
	require.ErrorAs(t, f.clusterSvc.Create(ctx, &model.Cluster{ZoneID: f.zone.ID, Name: "Loud", Description: "Shouting on social media every day", Weight: 130}), &ve)
	assert.Equal(t, "weight", ve.Field)

	f.seedAgents(t, f.clusters[1], 3)
	require.NoError(t, f.clusterSvc.Delete(ctx, f.clusters[1].ID))
	n, err := f.repos.Agents.CountByCluster(ctx, f.clusters[1].ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, f.clusterSvc.Delete(ctx, f.clusters[1].ID), repository.ErrNotFound)
}
