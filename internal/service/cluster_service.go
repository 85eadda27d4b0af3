package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"popsim/internal/allocation"
	"popsim/internal/model"
	"popsim/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClusterService manages opinion clusters within zones
type ClusterService struct {
	zoneRepo    repository.ZoneRepo
	clusterRepo repository.ClusterRepo
	agentRepo   repository.AgentRepo
	logger      *zap.Logger
}

// NewClusterService creates a new cluster service
func NewClusterService(repos *repository.Repos, logger *zap.Logger) *ClusterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClusterService{
		zoneRepo:    repos.Zones,
		clusterRepo: repos.Clusters,
		agentRepo:   repos.Agents,
		logger:      logger.Named("clusters"),
	}
}

// Create validates and stores a cluster in an existing zone
func (s *ClusterService) Create(ctx context.Context, cluster *model.Cluster) error {
	cluster.Name = strings.TrimSpace(cluster.Name)
	cluster.Description = strings.TrimSpace(cluster.Description)
	if err := cluster.Validate(); err != nil {
		return err
	}
	zone, err := s.zoneRepo.GetByID(ctx, cluster.ZoneID)
	if err != nil {
		return fmt.Errorf("failed to get zone: %w", err)
	}
	if zone == nil {
		return notFound("zone", cluster.ZoneID)
	}

	now := time.Now()
	cluster.ID = uuid.New().String()
	cluster.NextAgentNumber = 1
	cluster.CreatedAt = now
	cluster.UpdatedAt = now
	if err := s.clusterRepo.Create(ctx, cluster); err != nil {
		return fmt.Errorf("failed to create cluster: %w", err)
	}
	return nil
}

// Get returns a cluster or an ErrNotFound error
func (s *ClusterService) Get(ctx context.Context, id string) (*model.Cluster, error) {
	cluster, err := s.clusterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster: %w", err)
	}
	if cluster == nil {
		return nil, notFound("cluster", id)
	}
	return cluster, nil
}

// ListByZone returns the clusters of a zone in creation order
func (s *ClusterService) ListByZone(ctx context.Context, zoneID string) ([]*model.Cluster, error) {
	clusters, err := s.clusterRepo.ListByZone(ctx, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	return clusters, nil
}

// Update replaces the editable fields of a cluster. The zone and the agent
// number counter never change.
func (s *ClusterService) Update(ctx context.Context, cluster *model.Cluster) (*model.Cluster, error) {
	existing, err := s.Get(ctx, cluster.ID)
	if err != nil {
		return nil, err
	}
	existing.Name = strings.TrimSpace(cluster.Name)
	existing.Description = strings.TrimSpace(cluster.Description)
	existing.Weight = cluster.Weight
	if err := existing.Validate(); err != nil {
		return nil, err
	}
	existing.UpdatedAt = time.Now()
	if err := s.clusterRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update cluster: %w", err)
	}
	return existing, nil
}

// Delete removes a cluster and all of its agents
func (s *ClusterService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.agentRepo.DeleteByCluster(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete agents: %w", err)
	}
	if err := s.clusterRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	s.logger.Info("cluster deleted", zap.String("cluster_id", id), zap.Int64("agents", n))
	return nil
}

// NormalizeWeights rescales the weights of a zone's clusters to integers
// summing to 100 and returns the updated clusters.
func (s *ClusterService) NormalizeWeights(ctx context.Context, zoneID string) ([]*model.Cluster, error) {
	clusters, err := s.ListByZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return clusters, nil
	}

	weights := make([]float64, len(clusters))
	for i, c := range clusters {
		weights[i] = c.Weight
	}
	now := time.Now()
	for i, w := range allocation.NormalizeWeights(weights) {
		c := clusters[i]
		if c.Weight == float64(w) {
			continue
		}
		c.Weight = float64(w)
		c.UpdatedAt = now
		if err := s.clusterRepo.Update(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to update cluster %s: %w", c.ID, err)
		}
	}
	return clusters, nil
}
