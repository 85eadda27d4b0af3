package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"popsim/internal/allocation"
	"popsim/internal/model"
	"popsim/internal/progress"
	"popsim/internal/repository"

	"go.uber.org/zap"
)

// PanelSpec chooses the clusters a run draws from and how many agents it asks.
// When ClusterIDs is empty every cluster of ZoneID is used.
type PanelSpec struct {
	ZoneID         string               `json:"zoneId,omitempty"`
	ClusterIDs     []string             `json:"clusterIds,omitempty"`
	AgentCount     int                  `json:"agentCount"`
	AllocationMode model.AllocationMode `json:"allocationMode"`
}

func (p *PanelSpec) validate() error {
	if p.ZoneID == "" && len(p.ClusterIDs) == 0 {
		return &model.ValidationError{Field: "zoneId", Reason: "or clusterIds is required"}
	}
	if p.AgentCount <= 0 {
		return &model.ValidationError{Field: "agentCount", Reason: "must be positive"}
	}
	switch p.AllocationMode {
	case "":
		p.AllocationMode = model.AllocationWeighted
	case model.AllocationEqual, model.AllocationWeighted:
	default:
		return &model.ValidationError{Field: "allocationMode", Reason: "must be equal or weighted"}
	}
	return nil
}

// panelSource loads clusters and samples the agents of a run
type panelSource struct {
	clusterRepo repository.ClusterRepo
	agentRepo   repository.AgentRepo
	fallback    *repository.FallbackStore
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func newPanelSource(repos *repository.Repos, fallback *repository.FallbackStore, logger *zap.Logger) *panelSource {
	return &panelSource{
		clusterRepo: repos.Clusters,
		agentRepo:   repos.Agents,
		fallback:    fallback,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *panelSource) seed(seed int64) {
	p.mu.Lock()
	p.rng = rand.New(rand.NewSource(seed))
	p.mu.Unlock()
}

func (p *panelSource) rand() *rand.Rand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return rand.New(rand.NewSource(p.rng.Int63()))
}

// build runs the load, allocate and select stages and returns the cluster
// snapshot and the panel
func (p *panelSource) build(ctx context.Context, spec PanelSpec, rep progress.Reporter) ([]model.Cluster, []model.Agent, error) {
	rep.Report(progress.StageLoadClusters, 0, 1, "")
	clusters, err := p.loadClusters(ctx, spec)
	if err != nil {
		return nil, nil, err
	}
	rep.Report(progress.StageLoadClusters, 1, 1, "")

	rep.Report(progress.StageAllocate, 0, 1, "")
	counts, err := allocation.Allocate(allocation.SharesOf(clusters), spec.AgentCount, spec.AllocationMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to allocate agents: %w", err)
	}
	rep.Report(progress.StageAllocate, 1, 1, "")

	panel, err := p.selectPanel(ctx, clusters, counts, rep)
	if err != nil {
		return nil, nil, err
	}
	return clusters, panel, nil
}

func (p *panelSource) loadClusters(ctx context.Context, spec PanelSpec) ([]model.Cluster, error) {
	var clusters []model.Cluster
	if len(spec.ClusterIDs) == 0 {
		list, err := p.clusterRepo.ListByZone(ctx, spec.ZoneID)
		if err != nil {
			return nil, fmt.Errorf("failed to list clusters: %w", err)
		}
		for _, c := range list {
			clusters = append(clusters, *c)
		}
	} else {
		seen := make(map[string]bool, len(spec.ClusterIDs))
		for _, id := range spec.ClusterIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			c, err := p.clusterRepo.GetByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to get cluster: %w", err)
			}
			if c == nil {
				return nil, notFound("cluster", id)
			}
			clusters = append(clusters, *c)
		}
	}
	if len(clusters) == 0 {
		return nil, ErrNoClusters
	}
	return clusters, nil
}

// selectPanel samples counts[cluster] agents from each cluster. A cluster with
// fewer agents than asked contributes all of them.
func (p *panelSource) selectPanel(ctx context.Context, clusters []model.Cluster, counts map[string]int, rep progress.Reporter) ([]model.Agent, error) {
	rng := p.rand()
	var panel []model.Agent
	for i, c := range clusters {
		available, err := p.clusterAgents(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		want := counts[c.ID]
		picked := allocation.Select(rng, available, want)
		if len(picked) < want {
			p.logger.Warn("cluster has fewer agents than allocated",
				zap.String("cluster_id", c.ID),
				zap.Int("allocated", want),
				zap.Int("available", len(available)))
		}
		panel = append(panel, picked...)
		rep.Report(progress.StageSelectPanel, i+1, len(clusters), c.Name)
	}
	if len(panel) == 0 {
		return nil, ErrNoAgents
	}
	return panel, nil
}

// clusterAgents returns the stored agents of a cluster, including those that
// only reached the fallback store
func (p *panelSource) clusterAgents(ctx context.Context, clusterID string) ([]model.Agent, error) {
	list, err := p.agentRepo.ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	agents := make([]model.Agent, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, a := range list {
		agents = append(agents, *a)
		seen[a.ID] = true
	}
	if p.fallback == nil {
		return agents, nil
	}

	extra, err := p.fallback.Agents(clusterID)
	if err != nil {
		p.logger.Warn("failed to read fallback agents", zap.String("cluster_id", clusterID), zap.Error(err))
		return agents, nil
	}
	merged := false
	for _, a := range extra {
		if !seen[a.ID] {
			agents = append(agents, a)
			merged = true
		}
	}
	if merged {
		sort.SliceStable(agents, func(i, j int) bool {
			return agents[i].AgentNumber < agents[j].AgentNumber
		})
	}
	return agents, nil
}

func clusterNames(clusters []model.Cluster) map[string]string {
	names := make(map[string]string, len(clusters))
	for _, c := range clusters {
		names[c.ID] = c.Name
	}
	return names
}

func temperature(t float64) *float64 {
	if t <= 0 {
		return nil
	}
	return &t
}
