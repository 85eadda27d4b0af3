package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"popsim/internal/config"
	"popsim/internal/generation"
	"popsim/internal/model"
	"popsim/internal/progress"
	"popsim/internal/prompt"
	"popsim/internal/repository"

	"go.uber.org/zap"
)

// MaxAgentsPerRequest caps one generation request
const MaxAgentsPerRequest = 200

// GenerateAgentsRequest asks for new agents in a cluster
type GenerateAgentsRequest struct {
	ClusterID   string  `json:"clusterId"`
	Count       int     `json:"count"`
	Temperature float64 `json:"temperature,omitempty"`
}

// AgentService synthesizes, stores and edits agents
type AgentService struct {
	clusterRepo     repository.ClusterRepo
	demographicRepo repository.DemographicRepo
	agentRepo       repository.AgentRepo
	fallback        *repository.FallbackStore
	engine          *generation.AgentEngine
	runner          *Runner
	nameWindow      int
	logger          *zap.Logger
}

// NewAgentService creates a new agent service. fallback may be nil.
func NewAgentService(
	repos *repository.Repos,
	fallback *repository.FallbackStore,
	engine *generation.AgentEngine,
	runner *Runner,
	cfg config.GenerationConfig,
	logger *zap.Logger,
) *AgentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.NameWindow
	if window <= 0 {
		window = config.DefaultGenerationConfig().NameWindow
	}
	return &AgentService{
		clusterRepo:     repos.Clusters,
		demographicRepo: repos.Demographics,
		agentRepo:       repos.Agents,
		fallback:        fallback,
		engine:          engine,
		runner:          runner,
		nameWindow:      window,
		logger:          logger.Named("agents"),
	}
}

func (s *AgentService) validate(req GenerateAgentsRequest) error {
	if req.ClusterID == "" {
		return &model.ValidationError{Field: "clusterId", Reason: "is required"}
	}
	if req.Count <= 0 || req.Count > MaxAgentsPerRequest {
		return &model.ValidationError{Field: "count", Reason: fmt.Sprintf("must be between 1 and %d", MaxAgentsPerRequest)}
	}
	return nil
}

// Generate synthesizes agents for a cluster and stores them in one write. If
// the primary store rejects the write the agents go to the fallback store.
func (s *AgentService) Generate(ctx context.Context, req GenerateAgentsRequest, rep progress.Reporter) ([]model.Agent, error) {
	if rep == nil {
		rep = progress.Nop
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	rep.Report(progress.StagePrepare, 0, 1, "")
	cluster, err := s.clusterRepo.GetByID(ctx, req.ClusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster: %w", err)
	}
	if cluster == nil {
		return nil, notFound("cluster", req.ClusterID)
	}
	demos, err := s.demographicRepo.ListByZone(ctx, cluster.ZoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list demographics: %w", err)
	}
	demographics := make([]model.Demographic, len(demos))
	for i, d := range demos {
		demographics[i] = *d
	}

	// one registry per run, seeded with the names already in the cluster
	names := prompt.NewNameRegistry(s.nameWindow)
	existing, err := s.agentRepo.ListByCluster(ctx, cluster.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	for _, a := range existing {
		names.Add(a.Name)
	}

	start, err := s.clusterRepo.ReserveAgentNumbers(ctx, cluster.ID, req.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve agent numbers: %w", err)
	}
	rep.Report(progress.StagePrepare, 1, 1, "")

	agents, err := s.engine.Generate(ctx, generation.AgentRequest{
		Cluster:      *cluster,
		Count:        req.Count,
		StartNumber:  start,
		Demographics: demographics,
		Names:        names,
		Temperature:  temperature(req.Temperature),
	}, rep)
	if err != nil {
		return nil, err
	}

	rep.Report(progress.StagePersist, 0, 1, "")
	if err := s.persist(ctx, agents); err != nil {
		return nil, err
	}
	rep.Report(progress.StagePersist, 1, 1, "")
	s.logger.Info("agents generated",
		zap.String("cluster_id", cluster.ID),
		zap.Int("requested", req.Count),
		zap.Int("generated", len(agents)))
	return agents, nil
}

// StartGenerate runs Generate in the background and returns the run id
func (s *AgentService) StartGenerate(req GenerateAgentsRequest) (string, error) {
	if err := s.validate(req); err != nil {
		return "", err
	}
	return s.runner.Start(model.RunAgents, func(ctx context.Context, _ string, rep progress.Reporter) (string, int, error) {
		agents, err := s.Generate(ctx, req, rep)
		if err != nil {
			return "", 0, err
		}
		return req.ClusterID, len(agents), nil
	}), nil
}

func (s *AgentService) persist(ctx context.Context, agents []model.Agent) error {
	err := s.agentRepo.CreateMany(ctx, agents)
	if err == nil {
		return nil
	}
	if s.fallback == nil {
		return fmt.Errorf("failed to save agents: %w", err)
	}
	s.logger.Warn("primary store rejected agents, writing to fallback store",
		zap.Int("agents", len(agents)),
		zap.Error(err))
	if ferr := s.fallback.SaveAgents(agents); ferr != nil {
		return fmt.Errorf("failed to save agents: %w", errors.Join(err, ferr))
	}
	return nil
}

// Get returns an agent or an ErrNotFound error
func (s *AgentService) Get(ctx context.Context, id string) (*model.Agent, error) {
	agent, err := s.agentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, notFound("agent", id)
	}
	return agent, nil
}

// ListByCluster returns the agents of a cluster ordered by agent number
func (s *AgentService) ListByCluster(ctx context.Context, clusterID string) ([]*model.Agent, error) {
	agents, err := s.agentRepo.ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// Update replaces the persona fields of an agent. Identity, cluster and
// number are kept from the stored agent.
func (s *AgentService) Update(ctx context.Context, agent *model.Agent) (*model.Agent, error) {
	existing, err := s.Get(ctx, agent.ID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(agent.Name) == "" {
		return nil, &model.ValidationError{Field: "name", Reason: "is required"}
	}
	if agent.Age < 18 || agent.Age > 100 {
		return nil, &model.ValidationError{Field: "age", Reason: "must be between 18 and 100"}
	}
	updated := *agent
	updated.ClusterID = existing.ClusterID
	updated.AgentNumber = existing.AgentNumber
	updated.CreatedAt = existing.CreatedAt
	updated.Name = strings.TrimSpace(agent.Name)
	updated.Clamp()
	if err := s.agentRepo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	return &updated, nil
}

// Delete removes one agent. Its number is not reused.
func (s *AgentService) Delete(ctx context.Context, id string) error {
	if err := s.agentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}
