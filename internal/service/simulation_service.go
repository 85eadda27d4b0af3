package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"popsim/internal/cache"
	"popsim/internal/generation"
	"popsim/internal/llm"
	"popsim/internal/model"
	"popsim/internal/progress"
	"popsim/internal/repository"
	"popsim/internal/stats"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultChannel is the exposure channel recorded when a run names none
const DefaultChannel = "direct"

// SimulationRequest describes one scenario run
type SimulationRequest struct {
	Title        string             `json:"title"`
	Scenario     string             `json:"scenario"`
	Context      string             `json:"context,omitempty"`
	Panel        PanelSpec          `json:"panel"`
	ReactionMode model.ReactionMode `json:"reactionMode,omitempty"`
	Channel      string             `json:"channel,omitempty"`
	Temperature  float64            `json:"temperature,omitempty"`
	Summarize    bool               `json:"summarize"`
}

func (r *SimulationRequest) validate() error {
	r.Scenario = strings.TrimSpace(r.Scenario)
	if r.Scenario == "" {
		return &model.ValidationError{Field: "scenario", Reason: "is required"}
	}
	if r.Title == "" {
		r.Title = firstLine(r.Scenario, 80)
	}
	switch r.ReactionMode {
	case "", model.ReactionSingle, model.ReactionBatched:
	default:
		return &model.ValidationError{Field: "reactionMode", Reason: "must be single or batched"}
	}
	if r.Channel == "" {
		r.Channel = DefaultChannel
	}
	return r.Panel.validate()
}

// SimulationService runs scenarios against a panel and stores the results
type SimulationService struct {
	simulationRepo repository.SimulationRepo
	statsCache     cache.StatsCache
	fallback       *repository.FallbackStore
	panels         *panelSource
	engine         *generation.ReactionEngine
	gateway        llm.Gateway
	runner         *Runner
	logger         *zap.Logger
	now            func() time.Time
}

// NewSimulationService creates a new simulation service. fallback may be nil.
func NewSimulationService(
	repos *repository.Repos,
	statsCache cache.StatsCache,
	fallback *repository.FallbackStore,
	engine *generation.ReactionEngine,
	gateway llm.Gateway,
	runner *Runner,
	logger *zap.Logger,
) *SimulationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("simulations")
	return &SimulationService{
		simulationRepo: repos.Simulations,
		statsCache:     statsCache,
		fallback:       fallback,
		panels:         newPanelSource(repos, fallback, logger),
		engine:         engine,
		gateway:        gateway,
		runner:         runner,
		logger:         logger,
		now:            time.Now,
	}
}

// Seed makes panel sampling deterministic
func (s *SimulationService) Seed(seed int64) {
	s.panels.seed(seed)
}

// Start validates req and runs it in the background, returning the run id
func (s *SimulationService) Start(req SimulationRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	return s.runner.Start(model.RunSimulation, func(ctx context.Context, runID string, rep progress.Reporter) (string, int, error) {
		sim, err := s.run(ctx, runID, req, rep)
		if err != nil {
			return "", 0, err
		}
		return sim.ID, len(sim.Results), nil
	}), nil
}

// Run executes a simulation synchronously
func (s *SimulationService) Run(ctx context.Context, req SimulationRequest, rep progress.Reporter) (*model.Simulation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, "", req, rep)
}

// run is the pipeline: prepare, load clusters, allocate, select the panel,
// react, build results, aggregate, summarize, persist. Any agent without a
// reaction fails the whole run.
func (s *SimulationService) run(ctx context.Context, runID string, req SimulationRequest, rep progress.Reporter) (*model.Simulation, error) {
	if rep == nil {
		rep = progress.Nop
	}
	rep.Report(progress.StagePrepare, 1, 1, "")

	clusters, panel, err := s.panels.build(ctx, req.Panel, rep)
	if err != nil {
		return nil, err
	}
	names := clusterNames(clusters)

	turns, failures, err := s.engine.GenerateBatch(ctx, panel, generation.ReactionRequest{
		Scenario:     req.Scenario,
		Context:      req.Context,
		ClusterNames: names,
		Mode:         req.ReactionMode,
		Temperature:  temperature(req.Temperature),
	}, rep)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		return nil, incomplete(failures)
	}

	rep.Report(progress.StageBuildResults, 0, len(panel), "")
	exposedAt := s.now()
	results := make([]model.ReactionResult, 0, len(panel))
	for _, a := range panel {
		turn := turns[a.ID]
		results = append(results, model.ReactionResult{
			AgentID:     a.ID,
			AgentName:   a.Name,
			ClusterID:   a.ClusterID,
			ClusterName: names[a.ClusterID],
			Turns:       []model.ReactionTurn{*turn},
			Exposure: model.Exposure{
				Scenario:  req.Scenario,
				Context:   req.Context,
				Channel:   req.Channel,
				ExposedAt: exposedAt,
			},
		})
	}
	rep.Report(progress.StageBuildResults, len(results), len(panel), "")

	rep.Report(progress.StageStats, 0, 1, "")
	simStats := stats.Reactions(results, clusters)
	rep.Report(progress.StageStats, 1, 1, "")

	sim := &model.Simulation{
		ID:        uuid.New().String(),
		RunID:     runID,
		Title:     req.Title,
		Scenario:  req.Scenario,
		Context:   req.Context,
		ZoneID:    req.Panel.ZoneID,
		CreatedAt: s.now(),
		Clusters:  clusters,
		Panel:     panel,
		Config: model.SimulationConfig{
			AgentCount:     req.Panel.AgentCount,
			AllocationMode: req.Panel.AllocationMode,
			ReactionMode:   req.ReactionMode,
			Channel:        req.Channel,
			Temperature:    req.Temperature,
			Summarize:      req.Summarize,
		},
		Results: results,
		Stats:   simStats,
	}

	if req.Summarize {
		rep.Report(progress.StageSummary, 0, 1, "")
		summary, err := generation.Summarize(ctx, s.gateway, sim.Title, sim.Scenario, simStats, temperature(req.Temperature))
		switch {
		case err == nil:
			sim.Summary = summary
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			s.logger.Warn("executive summary skipped", zap.Error(err))
		}
		rep.Report(progress.StageSummary, 1, 1, "")
	}

	rep.Report(progress.StagePersist, 0, 1, "")
	if err := s.persist(ctx, sim); err != nil {
		return nil, err
	}
	rep.Report(progress.StagePersist, 1, 1, "")
	return sim, nil
}

func (s *SimulationService) persist(ctx context.Context, sim *model.Simulation) error {
	if err := s.simulationRepo.Save(ctx, sim); err != nil {
		if s.fallback == nil {
			return fmt.Errorf("failed to save simulation: %w", err)
		}
		s.logger.Warn("primary store rejected simulation, writing to fallback store",
			zap.String("simulation_id", sim.ID),
			zap.Error(err))
		if ferr := s.fallback.SaveSimulation(sim); ferr != nil {
			return fmt.Errorf("failed to save simulation: %w", errors.Join(err, ferr))
		}
	}
	if err := s.statsCache.SetSimulationStats(ctx, sim.ID, sim.Stats); err != nil {
		s.logger.Warn("failed to cache simulation stats", zap.String("simulation_id", sim.ID), zap.Error(err))
	}
	return nil
}

// Get returns a stored simulation from the primary or fallback store
func (s *SimulationService) Get(ctx context.Context, id string) (*model.Simulation, error) {
	sim, err := s.simulationRepo.GetByID(ctx, id)
	if err != nil {
		if s.fallback == nil {
			return nil, fmt.Errorf("failed to get simulation: %w", err)
		}
		s.logger.Warn("primary store read failed, trying fallback store", zap.String("simulation_id", id), zap.Error(err))
	}
	if sim == nil && s.fallback != nil {
		if sim, err = s.fallback.GetSimulation(id); err != nil {
			return nil, fmt.Errorf("failed to get simulation from fallback store: %w", err)
		}
	}
	if sim == nil {
		return nil, notFound("simulation", id)
	}
	return sim, nil
}

// List returns simulation headers, newest first, from both stores
func (s *SimulationService) List(ctx context.Context, limit int) ([]*model.Simulation, error) {
	sims, err := s.simulationRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list simulations: %w", err)
	}
	if s.fallback == nil {
		return sims, nil
	}
	extra, err := s.fallback.Simulations()
	if err != nil {
		s.logger.Warn("failed to list fallback simulations", zap.Error(err))
		return sims, nil
	}
	seen := make(map[string]bool, len(sims))
	for _, sim := range sims {
		seen[sim.ID] = true
	}
	for _, sim := range extra {
		if seen[sim.ID] {
			continue
		}
		header := *sim
		header.Panel = nil
		header.Results = nil
		sims = append(sims, &header)
	}
	sort.SliceStable(sims, func(i, j int) bool {
		return sims[i].CreatedAt.After(sims[j].CreatedAt)
	})
	if limit > 0 && len(sims) > limit {
		sims = sims[:limit]
	}
	return sims, nil
}

// Stats returns the statistics of a simulation, reading through the cache
func (s *SimulationService) Stats(ctx context.Context, id string) (*model.SimulationStats, error) {
	cached, err := s.statsCache.GetSimulationStats(ctx, id)
	if err != nil {
		s.logger.Warn("stats cache read failed", zap.String("simulation_id", id), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}
	sim, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	computed := sim.Stats
	if computed == nil {
		computed = stats.Reactions(sim.Results, sim.Clusters)
	}
	if err := s.statsCache.SetSimulationStats(ctx, id, computed); err != nil {
		s.logger.Warn("failed to cache simulation stats", zap.String("simulation_id", id), zap.Error(err))
	}
	return computed, nil
}

// Rows returns the flat per-agent report rows of a simulation
func (s *SimulationService) Rows(ctx context.Context, id string) ([]model.SimulationRow, error) {
	sim, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sim.Rows(), nil
}

// Delete removes a simulation from both stores and the stats cache
func (s *SimulationService) Delete(ctx context.Context, id string) error {
	err := s.simulationRepo.Delete(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	found := err == nil
	if s.fallback != nil {
		if sim, ferr := s.fallback.GetSimulation(id); ferr == nil && sim != nil {
			if ferr := s.fallback.DeleteSimulation(id); ferr != nil {
				return fmt.Errorf("failed to delete simulation from fallback store: %w", ferr)
			}
			found = true
		}
	}
	if !found {
		return notFound("simulation", id)
	}
	if err := s.statsCache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("failed to invalidate stats", zap.String("simulation_id", id), zap.Error(err))
	}
	return nil
}

func incomplete(failures []*generation.RetryError) *IncompleteRunError {
	e := &IncompleteRunError{}
	for _, f := range failures {
		name := f.AgentName
		if f.ClusterName != "" {
			name += " (" + f.ClusterName + ")"
		}
		e.Missing = append(e.Missing, name)
		e.Causes = append(e.Causes, f)
	}
	return e
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(strings.TrimSpace(s))
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return string(r)
}
