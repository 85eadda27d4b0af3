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
	"popsim/internal/model"
	"popsim/internal/progress"
	"popsim/internal/repository"
	"popsim/internal/stats"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PollRequest describes one poll run
type PollRequest struct {
	Title       string     `json:"title"`
	Poll        model.Poll `json:"poll"`
	Panel       PanelSpec  `json:"panel"`
	Temperature float64    `json:"temperature,omitempty"`
}

func (r *PollRequest) validate() error {
	r.Poll.Question = strings.TrimSpace(r.Poll.Question)
	if err := r.Poll.Validate(); err != nil {
		return err
	}
	mode, _ := model.ParsePollMode(string(r.Poll.Mode))
	r.Poll.Mode = mode
	if r.Title == "" {
		r.Title = firstLine(r.Poll.Question, 80)
	}
	return r.Panel.validate()
}

// PollService puts closed questions to a panel and stores the answers
type PollService struct {
	pollRepo        repository.PollRepo
	demographicRepo repository.DemographicRepo
	statsCache      cache.StatsCache
	fallback        *repository.FallbackStore
	panels          *panelSource
	engine          *generation.PollEngine
	runner          *Runner
	logger          *zap.Logger
	now             func() time.Time
}

// NewPollService creates a new poll service. fallback may be nil.
func NewPollService(
	repos *repository.Repos,
	statsCache cache.StatsCache,
	fallback *repository.FallbackStore,
	engine *generation.PollEngine,
	runner *Runner,
	logger *zap.Logger,
) *PollService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("polls")
	return &PollService{
		pollRepo:        repos.Polls,
		demographicRepo: repos.Demographics,
		statsCache:      statsCache,
		fallback:        fallback,
		panels:          newPanelSource(repos, fallback, logger),
		engine:          engine,
		runner:          runner,
		logger:          logger,
		now:             time.Now,
	}
}

// Seed makes panel sampling deterministic
func (s *PollService) Seed(seed int64) {
	s.panels.seed(seed)
}

// Start validates req and runs it in the background, returning the run id
func (s *PollService) Start(req PollRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	return s.runner.Start(model.RunPoll, func(ctx context.Context, runID string, rep progress.Reporter) (string, int, error) {
		res, err := s.run(ctx, runID, req, rep)
		if err != nil {
			return "", 0, err
		}
		return res.ID, len(res.Responses), nil
	}), nil
}

// Run executes a poll synchronously
func (s *PollService) Run(ctx context.Context, req PollRequest, rep progress.Reporter) (*model.PollResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, "", req, rep)
}

// run mirrors the simulation pipeline with poll answers in place of
// reactions. An agent left without an answer fails the run.
func (s *PollService) run(ctx context.Context, runID string, req PollRequest, rep progress.Reporter) (*model.PollResult, error) {
	if rep == nil {
		rep = progress.Nop
	}
	rep.Report(progress.StagePrepare, 1, 1, "")

	clusters, panel, err := s.panels.build(ctx, req.Panel, rep)
	if err != nil {
		return nil, err
	}

	responses, failures, err := s.engine.Answer(ctx, panel, generation.PollRequest{
		Poll:         req.Poll,
		ClusterNames: clusterNames(clusters),
		Temperature:  temperature(req.Temperature),
	}, rep)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		return nil, incomplete(failures)
	}

	rep.Report(progress.StageStats, 0, 1, "")
	demographics, err := s.demographics(ctx, clusters)
	if err != nil {
		return nil, err
	}
	pollStats := stats.Poll(req.Poll, responses, clusters, demographics)
	rep.Report(progress.StageStats, 1, 1, "")

	res := &model.PollResult{
		ID:        uuid.New().String(),
		RunID:     runID,
		Title:     req.Title,
		Poll:      req.Poll,
		ZoneID:    req.Panel.ZoneID,
		CreatedAt: s.now(),
		Clusters:  clusters,
		Panel:     panel,
		Config: model.PollConfig{
			AgentCount:     req.Panel.AgentCount,
			AllocationMode: req.Panel.AllocationMode,
			Temperature:    req.Temperature,
		},
		Responses: responses,
		Stats:     pollStats,
	}

	rep.Report(progress.StagePersist, 0, 1, "")
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	rep.Report(progress.StagePersist, 1, 1, "")
	return res, nil
}

// demographics collects the buckets of every zone the clusters belong to
func (s *PollService) demographics(ctx context.Context, clusters []model.Cluster) ([]model.Demographic, error) {
	var out []model.Demographic
	seen := make(map[string]bool)
	for _, c := range clusters {
		if seen[c.ZoneID] {
			continue
		}
		seen[c.ZoneID] = true
		list, err := s.demographicRepo.ListByZone(ctx, c.ZoneID)
		if err != nil {
			return nil, fmt.Errorf("failed to list demographics: %w", err)
		}
		for _, d := range list {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *PollService) persist(ctx context.Context, res *model.PollResult) error {
	if err := s.pollRepo.Save(ctx, res); err != nil {
		if s.fallback == nil {
			return fmt.Errorf("failed to save poll: %w", err)
		}
		s.logger.Warn("primary store rejected poll, writing to fallback store",
			zap.String("poll_id", res.ID),
			zap.Error(err))
		if ferr := s.fallback.SavePoll(res); ferr != nil {
			return fmt.Errorf("failed to save poll: %w", errors.Join(err, ferr))
		}
	}
	if err := s.statsCache.SetPollStats(ctx, res.ID, &res.Stats); err != nil {
		s.logger.Warn("failed to cache poll stats", zap.String("poll_id", res.ID), zap.Error(err))
	}
	return nil
}

// Get returns a stored poll result from the primary or fallback store
func (s *PollService) Get(ctx context.Context, id string) (*model.PollResult, error) {
	res, err := s.pollRepo.GetByID(ctx, id)
	if err != nil {
		if s.fallback == nil {
			return nil, fmt.Errorf("failed to get poll: %w", err)
		}
		s.logger.Warn("primary store read failed, trying fallback store", zap.String("poll_id", id), zap.Error(err))
	}
	if res == nil && s.fallback != nil {
		if res, err = s.fallback.GetPoll(id); err != nil {
			return nil, fmt.Errorf("failed to get poll from fallback store: %w", err)
		}
	}
	if res == nil {
		return nil, notFound("poll", id)
	}
	return res, nil
}

// List returns poll headers, newest first, from both stores
func (s *PollService) List(ctx context.Context, limit int) ([]*model.PollResult, error) {
	polls, err := s.pollRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	if s.fallback == nil {
		return polls, nil
	}
	extra, err := s.fallback.Polls()
	if err != nil {
		s.logger.Warn("failed to list fallback polls", zap.Error(err))
		return polls, nil
	}
	seen := make(map[string]bool, len(polls))
	for _, p := range polls {
		seen[p.ID] = true
	}
	for _, p := range extra {
		if seen[p.ID] {
			continue
		}
		header := *p
		header.Panel = nil
		header.Responses = nil
		polls = append(polls, &header)
	}
	sort.SliceStable(polls, func(i, j int) bool {
		return polls[i].CreatedAt.After(polls[j].CreatedAt)
	})
	if limit > 0 && len(polls) > limit {
		polls = polls[:limit]
	}
	return polls, nil
}

// Stats returns the statistics of a poll, reading through the cache
func (s *PollService) Stats(ctx context.Context, id string) (*model.PollStats, error) {
	cached, err := s.statsCache.GetPollStats(ctx, id)
	if err != nil {
		s.logger.Warn("stats cache read failed", zap.String("poll_id", id), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}
	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.statsCache.SetPollStats(ctx, id, &res.Stats); err != nil {
		s.logger.Warn("failed to cache poll stats", zap.String("poll_id", id), zap.Error(err))
	}
	return &res.Stats, nil
}

// Rows returns the flat per-agent report rows of a poll
func (s *PollService) Rows(ctx context.Context, id string) ([]model.PollRow, error) {
	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return res.Rows(), nil
}

// Delete removes a poll result from both stores and the stats cache
func (s *PollService) Delete(ctx context.Context, id string) error {
	err := s.pollRepo.Delete(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	found := err == nil
	if s.fallback != nil {
		if res, ferr := s.fallback.GetPoll(id); ferr == nil && res != nil {
			if ferr := s.fallback.DeletePoll(id); ferr != nil {
				return fmt.Errorf("failed to delete poll from fallback store: %w", ferr)
			}
			found = true
		}
	}
	if !found {
		return notFound("poll", id)
	}
	if err := s.statsCache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("failed to invalidate stats", zap.String("poll_id", id), zap.Error(err))
	}
	return nil
}
