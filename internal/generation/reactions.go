package generation

import (
	"context"
	"errors"

	"popsim/internal/config"
	"popsim/internal/decode"
	"popsim/internal/llm"
	"popsim/internal/model"
	"popsim/internal/progress"
	"popsim/internal/prompt"

	"go.uber.org/zap"
)

// ReactionRequest is the scenario every agent of a run reacts to
type ReactionRequest struct {
	Scenario     string
	Context      string
	ClusterNames map[string]string // clusterID -> name
	Mode         model.ReactionMode
	Temperature  *float64
}

// ReactionEngine produces one reaction turn per agent
type ReactionEngine struct {
	*engine
}

// NewReactionEngine creates a reaction engine
func NewReactionEngine(gw llm.Gateway, cfg config.GenerationConfig, logger *zap.Logger, opts ...Option) *ReactionEngine {
	return &ReactionEngine{newEngine(gw, cfg, logger, opts)}
}

// Generate asks one agent for a reaction, retrying up to the configured
// attempt count with a growing backoff. Exhausted attempts yield *RetryError.
func (e *ReactionEngine) Generate(ctx context.Context, agent model.Agent, req ReactionRequest) (*model.ReactionTurn, error) {
	rng := e.rand()
	var turn *model.ReactionTurn
	errs, err := retry(ctx, e.cfg.ReactionMaxAttempts, e.cfg.ReactionBackoff(), e.sleep, func(attempt int) error {
		res := e.gw.Call(ctx, llm.Request{
			Prompt: prompt.ReactionPrompt(prompt.ReactionInput{
				Agent:       agent,
				ClusterName: req.ClusterNames[agent.ClusterID],
				Scenario:    req.Scenario,
				Context:     req.Context,
				Variance:    prompt.Variance(rng),
			}),
			SystemPrompt: prompt.ReactionSystemPrompt,
			Temperature:  req.Temperature,
		})
		if !res.OK() {
			e.logger.Debug("reaction attempt failed",
				zap.String("agent_id", agent.ID), zap.Int("attempt", attempt), zap.Error(res.Err))
			return res.Err
		}
		t, repairs, err := decode.DecodeReaction(res.Content)
		if err != nil {
			e.logger.Debug("reaction attempt unparseable",
				zap.String("agent_id", agent.ID), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		e.logRepairs(agent, repairs)
		turn = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if turn == nil {
		return nil, &RetryError{
			AgentID:     agent.ID,
			AgentName:   agent.Name,
			ClusterID:   agent.ClusterID,
			ClusterName: req.ClusterNames[agent.ClusterID],
			Attempts:    len(errs),
			Errors:      errs,
		}
	}
	return turn, nil
}

// GenerateBatch produces a reaction for every agent, in order. Agents whose
// attempts are exhausted are returned as failures rather than aborting the
// run; only ctx ending stops the loop early.
func (e *ReactionEngine) GenerateBatch(ctx context.Context, agents []model.Agent, req ReactionRequest, rep progress.Reporter) (map[string]*model.ReactionTurn, []*RetryError, error) {
	if rep == nil {
		rep = progress.Nop
	}
	turns := make(map[string]*model.ReactionTurn, len(agents))
	var failures []*RetryError
	done := 0
	finish := func(a model.Agent) {
		done++
		rep.Report(progress.StageReactions, done, len(agents), a.Name)
	}
	single := func(a model.Agent) error {
		turn, err := e.Generate(ctx, a, req)
		if err != nil {
			var re *RetryError
			if !errors.As(err, &re) {
				return err
			}
			failures = append(failures, re)
			e.logger.Warn("reaction failed", zap.String("agent_id", a.ID), zap.String("agent", a.Name), zap.Error(err))
		} else {
			turns[a.ID] = turn
		}
		finish(a)
		return nil
	}

	if req.Mode == "" {
		req.Mode = model.ReactionMode(e.cfg.ReactionMode)
	}
	size := 1
	if req.Mode == model.ReactionBatched {
		size = e.cfg.ReactionBatchSize
	}
	for _, c := range chunks(len(agents), size) {
		group := agents[c[0]:c[1]]
		if len(group) > 1 {
			if err := ctx.Err(); err != nil {
				return turns, failures, err
			}
			for _, a := range e.batch(ctx, group, req) {
				turns[a.id] = a.turn
			}
		}
		for _, a := range group {
			if _, ok := turns[a.ID]; ok {
				finish(a)
				continue
			}
			if err := single(a); err != nil {
				return turns, failures, err
			}
		}
	}

	if len(failures) > 0 {
		e.logger.Error("reaction generation incomplete",
			zap.Int("failed", len(failures)),
			zap.Int("total", len(agents)),
			zap.Any("failures", failureSummary(failures)))
	}
	return turns, failures, nil
}

type batchTurn struct {
	id   string
	turn *model.ReactionTurn
}

// batch asks for several reactions in one call and returns the valid ones.
// Elements are matched by agent_id, falling back to array position.
func (e *ReactionEngine) batch(ctx context.Context, group []model.Agent, req ReactionRequest) []batchTurn {
	res := e.gw.Call(ctx, llm.Request{
		Prompt: prompt.ReactionBatchPrompt(prompt.ReactionBatchInput{
			Agents:       group,
			ClusterNames: req.ClusterNames,
			Scenario:     req.Scenario,
			Context:      req.Context,
			Variance:     prompt.Variance(e.rand()),
		}),
		SystemPrompt: prompt.ReactionSystemPrompt,
		Temperature:  req.Temperature,
	})
	if !res.OK() {
		e.logger.Warn("reaction batch failed", zap.Int("agents", len(group)), zap.Error(res.Err))
		return nil
	}
	elems, err := decode.DecodeReactionBatch(res.Content)
	if err != nil {
		e.logger.Warn("reaction batch unparseable", zap.Int("agents", len(group)), zap.Error(err))
		return nil
	}

	byID := make(map[string]model.Agent, len(group))
	for _, a := range group {
		byID[a.ID] = a
	}
	taken := make(map[string]bool)
	var out []batchTurn
	for _, el := range elems {
		a, ok := byID[el.AgentID]
		if !ok && el.Index < len(group) {
			a, ok = group[el.Index], true
		}
		if !ok || taken[a.ID] {
			continue
		}
		if el.Err != nil {
			e.logger.Debug("reaction element rejected", zap.String("agent_id", a.ID), zap.Error(el.Err))
			continue
		}
		taken[a.ID] = true
		e.logRepairs(a, el.Repairs)
		out = append(out, batchTurn{id: a.ID, turn: el.Turn})
	}
	return out
}

func (e *ReactionEngine) logRepairs(a model.Agent, repairs []decode.Repair) {
	for _, r := range repairs {
		e.logger.Warn("reaction repaired",
			zap.String("agent_id", a.ID),
			zap.String("field", r.Field),
			zap.String("from", r.From),
			zap.String("to", r.To))
	}
}

type failureEntry struct {
	AgentID     string   `json:"agent_id"`
	AgentName   string   `json:"agent_name"`
	ClusterID   string   `json:"cluster_id"`
	ClusterName string   `json:"cluster_name"`
	Attempts    int      `json:"attempts"`
	Errors      []string `json:"errors"`
}

func failureSummary(failures []*RetryError) []failureEntry {
	out := make([]failureEntry, len(failures))
	for i, f := range failures {
		msgs := make([]string, len(f.Errors))
		for j, err := range f.Errors {
			msgs[j] = err.Error()
		}
		out[i] = failureEntry{
			AgentID:     f.AgentID,
			AgentName:   f.AgentName,
			ClusterID:   f.ClusterID,
			ClusterName: f.ClusterName,
			Attempts:    f.Attempts,
			Errors:      msgs,
		}
	}
	return out
}
