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

// PollRequest is a poll put to a panel
type PollRequest struct {
	Poll         model.Poll
	ClusterNames map[string]string
	Temperature  *float64
}

// PollEngine collects poll answers in batches
type PollEngine struct {
	*engine
}

// NewPollEngine creates a poll engine
func NewPollEngine(gw llm.Gateway, cfg config.GenerationConfig, logger *zap.Logger, opts ...Option) *PollEngine {
	return &PollEngine{newEngine(gw, cfg, logger, opts)}
}

// Answer returns one response per agent that answered, in panel order.
// Agents missing from a batch are asked individually with retries; those
// still unanswered are returned as failures.
func (e *PollEngine) Answer(ctx context.Context, agents []model.Agent, req PollRequest, rep progress.Reporter) ([]model.PollResponse, []*RetryError, error) {
	if rep == nil {
		rep = progress.Nop
	}
	answers := make(map[string]decode.PollAnswer, len(agents))
	var failures []*RetryError
	done := 0
	finish := func(a model.Agent) {
		done++
		rep.Report(progress.StagePollAnswers, done, len(agents), a.Name)
	}

	for _, c := range chunks(len(agents), e.cfg.PollBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, failures, err
		}
		group := agents[c[0]:c[1]]
		for id, ans := range e.batch(ctx, group, req) {
			answers[id] = ans
		}
		for _, a := range group {
			if _, ok := answers[a.ID]; ok {
				finish(a)
				continue
			}
			ans, err := e.single(ctx, a, req)
			if err != nil {
				var re *RetryError
				if !errors.As(err, &re) {
					return nil, failures, err
				}
				failures = append(failures, re)
				e.logger.Warn("poll answer failed", zap.String("agent_id", a.ID), zap.Error(err))
			} else {
				answers[a.ID] = *ans
			}
			finish(a)
		}
	}

	responses := make([]model.PollResponse, 0, len(answers))
	for _, a := range agents {
		ans, ok := answers[a.ID]
		if !ok {
			continue
		}
		responses = append(responses, model.PollResponse{
			AgentID:                   a.ID,
			AgentName:                 a.Name,
			ClusterID:                 a.ClusterID,
			ClusterName:               req.ClusterNames[a.ClusterID],
			AgeBucketID:               a.AgeBucketID,
			RegionBucketID:            a.RegionBucketID,
			SocioProfessionalBucketID: a.SocioProfessionalBucketID,
			Choice:                    ans.Choice,
			Ranking:                   ans.Ranking,
			Scores:                    ans.Scores,
			Reasoning:                 ans.Reasoning,
		})
	}
	if len(failures) > 0 {
		e.logger.Error("poll answers incomplete",
			zap.Int("failed", len(failures)),
			zap.Int("total", len(agents)),
			zap.Any("failures", failureSummary(failures)))
	}
	return responses, failures, nil
}

func (e *PollEngine) call(ctx context.Context, group []model.Agent, req PollRequest) ([]decode.PollAnswer, error) {
	res := e.gw.Call(ctx, llm.Request{
		Prompt: prompt.PollBatchPrompt(prompt.PollInput{
			Poll:         req.Poll,
			Agents:       group,
			ClusterNames: req.ClusterNames,
			Variance:     prompt.Variance(e.rand()),
		}),
		SystemPrompt: prompt.PollSystemPrompt,
		Temperature:  req.Temperature,
	})
	if !res.OK() {
		return nil, res.Err
	}
	return decode.DecodePollAnswers(res.Content, req.Poll)
}

// batch returns the valid answers of one call keyed by agent id. Elements are
// matched by agent_id, falling back to array position.
func (e *PollEngine) batch(ctx context.Context, group []model.Agent, req PollRequest) map[string]decode.PollAnswer {
	elems, err := e.call(ctx, group, req)
	if err != nil {
		e.logger.Warn("poll batch failed", zap.Int("agents", len(group)), zap.Error(err))
		return nil
	}
	known := make(map[string]bool, len(group))
	for _, a := range group {
		known[a.ID] = true
	}
	out := make(map[string]decode.PollAnswer)
	for _, el := range elems {
		id := el.AgentID
		if !known[id] {
			if el.Index >= len(group) {
				continue
			}
			id = group[el.Index].ID
		}
		if _, dup := out[id]; dup {
			continue
		}
		if el.Err != nil {
			e.logger.Debug("poll element rejected", zap.String("agent_id", id), zap.Error(el.Err))
			continue
		}
		e.logRepairs(id, el.Repairs)
		out[id] = el
	}
	return out
}

func (e *PollEngine) single(ctx context.Context, a model.Agent, req PollRequest) (*decode.PollAnswer, error) {
	var ans *decode.PollAnswer
	errs, err := retry(ctx, e.cfg.ReactionMaxAttempts, e.cfg.ReactionBackoff(), e.sleep, func(int) error {
		elems, err := e.call(ctx, []model.Agent{a}, req)
		if err != nil {
			return err
		}
		if len(elems) == 0 {
			return errors.New("no answer returned")
		}
		if elems[0].Err != nil {
			return elems[0].Err
		}
		e.logRepairs(a.ID, elems[0].Repairs)
		ans = &elems[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ans == nil {
		return nil, &RetryError{
			AgentID:     a.ID,
			AgentName:   a.Name,
			ClusterID:   a.ClusterID,
			ClusterName: req.ClusterNames[a.ClusterID],
			Attempts:    len(errs),
			Errors:      errs,
		}
	}
	return ans, nil
}

func (e *PollEngine) logRepairs(agentID string, repairs []decode.Repair) {
	for _, r := range repairs {
		e.logger.Warn("poll answer repaired",
			zap.String("agent_id", agentID),
			zap.String("field", r.Field),
			zap.String("from", r.From),
			zap.String("to", r.To))
	}
}
