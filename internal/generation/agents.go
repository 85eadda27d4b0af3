package generation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"unicode"

	"popsim/internal/config"
	"popsim/internal/decode"
	"popsim/internal/llm"
	"popsim/internal/model"
	"popsim/internal/progress"
	"popsim/internal/prompt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoAgents is returned when a request produced no agent at all
var ErrNoAgents = errors.New("no agents generated")

var (
	coreValuePool = []string{
		"security", "fairness", "freedom", "family", "tradition", "solidarity",
		"prosperity", "environment", "independence", "order", "community", "merit",
	}
	biasPool = []string{
		"confirmation bias", "status quo bias", "loss aversion", "bandwagon effect",
		"anchoring", "availability heuristic", "in-group bias", "optimism bias",
	}
)

// AgentRequest asks for Count agents in one cluster
type AgentRequest struct {
	Cluster      model.Cluster
	Count        int
	StartNumber  int // first agent number handed out
	Demographics []model.Demographic
	Names        *prompt.NameRegistry // nil means a fresh registry
	Temperature  *float64
}

// AgentEngine synthesizes personas in batches
type AgentEngine struct {
	*engine
}

// NewAgentEngine creates an agent engine
func NewAgentEngine(gw llm.Gateway, cfg config.GenerationConfig, logger *zap.Logger, opts ...Option) *AgentEngine {
	return &AgentEngine{newEngine(gw, cfg, logger, opts)}
}

// slotPlan is one agent to create: the prompt slot plus the buckets drawn for it
type slotPlan struct {
	slot    prompt.AgentSlot
	buckets map[model.DemographicKind]string
}

// Generate creates up to req.Count agents. A batch that fails to parse, or
// returns fewer valid personas than asked, is completed one agent at a time;
// slots that still fail are dropped. The call only errors when nothing was
// generated or ctx ended.
func (e *AgentEngine) Generate(ctx context.Context, req AgentRequest, rep progress.Reporter) ([]model.Agent, error) {
	if req.Count <= 0 {
		return nil, nil
	}
	if rep == nil {
		rep = progress.Nop
	}
	names := req.Names
	if names == nil {
		names = prompt.NewNameRegistry(e.cfg.NameWindow)
	}
	rng := e.rand()
	plans := planSlots(rng, req.Count, req.Demographics)
	logger := e.logger.With(zap.String("cluster_id", req.Cluster.ID), zap.String("cluster", req.Cluster.Name))

	agents := make([]model.Agent, 0, req.Count)
	accept := func(p slotPlan, d *decode.AgentDraft) {
		a := e.build(rng, req, p, d, req.StartNumber+len(agents))
		names.Add(a.Name)
		agents = append(agents, a)
		rep.Report(progress.StageAgents, len(agents), req.Count, a.Name)
	}

	var lastErr error
	for _, c := range chunks(len(plans), e.cfg.AgentBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := plans[c[0]:c[1]]
		remaining, err := e.batch(ctx, req, batch, names, accept)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Warn("agent batch failed, generating individually",
				zap.Int("slots", len(remaining)), zap.Error(err))
		}
		for _, p := range remaining {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			d, err := e.single(ctx, req, p, names)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				lastErr = err
				logger.Warn("agent slot dropped", zap.Int("target_age", p.slot.TargetAge), zap.Error(err))
				continue
			}
			accept(p, d)
		}
	}

	if len(agents) == 0 {
		if lastErr == nil {
			lastErr = errors.New("every persona was rejected")
		}
		return nil, fmt.Errorf("%w for cluster %q: %w", ErrNoAgents, req.Cluster.Name, lastErr)
	}
	if len(agents) < req.Count {
		logger.Warn("generated fewer agents than requested",
			zap.Int("requested", req.Count), zap.Int("generated", len(agents)))
	}
	return agents, nil
}

// batch asks for every slot in one call, accepts the valid personas in slot
// order and returns the slots still unfilled
func (e *AgentEngine) batch(ctx context.Context, req AgentRequest, batch []slotPlan, names *prompt.NameRegistry, accept func(slotPlan, *decode.AgentDraft)) ([]slotPlan, error) {
	in := e.input(req, batch, names)
	res := e.gw.Call(ctx, llm.Request{
		Prompt:       prompt.AgentBatchPrompt(in),
		SystemPrompt: prompt.AgentSystemPrompt,
		Temperature:  req.Temperature,
	})
	if !res.OK() {
		return batch, res.Err
	}
	drafts, elemErrs, err := decode.DecodeAgents(res.Content)
	if err != nil {
		return batch, err
	}
	for _, ee := range elemErrs {
		e.logger.Debug("agent element rejected", zap.Error(ee))
	}

	filled := 0
	for _, d := range drafts {
		if filled == len(batch) {
			break
		}
		if names.Seen(d.Name) {
			e.logger.Debug("duplicate agent name rejected", zap.String("name", d.Name))
			continue
		}
		accept(batch[filled], d)
		filled++
	}
	if filled < len(batch) {
		return batch[filled:], fmt.Errorf("batch returned %d usable personas for %d slots", filled, len(batch))
	}
	return nil, nil
}

func (e *AgentEngine) single(ctx context.Context, req AgentRequest, p slotPlan, names *prompt.NameRegistry) (*decode.AgentDraft, error) {
	in := e.input(req, []slotPlan{p}, names)
	res := e.gw.Call(ctx, llm.Request{
		Prompt:       prompt.AgentPrompt(in),
		SystemPrompt: prompt.AgentSystemPrompt,
		Temperature:  req.Temperature,
	})
	if !res.OK() {
		return nil, res.Err
	}
	d, err := decode.DecodeAgent(res.Content)
	if err != nil {
		return nil, err
	}
	if names.Seen(d.Name) {
		return nil, fmt.Errorf("name %q already used in this run", d.Name)
	}
	return d, nil
}

func (e *AgentEngine) input(req AgentRequest, plans []slotPlan, names *prompt.NameRegistry) prompt.AgentInput {
	first, last := names.Forbidden()
	slots := make([]prompt.AgentSlot, len(plans))
	for i, p := range plans {
		slots[i] = p.slot
	}
	return prompt.AgentInput{
		ClusterName:        req.Cluster.Name,
		ClusterDescription: req.Cluster.Description,
		Slots:              slots,
		ForbiddenFirst:     first,
		ForbiddenLast:      last,
	}
}

// build turns a draft into an agent, filling whatever the model left out
func (e *AgentEngine) build(rng *rand.Rand, req AgentRequest, p slotPlan, d *decode.AgentDraft, number int) model.Agent {
	a := model.Agent{
		ID:               uuid.NewString(),
		ClusterID:        req.Cluster.ID,
		AgentNumber:      number,
		Name:             strings.TrimSpace(d.Name),
		Age:              p.slot.TargetAge,
		SocioDemographic: d.SocioDemographic,
		Traits:           d.Traits,
		Priors:           d.Priors,
		SpeakingStyle:    d.SpeakingStyle,
		ExpressionProfile: model.ExpressionProfile{
			Directness:         levelOr(rng, d.Directness),
			SocialFilter:       levelOr(rng, d.SocialFilter),
			ConformityPressure: levelOr(rng, d.ConformityPressure),
			ContextSensitivity: levelOr(rng, d.ContextSensitivity),
		},
		PsychologicalProfile: model.PsychologicalProfile{
			CoreValues:      d.CoreValues,
			CognitiveBiases: d.CognitiveBiases,
			RiskTolerance:   intOr(rng, d.RiskTolerance),
			Assertiveness:   intOr(rng, d.Assertiveness),
		},
		CreatedAt: e.now(),
	}
	if d.Age != nil && *d.Age != a.Age {
		e.logger.Debug("persona age overridden by slot target",
			zap.String("name", a.Name), zap.Int("drafted", *d.Age), zap.Int("target", a.Age))
	}
	if a.Traits == nil {
		a.Traits = []string{}
	}
	if len(a.PsychologicalProfile.CoreValues) == 0 {
		a.PsychologicalProfile.CoreValues = pick(rng, coreValuePool, 2+rng.Intn(2))
	}
	if len(a.PsychologicalProfile.CognitiveBiases) == 0 {
		a.PsychologicalProfile.CognitiveBiases = pick(rng, biasPool, 1+rng.Intn(2))
	}
	for kind, id := range p.buckets {
		a.SetBucketID(kind, id)
	}
	a.Clamp()
	return a
}

func levelOr(rng *rand.Rand, l *model.Level) model.Level {
	if l != nil {
		return *l
	}
	return model.Levels[rng.Intn(len(model.Levels))]
}

// intOr returns *v, or a moderate random value in [20, 80]
func intOr(rng *rand.Rand, v *int) int {
	if v != nil {
		return *v
	}
	return 20 + rng.Intn(61)
}

func pick(rng *rand.Rand, pool []string, n int) []string {
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}

// planSlots draws a target age and demographic buckets for each slot. Ages
// rotate through prompt.AgeBands; when the zone defines age buckets, the
// bucket containing the target age is used, otherwise one is drawn by weight
// and the age is redrawn inside it.
func planSlots(rng *rand.Rand, n int, demographics []model.Demographic) []slotPlan {
	byKind := make(map[model.DemographicKind][]model.Demographic)
	for _, d := range demographics {
		byKind[d.Kind] = append(byKind[d.Kind], d)
	}

	ages := prompt.TargetAges(rng, 0, n)
	plans := make([]slotPlan, n)
	for i := range plans {
		p := slotPlan{
			slot:    prompt.AgentSlot{TargetAge: ages[i]},
			buckets: make(map[model.DemographicKind]string),
		}
		if buckets := byKind[model.DemographicAge]; len(buckets) > 0 {
			b, ok := ageBucketFor(buckets, p.slot.TargetAge)
			if !ok {
				b = weightedPick(rng, buckets)
				if lo, hi, ok := parseAgeRange(b.Label); ok {
					p.slot.TargetAge = lo + rng.Intn(hi-lo+1)
				}
			}
			p.buckets[model.DemographicAge] = b.ID
		}
		if buckets := byKind[model.DemographicRegion]; len(buckets) > 0 {
			b := weightedPick(rng, buckets)
			p.slot.Region = b.Label
			p.buckets[model.DemographicRegion] = b.ID
		}
		if buckets := byKind[model.DemographicSocioProfessional]; len(buckets) > 0 {
			b := weightedPick(rng, buckets)
			p.slot.SocioProfessional = b.Label
			p.buckets[model.DemographicSocioProfessional] = b.ID
		}
		plans[i] = p
	}
	return plans
}

func ageBucketFor(buckets []model.Demographic, age int) (model.Demographic, bool) {
	for _, b := range buckets {
		if lo, hi, ok := parseAgeRange(b.Label); ok && age >= lo && age <= hi {
			return b, true
		}
	}
	return model.Demographic{}, false
}

// parseAgeRange reads labels like "35-44", "35 to 44" or "65+"
func parseAgeRange(label string) (lo, hi int, ok bool) {
	fields := strings.FieldsFunc(label, func(r rune) bool { return !unicode.IsDigit(r) })
	nums := make([]int, 0, 2)
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return 0, 0, false
		}
		nums = append(nums, n)
	}
	switch {
	case len(nums) == 2 && nums[0] <= nums[1]:
		return nums[0], nums[1], true
	case len(nums) == 1 && strings.HasSuffix(strings.TrimSpace(label), "+"):
		return nums[0], 100, true
	}
	return 0, 0, false
}

// weightedPick draws one bucket proportionally to its weight. Non-positive
// weights never win unless every weight is non-positive.
func weightedPick(rng *rand.Rand, buckets []model.Demographic) model.Demographic {
	var total float64
	for _, b := range buckets {
		if b.Weight > 0 {
			total += b.Weight
		}
	}
	if total <= 0 {
		return buckets[rng.Intn(len(buckets))]
	}
	r := rng.Float64() * total
	for _, b := range buckets {
		if b.Weight <= 0 {
			continue
		}
		if r < b.Weight {
			return b
		}
		r -= b.Weight
	}
	return buckets[len(buckets)-1]
}
