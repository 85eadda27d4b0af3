package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"popsim/internal/cache"
	"popsim/internal/config"
	"popsim/internal/generation"
	"popsim/internal/llm"
	"popsim/internal/model"
	"popsim/internal/progress"
	"popsim/internal/prompt"
	"popsim/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func reaction(stance int) string {
	return fmt.Sprintf(`{
  "stance_score": %d,
  "confidence": 70,
  "emotion": "fear",
  "key_reasons": ["cost of living", "fairness", "public transport"],
  "response": "If this goes through I will have to rethink how I get to work, and I am not convinced anyone asked people like me first.",
  "true_belief": {"inner_stance_score": %d, "cognitive_biases": [], "core_values_impact": "security", "self_awareness": 50},
  "public_expression": {"expressed_stance_score": %d, "expression_modifier": 0, "filter_reasons": [], "context": "private"},
  "behavioral_action": {"action_type": "discuss_privately", "action_intensity": 40, "action_consistency": "consistent", "predicted_engagement": "medium"}
}`, stance, stance, stance)
}

func persona(name string) string {
	return fmt.Sprintf(`{"name": %q, "age": 41, "socio_demographic": "bus driver", "traits": ["patient"], "priors": "Grew up in the suburbs.", "speaking_style": "direct"}`, name)
}

// fakeLLM answers by system prompt and counts calls
type fakeLLM struct {
	mu       sync.Mutex
	calls    int
	reaction func(n int, req llm.Request) llm.Result
	summary  llm.Result
	persona  func(n int, req llm.Request) string
	poll     func(req llm.Request) llm.Result
}

func (f *fakeLLM) Call(_ context.Context, req llm.Request) llm.Result {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	switch req.SystemPrompt {
	case prompt.SummarySystemPrompt:
		return f.summary
	case prompt.AgentSystemPrompt:
		return llm.Result{Content: f.persona(n, req)}
	case prompt.PollSystemPrompt:
		return f.poll(req)
	}
	if f.reaction != nil {
		return f.reaction(n, req)
	}
	return llm.Result{Content: reaction(20 + (n*17)%80)}
}

func (f *fakeLLM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fixture is a populated in-memory deployment
type fixture struct {
	repos    *repository.Repos
	stats    cache.StatsCache
	runs     cache.RunCache
	bus      *progress.Bus
	runner   *Runner
	llm      *fakeLLM
	zone     *model.Zone
	clusters []*model.Cluster

	zones       *ZoneService
	clusterSvc  *ClusterService
	agents      *AgentService
	simulations *SimulationService
	polls       *PollService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		repos: repository.NewMemoryRepos(),
		stats: cache.NewMemoryStatsCache(),
		runs:  cache.NewMemoryRunCache(),
		bus:   progress.NewBus(),
		llm:   &fakeLLM{summary: llm.Result{Content: "Opinion leans negative."}},
	}
	f.runner = NewRunner(f.bus, f.runs, nil)

	cfg := config.DefaultGenerationConfig()
	opts := []generation.Option{generation.WithSleeper(skipSleep), generation.WithSeed(11)}

	f.zones = NewZoneService(f.repos, nil)
	f.clusterSvc = NewClusterService(f.repos, nil)
	f.agents = NewAgentService(f.repos, nil, generation.NewAgentEngine(f.llm, cfg, nil, opts...), f.runner, cfg, nil)
	f.simulations = NewSimulationService(f.repos, f.stats, nil, generation.NewReactionEngine(f.llm, cfg, nil, opts...), f.llm, f.runner, nil)
	f.polls = NewPollService(f.repos, f.stats, nil, generation.NewPollEngine(f.llm, cfg, nil, opts...), f.runner, nil)
	f.simulations.Seed(3)
	f.polls.Seed(3)

	f.zone = &model.Zone{Name: "Lyon metro"}
	require.NoError(t, f.zones.Create(ctx, f.zone))
	for _, c := range []struct {
		name   string
		weight float64
	}{{"Commuters", 50}, {"Retirees", 30}, {"Students", 20}} {
		cluster := &model.Cluster{
			ZoneID:      f.zone.ID,
			Name:        c.name,
			Description: c.name + " living in and around the city centre",
			Weight:      c.weight,
		}
		require.NoError(t, f.clusterSvc.Create(ctx, cluster))
		f.clusters = append(f.clusters, cluster)
	}
	return f
}

// seedAgents stores n agents in a cluster without going through the model
func (f *fixture) seedAgents(t *testing.T, cluster *model.Cluster, n int) {
	t.Helper()
	ctx := context.Background()
	start, err := f.repos.Clusters.ReserveAgentNumbers(ctx, cluster.ID, n)
	require.NoError(t, err)
	agents := make([]model.Agent, n)
	for i := range agents {
		agents[i] = model.Agent{
			ID:          fmt.Sprintf("%s-agent-%d", strings.ToLower(cluster.Name), i),
			ClusterID:   cluster.ID,
			AgentNumber: start + i,
			Name:        fmt.Sprintf("%s Person%d", cluster.Name, i),
			Age:         30 + i,
		}
	}
	require.NoError(t, f.repos.Agents.CreateMany(ctx, agents))
}

func (f *fixture) seedPanel(t *testing.T) {
	f.seedAgents(t, f.clusters[0], 5)
	f.seedAgents(t, f.clusters[1], 3)
	f.seedAgents(t, f.clusters[2], 2)
}

func skipSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
