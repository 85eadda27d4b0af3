package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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
	"popsim/internal/service"
	"popsim/internal/transport/rest/middleware"
	"popsim/internal/transport/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const reactionJSON = `{
  "stance_score": 35,
  "confidence": 60,
  "emotion": "anger",
  "key_reasons": ["rent", "traffic", "noise"],
  "response": "Nobody asked the people who actually live next to the site, and the rent is already too high around here.",
  "true_belief": {"inner_stance_score": 30, "cognitive_biases": [], "core_values_impact": "fairness", "self_awareness": 55},
  "public_expression": {"expressed_stance_score": 35, "expression_modifier": 5, "filter_reasons": [], "context": "private"},
  "behavioral_action": {"action_type": "discuss_privately", "action_intensity": 30, "action_consistency": "consistent", "predicted_engagement": "low"}
}`

type testServer struct {
	handler http.Handler
	repos   *repository.Repos
	runner  *service.Runner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repos := repository.NewMemoryRepos()
	runs := cache.NewMemoryRunCache()
	bus := progress.NewBus()
	bus.Subscribe(service.StatusHandler(runs, nil))
	runner := service.NewRunner(bus, runs, nil)

	gw := llm.GatewayFunc(func(_ context.Context, req llm.Request) llm.Result {
		if req.SystemPrompt == prompt.SummarySystemPrompt {
			return llm.Result{Content: "Mostly against."}
		}
		return llm.Result{Content: reactionJSON}
	})
	cfg := config.DefaultGenerationConfig()
	sleep := generation.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })

	hub := ws.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		require.NoError(t, runner.Shutdown(context.Background()))
		cancel()
		<-stopped
	})

	return &testServer{
		handler: NewRouter(&Container{
			ZoneService:       service.NewZoneService(repos, nil),
			ClusterService:    service.NewClusterService(repos, nil),
			AgentService:      service.NewAgentService(repos, nil, generation.NewAgentEngine(gw, cfg, nil, sleep), runner, cfg, nil),
			SimulationService: service.NewSimulationService(repos, cache.NewMemoryStatsCache(), nil, generation.NewReactionEngine(gw, cfg, nil, sleep), gw, runner, nil),
			PollService:       service.NewPollService(repos, cache.NewMemoryStatsCache(), nil, generation.NewPollEngine(gw, cfg, nil, sleep), runner, nil),
			Runner:            runner,
			WSHub:             hub,
		}),
		repos:  repos,
		runner: runner,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodOptions, "/v1/zones", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestZoneEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/zones", map[string]string{"name": "Nantes"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var zone model.Zone
	decode(t, rec, &zone)
	require.NotEmpty(t, zone.ID)

	rec = s.do(t, http.MethodGet, "/v1/zones/"+zone.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/v1/zones/"+zone.ID, map[string]string{"name": "Nantes metro"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &zone)
	assert.Equal(t, "Nantes metro", zone.Name)

	rec = s.do(t, http.MethodPost, "/v1/zones/"+zone.ID+"/demographics",
		map[string]interface{}{"kind": "age", "label": "18-29", "weight": 20})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/zones/"+zone.ID+"/demographics", nil)
	var demo struct {
		Demographics []model.Demographic `json:"demographics"`
	}
	decode(t, rec, &demo)
	assert.Len(t, demo.Demographics, 1)

	rec = s.do(t, http.MethodDelete, "/v1/zones/"+zone.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/zones/"+zone.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestZoneErrors(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/zones", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/zones", map[string]string{"name": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/v1/zones/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func createCluster(t *testing.T, s *testServer, zoneID, name string, weight float64) model.Cluster {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/zones/"+zoneID+"/clusters", map[string]interface{}{
		"name":        name,
		"description": name + " of the inner suburbs",
		"weight":      weight,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c model.Cluster
	decode(t, rec, &c)
	return c
}

func createZone(t *testing.T, s *testServer) model.Zone {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/zones", map[string]string{"name": "Nantes"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var zone model.Zone
	decode(t, rec, &zone)
	return zone
}

func TestClusterNormalize(t *testing.T) {
	s := newTestServer(t)
	zone := createZone(t, s)
	createCluster(t, s, zone.ID, "Workers", 10)
	createCluster(t, s, zone.ID, "Families", 30)

	rec := s.do(t, http.MethodPost, "/v1/zones/"+zone.ID+"/clusters/normalize", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Clusters []model.Cluster `json:"clusters"`
	}
	decode(t, rec, &out)
	var total float64
	for _, c := range out.Clusters {
		total += c.Weight
	}
	assert.InDelta(t, 100, total, 0.001)
}

func TestSimulationLifecycle(t *testing.T) {
	s := newTestServer(t)
	zone := createZone(t, s)
	cluster := createCluster(t, s, zone.ID, "Workers", 100)

	ctx := context.Background()
	start, err := s.repos.Clusters.ReserveAgentNumbers(ctx, cluster.ID, 3)
	require.NoError(t, err)
	agents := make([]model.Agent, 3)
	for i := range agents {
		agents[i] = model.Agent{
			ID:          fmt.Sprintf("agent-%d", i),
			ClusterID:   cluster.ID,
			AgentNumber: start + i,
			Name:        fmt.Sprintf("Worker %d", i),
			Age:         35 + i,
		}
	}
	require.NoError(t, s.repos.Agents.CreateMany(ctx, agents))

	rec := s.do(t, http.MethodPost, "/v1/simulations", map[string]interface{}{
		"scenario":  "The city closes the main bridge to cars for two years.",
		"panel":     map[string]interface{}{"zoneId": zone.ID, "agentCount": 3},
		"summarize": true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started struct {
		RunID string `json:"runId"`
	}
	decode(t, rec, &started)
	require.NotEmpty(t, started.RunID)

	s.runner.Wait()

	rec = s.do(t, http.MethodGet, "/v1/runs/"+started.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status model.RunStatus
	decode(t, rec, &status)
	require.Equal(t, model.RunCompleted, status.State, status.Error)
	require.NotEmpty(t, status.ResultID)

	rec = s.do(t, http.MethodGet, "/v1/simulations/"+status.ResultID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sim model.Simulation
	decode(t, rec, &sim)
	assert.Len(t, sim.Results, 3)
	assert.Equal(t, "Mostly against.", sim.Summary)

	rec = s.do(t, http.MethodGet, "/v1/simulations/"+status.ResultID+"/rows", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/simulations?limit=5", nil)
	var list struct {
		Simulations []model.Simulation `json:"simulations"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Simulations, 1)
}

func TestSimulationValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/simulations", map[string]interface{}{
		"panel": map[string]interface{}{"zoneId": "z", "agentCount": 3},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/polls", map[string]interface{}{
		"poll":  map[string]interface{}{"question": "Bridge?", "mode": "choice", "options": []string{"Yes"}},
		"panel": map[string]interface{}{"zoneId": "z", "agentCount": 3},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateAgentsUnknownCluster(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/v1/clusters/missing/agents/generate", map[string]int{"count": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
