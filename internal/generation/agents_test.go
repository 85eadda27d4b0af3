package generation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"popsim/internal/llm"
	"popsim/internal/model"
	"popsim/internal/progress"
	"popsim/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singlePrompt(req llm.Request) bool {
	return strings.Contains(req.Prompt, "Create ONE persona")
}

func TestAgentGenerateRecoversFailedBatchIndividually(t *testing.T) {
	rec := &recorder{}
	gw := stub(rec, func(n int, req llm.Request) llm.Result {
		if !singlePrompt(req) {
			return llm.Result{Content: "[{\"name\": \"Trunc"}
		}
		return llm.Result{Content: personaJSON(fmt.Sprintf("Solo%d Person", n))}
	})
	e := NewAgentEngine(gw, testConfig(), nil, WithSeed(7))

	cluster := model.Cluster{ID: "c1", Name: "Commuters", Description: "People who drive to work every day", NextAgentNumber: 12}
	var reported []int
	agents, err := e.Generate(context.Background(), AgentRequest{Cluster: cluster, Count: 7, StartNumber: 12}, progressInts(&reported))

	require.NoError(t, err)
	require.Len(t, agents, 7)
	for i, a := range agents {
		assert.Equal(t, 12+i, a.AgentNumber)
		assert.Equal(t, "c1", a.ClusterID)
		assert.NotEmpty(t, a.ID)
		assert.GreaterOrEqual(t, a.Age, 18)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, reported)
	// 2 batches + 7 individual calls
	assert.Equal(t, 9, rec.count())
}

func TestAgentGenerateCompletesShortBatch(t *testing.T) {
	rec := &recorder{}
	gw := stub(rec, func(n int, req llm.Request) llm.Result {
		if singlePrompt(req) {
			return llm.Result{Content: personaJSON(fmt.Sprintf("Extra%d Person", n))}
		}
		return llm.Result{Content: personaArray("Ana Lopez", "Ana Lopez", "Marc Petit")}
	})
	e := NewAgentEngine(gw, testConfig(), nil, WithSeed(1))

	agents, err := e.Generate(context.Background(), AgentRequest{Cluster: model.Cluster{ID: "c1"}, Count: 5}, nil)
	require.NoError(t, err)
	require.Len(t, agents, 5)
	assert.Equal(t, "Ana Lopez", agents[0].Name)
	assert.Equal(t, "Marc Petit", agents[1].Name, "duplicate name skipped")

	names := map[string]bool{}
	for _, a := range agents {
		assert.False(t, names[a.Name], "duplicate %s", a.Name)
		names[a.Name] = true
	}
	assert.Equal(t, 4, rec.count())
}

func TestAgentGenerateFillsMissingProfiles(t *testing.T) {
	gw := llm.GatewayFunc(func(context.Context, llm.Request) llm.Result {
		return llm.Result{Content: `[{"name": "Lea Martin", "expression_profile": {"directness": "low"}, "psychological_profile": {"assertiveness": 300}}]`}
	})
	e := NewAgentEngine(gw, testConfig(), nil, WithSeed(3))

	agents, err := e.Generate(context.Background(), AgentRequest{Cluster: model.Cluster{ID: "c1"}, Count: 1}, nil)
	require.NoError(t, err)
	a := agents[0]
	assert.Equal(t, model.LevelLow, a.ExpressionProfile.Directness)
	assert.Contains(t, model.Levels, a.ExpressionProfile.SocialFilter)
	assert.Equal(t, 100, a.PsychologicalProfile.Assertiveness)
	assert.GreaterOrEqual(t, a.PsychologicalProfile.RiskTolerance, 20)
	assert.LessOrEqual(t, a.PsychologicalProfile.RiskTolerance, 80)
	assert.NotEmpty(t, a.PsychologicalProfile.CoreValues)
	assert.NotEmpty(t, a.PsychologicalProfile.CognitiveBiases)
	assert.NotNil(t, a.Traits)
}

func TestAgentGenerateUsesRegistry(t *testing.T) {
	names := prompt.NewNameRegistry(60)
	names.Add("Ana Lopez")
	var batchPrompt string
	gw := llm.GatewayFunc(func(_ context.Context, req llm.Request) llm.Result {
		if batchPrompt == "" {
			batchPrompt = req.Prompt
		}
		return llm.Result{Content: personaArray("Ana Lopez", "Jon Berg")}
	})
	e := NewAgentEngine(gw, testConfig(), nil)

	agents, err := e.Generate(context.Background(), AgentRequest{Cluster: model.Cluster{ID: "c1"}, Count: 1, Names: names}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Jon Berg", agents[0].Name)
	assert.Contains(t, batchPrompt, "Lopez")
	assert.True(t, names.Seen("Jon Berg"))
}

func TestAgentGenerateNothingIsAnError(t *testing.T) {
	gw := llm.GatewayFunc(func(context.Context, llm.Request) llm.Result {
		return llm.Result{Err: &llm.Error{Kind: llm.KindModelNotFound, Message: "model not found"}}
	})
	e := NewAgentEngine(gw, testConfig(), nil)

	agents, err := e.Generate(context.Background(), AgentRequest{Cluster: model.Cluster{ID: "c1", Name: "X"}, Count: 3}, nil)
	assert.Nil(t, agents)
	assert.ErrorIs(t, err, ErrNoAgents)
	assert.True(t, llm.IsKind(err, llm.KindModelNotFound))
}

func TestAgentGenerateZeroCount(t *testing.T) {
	e := NewAgentEngine(llm.GatewayFunc(func(context.Context, llm.Request) llm.Result {
		return llm.Result{Err: errors.New("unused")}
	}), testConfig(), nil)
	agents, err := e.Generate(context.Background(), AgentRequest{Count: 0}, nil)
	assert.NoError(t, err)
	assert.Empty(t, agents)
}

func TestPlanSlotsDrawsBuckets(t *testing.T) {
	demos := []model.Demographic{
		{ID: "young", Kind: model.DemographicAge, Label: "18-34", Weight: 1},
		{ID: "mid", Kind: model.DemographicAge, Label: "35 to 54", Weight: 1},
		{ID: "old", Kind: model.DemographicAge, Label: "55+", Weight: 1},
		{ID: "north", Kind: model.DemographicRegion, Label: "North", Weight: 100},
		{ID: "south", Kind: model.DemographicRegion, Label: "South", Weight: 0},
		{ID: "workers", Kind: model.DemographicSocioProfessional, Label: "Workers", Weight: 1},
	}
	plans := planSlots(rand.New(rand.NewSource(5)), 12, demos)

	require.Len(t, plans, 12)
	for _, p := range plans {
		age := p.slot.TargetAge
		switch p.buckets[model.DemographicAge] {
		case "young":
			assert.True(t, age >= 18 && age <= 34, age)
		case "mid":
			assert.True(t, age >= 35 && age <= 54, age)
		case "old":
			assert.GreaterOrEqual(t, age, 55)
		default:
			t.Fatalf("no age bucket for %d", age)
		}
		assert.Equal(t, "north", p.buckets[model.DemographicRegion])
		assert.Equal(t, "North", p.slot.Region)
		assert.Equal(t, "Workers", p.slot.SocioProfessional)
	}
}

func TestParseAgeRange(t *testing.T) {
	tests := []struct {
		label  string
		lo, hi int
		ok     bool
	}{
		{"18-24", 18, 24, true},
		{"35 – 44", 35, 44, true},
		{"65+", 65, 100, true},
		{"seniors", 0, 0, false},
		{"44-35", 0, 0, false},
		{"40", 0, 0, false},
	}
	for _, tt := range tests {
		lo, hi, ok := parseAgeRange(tt.label)
		assert.Equal(t, tt.ok, ok, tt.label)
		assert.Equal(t, tt.lo, lo, tt.label)
		assert.Equal(t, tt.hi, hi, tt.label)
	}
}

func progressInts(out *[]int) progress.Reporter {
	return progress.ReporterFunc(func(_ string, current, _ int, _ string) {
		*out = append(*out, current)
	})
}
