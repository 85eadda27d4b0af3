package decode

import (
	"errors"
	"testing"

	"popsim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAgentsBatch(t *testing.T) {
	text := "```json\n" + `[
  {
    "name": "Camille  Roux",
    "age": "37",
    "socio_demographic": "Nurse, two kids, suburb of Lyon",
    "traits": "pragmatic, tired, warm",
    "priors": "Grew up in a union family.",
    "speaking_style": "direct",
    "expression_profile": {"directness": "High", "social_filter": "low", "conformity_pressure": "extreme", "context_sensitivity": "medium"},
    "psychological_profile": {"core_values": ["solidarity"], "cognitive_biases": ["status quo bias"], "risk_tolerance": 35, "assertiveness": 140}
  },
  {"age": 50},
  "not an object",
  {"name": "Yanis Haddad"}
]` + "\n```"

	drafts, elemErrs, err := DecodeAgents(text)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	require.Len(t, elemErrs, 2)

	d := drafts[0]
	assert.Equal(t, "Camille Roux", d.Name)
	require.NotNil(t, d.Age)
	assert.Equal(t, 37, *d.Age)
	assert.Equal(t, []string{"pragmatic", "tired", "warm"}, d.Traits)
	require.NotNil(t, d.Directness)
	assert.Equal(t, model.LevelHigh, *d.Directness)
	assert.Nil(t, d.ConformityPressure, "invalid level is left for the engine to fill")
	require.NotNil(t, d.Assertiveness)
	assert.Equal(t, 140, *d.Assertiveness, "clamping is the engine's job")

	assert.Equal(t, "Yanis Haddad", drafts[1].Name)
	assert.Nil(t, drafts[1].Age)

	var ferr *FieldError
	require.True(t, errors.As(elemErrs[0], &ferr))
	assert.Equal(t, "[1].name", ferr.Field)
}

func TestDecodeAgentsRejectsNonJSON(t *testing.T) {
	_, _, err := DecodeAgents("I cannot create personas.")
	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestDecodeAgentSingle(t *testing.T) {
	d, err := DecodeAgent(`Sure: {"name": "Ines Laurent", "age": 29, "traits": ["curious"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Ines Laurent", d.Name)
	assert.Equal(t, []string{"curious"}, d.Traits)
}

func TestDecodeReactionBatchIsolatesBadElements(t *testing.T) {
	text := "[" + `{"agent_id": "a1", ` + validReaction[1:] + `, {"agent_id": "a2", "stance_score": "high"}]`

	out, err := DecodeReactionBatch(text)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "a1", out[0].AgentID)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, 34, out[0].Turn.StanceScore)

	assert.Equal(t, "a2", out[1].AgentID)
	var ferr *FieldError
	require.True(t, errors.As(out[1].Err, &ferr))
	assert.Equal(t, "stance_score", ferr.Field)
}
