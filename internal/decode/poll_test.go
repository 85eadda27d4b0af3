package decode

import (
	"errors"
	"testing"

	"popsim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transportOptions = []string{"Bus", "Bike", "Car"}

func TestDecodePollChoice(t *testing.T) {
	poll := model.Poll{Question: "q", Options: transportOptions, Mode: model.PollChoice}
	out, err := DecodePollAnswers(`[
	  {"agent_id": "a1", "choice": "bike", "reasoning": "cheap"},
	  {"agent_id": "a2", "choice": "Tram"}
	]`, poll)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.NoError(t, out[0].Err)
	assert.Equal(t, "Bike", out[0].Choice)
	assert.Equal(t, "cheap", out[0].Reasoning)
	require.Len(t, out[0].Repairs, 1)

	var ferr *FieldError
	require.True(t, errors.As(out[1].Err, &ferr))
	assert.Equal(t, "[1].choice", ferr.Field)
}

func TestDecodePollRankingCompletesMissingOptions(t *testing.T) {
	poll := model.Poll{Question: "q", Options: transportOptions, Mode: model.PollRanking}
	out, err := DecodePollAnswers(`[{"agent_id": "a1", "ranking": ["car"]}, {"agent_id": "a2", "ranking": ["Car", "car"]}]`, poll)
	require.NoError(t, err)

	assert.NoError(t, out[0].Err)
	assert.Equal(t, []string{"Car", "Bus", "Bike"}, out[0].Ranking)
	assert.Len(t, out[0].Repairs, 1)

	assert.Error(t, out[1].Err, "duplicate entries are not a lossless repair")
}

func TestDecodePollScoring(t *testing.T) {
	poll := model.Poll{Question: "q", Options: transportOptions, Mode: model.PollScoring}
	out, err := DecodePollAnswers(`[
	  {"agent_id": "a1", "scores": {"bus": 70, "Bike": 120, "Car": -5}},
	  {"agent_id": "a2", "scores": {"Bus": 10, "Bike": 20}},
	  {"agent_id": "a3", "scores": {"Bus": "ten", "Bike": 20, "Car": 1}}
	]`, poll)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.NoError(t, out[0].Err)
	assert.Equal(t, map[string]int{"Bus": 70, "Bike": 100, "Car": 0}, out[0].Scores)
	assert.Len(t, out[0].Repairs, 2)

	var ferr *FieldError
	require.True(t, errors.As(out[1].Err, &ferr))
	assert.Equal(t, "[1].scores.Car", ferr.Field)

	assert.Error(t, out[2].Err)
}
