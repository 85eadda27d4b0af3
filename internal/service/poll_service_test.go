package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"popsim/internal/llm"
	"popsim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var respondentID = regexp.MustCompile(`RESPONDENT \d+ \(id: ([^)]+)\)`)

// choiceAnswers answers "Tram" for every respondent named in the prompt
func choiceAnswers(req llm.Request) llm.Result {
	var parts []string
	for _, m := range respondentID.FindAllStringSubmatch(req.Prompt, -1) {
		parts = append(parts, fmt.Sprintf(`{"agent_id": %q, "choice": "tram", "reasoning": "it is quick"}`, m[1]))
	}
	return llm.Result{Content: "[" + strings.Join(parts, ",") + "]"}
}

func TestPollEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.seedPanel(t)
	ctx := context.Background()
	f.llm.poll = choiceAnswers

	res, err := f.polls.Run(ctx, PollRequest{
		Poll:  model.Poll{Question: "How do you get to work?", Options: []string{"Bus", "Tram", "Car"}, Mode: "Choice"},
		Panel: PanelSpec{ZoneID: f.zone.ID, AgentCount: 10},
	}, nil)
	require.NoError(t, err)

	require.Len(t, res.Responses, 10)
	assert.Equal(t, model.PollChoice, res.Poll.Mode)
	assert.Equal(t, "How do you get to work?", res.Title)
	assert.Equal(t, 10, res.Stats.Overall.Responses)
	for _, o := range res.Stats.Overall.Options {
		if o.Option == "Tram" {
			assert.Equal(t, 10, o.Count)
		}
	}
	assert.Len(t, res.Stats.Clusters, 3)
	rows := res.Rows()
	require.Len(t, rows, 10)
	assert.Equal(t, "Tram", rows[0].Answer)

	// 10 agents in batches of 5
	assert.Equal(t, 2, f.llm.count())

	cached, err := f.polls.Stats(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, cached.Overall.Responses)

	list, err := f.polls.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Responses)
}

func TestPollRejectsInvalidPoll(t *testing.T) {
	f := newFixture(t)
	var ve *model.ValidationError
	_, err := f.polls.Start(PollRequest{
		Poll:  model.Poll{Question: "Pick", Options: []string{"A"}, Mode: model.PollChoice},
		Panel: PanelSpec{ZoneID: f.zone.ID, AgentCount: 2},
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "options", ve.Field)
}

func TestPollFailsOnUnansweredAgent(t *testing.T) {
	f := newFixture(t)
	f.seedAgents(t, f.clusters[0], 2)
	f.llm.poll = func(llm.Request) llm.Result { return llm.Result{Content: `[{"choice": "Plane"}]`} }

	_, err := f.polls.Run(context.Background(), PollRequest{
		Poll:  model.Poll{Question: "Pick", Options: []string{"A", "B"}, Mode: model.PollChoice},
		Panel: PanelSpec{ClusterIDs: []string{f.clusters[0].ID}, AgentCount: 2},
	}, nil)
	var inc *IncompleteRunError
	require.ErrorAs(t, err, &inc)
	assert.Len(t, inc.Missing, 2)
}
