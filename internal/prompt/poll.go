package prompt

import (
	"fmt"
	"strings"

	"popsim/internal/model"
)

// PollSystemPrompt frames poll calls
const PollSystemPrompt = "You role-play survey respondents. Each respondent answers in character. You answer with JSON only."

// PollInput is a poll put to several agents in one call
type PollInput struct {
	Poll         model.Poll
	Agents       []model.Agent
	ClusterNames map[string]string
	Variance     string
}

// PollBatchPrompt asks every agent in the input to answer the poll
func PollBatchPrompt(in PollInput) string {
	var people strings.Builder
	for i, a := range in.Agents {
		fmt.Fprintf(&people, "RESPONDENT %d (id: %s)\n%s\n\n", i+1, a.ID, persona(a, in.ClusterNames[a.ClusterID]))
	}

	options := make([]string, len(in.Poll.Options))
	for i, o := range in.Poll.Options {
		options[i] = fmt.Sprintf("- %s", o)
	}

	return fmt.Sprintf(`Each of the following %d respondents answers the same question independently, in character.

%sQUESTION:
%s

OPTIONS (use the exact wording):
%s

%s
%s

Return ONLY a JSON array with exactly one object per respondent, with no commentary and no markdown. Each object:
%s`,
		len(in.Agents),
		people.String(),
		in.Poll.Question,
		strings.Join(options, "\n"),
		pollInstruction(in.Poll),
		in.Variance,
		pollSchema(in.Poll),
	)
}

func pollInstruction(p model.Poll) string {
	switch p.Mode {
	case model.PollRanking:
		return fmt.Sprintf("Each respondent ranks ALL %d options from most to least preferred.", len(p.Options))
	case model.PollScoring:
		return "Each respondent scores EVERY option from 0 (strongly reject) to 100 (strongly support)."
	default:
		return "Each respondent picks exactly ONE option."
	}
}

func pollSchema(p model.Poll) string {
	switch p.Mode {
	case model.PollRanking:
		return `{"agent_id": "id", "ranking": ["most preferred option", "...", "least preferred option"], "reasoning": "one sentence"}`
	case model.PollScoring:
		pairs := make([]string, len(p.Options))
		for i, o := range p.Options {
			pairs[i] = fmt.Sprintf("%q: 0-100", o)
		}
		return fmt.Sprintf(`{"agent_id": "id", "scores": {%s}, "reasoning": "one sentence"}`, strings.Join(pairs, ", "))
	default:
		return `{"agent_id": "id", "choice": "one option, exact wording", "reasoning": "one sentence"}`
	}
}
