package prompt

import (
	"fmt"
	"math/rand"
	"strings"

	"popsim/internal/model"
)

// ReactionSystemPrompt frames reaction calls
const ReactionSystemPrompt = "You role-play a specific person reacting to news. You stay in character and answer with JSON only."

// ReactionInput is one agent facing a scenario
type ReactionInput struct {
	Agent       model.Agent
	ClusterName string
	Scenario    string
	Context     string
	Variance    string
}

// ReactionBatchInput is several agents facing the same scenario
type ReactionBatchInput struct {
	Agents       []model.Agent
	ClusterNames map[string]string // clusterID -> name
	Scenario     string
	Context      string
	Variance     string
}

var varianceStyles = []string{
	"Avoid round numbers: pick precise scores such as 37, 58 or 83 rather than 40, 60 or 80.",
	"Scores must reflect this individual, not a segment average; use uneven values.",
	"Do not default to the middle of the scale; commit to where this person really stands.",
	"Use the full 0-100 range where it fits the person, and avoid multiples of ten.",
}

// Variance returns a per-call nudge that keeps similar agents from
// collapsing onto identical round-number scores
func Variance(rng *rand.Rand) string {
	style := varianceStyles[rng.Intn(len(varianceStyles))]
	return fmt.Sprintf("%s Personal calibration offset for this answer: %+d.", style, rng.Intn(15)-7)
}

func reactionFields(withAgentID bool) string {
	id := ""
	if withAgentID {
		id = "\n  \"agent_id\": \"the id given for this person\","
	}
	return fmt.Sprintf(`{%s
  "stance_score": 0-100 (0 = totally against, 100 = totally for),
  "confidence": 0-100,
  "emotion": "%s",
  "key_reasons": ["reason", "reason", "reason"],
  "response": "what they say, in their own voice, 80 to 160 characters",
  "true_belief": {
    "inner_stance_score": 0-100,
    "cognitive_biases": ["bias at play"],
    "core_values_impact": "how the scenario touches their core values",
    "self_awareness": 0-100
  },
  "public_expression": {
    "expressed_stance_score": 0-100,
    "expression_modifier": -50 to 50 (expressed minus inner),
    "filter_reasons": ["why they soften or harden what they say"],
    "context": "%s"
  },
  "behavioral_action": {
    "action_type": "%s",
    "action_intensity": 0-100,
    "action_consistency": "%s",
    "predicted_engagement": "%s"
  }
}`,
		id,
		joinEnum(model.Emotions),
		joinEnum(model.ExpressionContexts),
		joinEnum(model.ActionTypes),
		joinEnum(model.ActionConsistencies),
		joinEnum(model.Engagements),
	)
}

const reactionRules = `RULES:
- key_reasons has exactly 3 short, distinct strings.
- true_belief, public_expression and behavioral_action are JSON objects, never strings.
- stance_score is the stance implied by the action; inner_stance_score is what they privately think; expressed_stance_score is what they say.
- All scores are integers.`

// ReactionPrompt asks one agent for a structured reaction
func ReactionPrompt(in ReactionInput) string {
	return fmt.Sprintf(`You are %s.

%s

SCENARIO:
%s
%s
How do you react? Think about what you privately believe, what you would say out loud given your expression profile, and what you would actually do.

%s
%s

Return ONLY valid JSON matching this schema, with no commentary and no markdown:
%s`,
		in.Agent.Name,
		persona(in.Agent, in.ClusterName),
		in.Scenario,
		contextBlock(in.Context),
		reactionRules,
		in.Variance,
		reactionFields(false),
	)
}

// ReactionBatchPrompt asks several agents for reactions in one JSON array
func ReactionBatchPrompt(in ReactionBatchInput) string {
	var people strings.Builder
	for i, a := range in.Agents {
		fmt.Fprintf(&people, "PERSON %d (id: %s)\n%s\n\n", i+1, a.ID, persona(a, in.ClusterNames[a.ClusterID]))
	}
	return fmt.Sprintf(`Role-play each of the following %d people independently. Each reacts in character; do not let one person's answer influence another's.

%sSCENARIO:
%s
%s
%s
%s

Return ONLY a JSON array with exactly one object per person, each matching this schema, with no commentary and no markdown:
%s`,
		len(in.Agents),
		people.String(),
		in.Scenario,
		contextBlock(in.Context),
		reactionRules,
		in.Variance,
		reactionFields(true),
	)
}

func persona(a model.Agent, clusterName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s, age %d\n", a.Name, a.Age)
	if clusterName != "" {
		fmt.Fprintf(&b, "Opinion segment: %s\n", clusterName)
	}
	if a.SocioDemographic != "" {
		fmt.Fprintf(&b, "Background: %s\n", a.SocioDemographic)
	}
	if len(a.Traits) > 0 {
		fmt.Fprintf(&b, "Traits: %s\n", strings.Join(a.Traits, ", "))
	}
	if a.Priors != "" {
		fmt.Fprintf(&b, "Biography: %s\n", a.Priors)
	}
	if a.SpeakingStyle != "" {
		fmt.Fprintf(&b, "Speaking style: %s\n", a.SpeakingStyle)
	}
	ep := a.ExpressionProfile
	fmt.Fprintf(&b, "Expression profile: directness %s, social filter %s, conformity pressure %s, context sensitivity %s\n",
		ep.Directness, ep.SocialFilter, ep.ConformityPressure, ep.ContextSensitivity)
	pp := a.PsychologicalProfile
	if len(pp.CoreValues) > 0 {
		fmt.Fprintf(&b, "Core values: %s\n", strings.Join(pp.CoreValues, ", "))
	}
	if len(pp.CognitiveBiases) > 0 {
		fmt.Fprintf(&b, "Cognitive biases: %s\n", strings.Join(pp.CognitiveBiases, ", "))
	}
	fmt.Fprintf(&b, "Risk tolerance: %d/100, assertiveness: %d/100", pp.RiskTolerance, pp.Assertiveness)
	return b.String()
}

func contextBlock(ctx string) string {
	if strings.TrimSpace(ctx) == "" {
		return ""
	}
	return "\nCONTEXT:\n" + ctx + "\n"
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, "|")
}
