package prompt

import (
	"fmt"
	"strings"
)

// AgentSystemPrompt frames persona synthesis calls
const AgentSystemPrompt = "You create realistic, diverse synthetic personas for opinion research. You answer with JSON only."

// AgentSlot is one persona to create. Region and SocioProfessional are
// demographic bucket labels and may be empty.
type AgentSlot struct {
	TargetAge         int
	Region            string
	SocioProfessional string
}

// AgentInput is everything needed to ask for personas of one cluster
type AgentInput struct {
	ClusterName        string
	ClusterDescription string
	Slots              []AgentSlot
	ForbiddenFirst     []string
	ForbiddenLast      []string
}

const agentSchema = `{
  "name": "First Last",
  "age": 0,
  "socio_demographic": "occupation, household, education, where they live",
  "traits": ["trait", "trait", "trait"],
  "priors": "three to five sentence biography explaining how they came to their views",
  "speaking_style": "how they talk",
  "expression_profile": {
    "directness": "high|medium|low",
    "social_filter": "high|medium|low",
    "conformity_pressure": "high|medium|low",
    "context_sensitivity": "high|medium|low"
  },
  "psychological_profile": {
    "core_values": ["value", "value"],
    "cognitive_biases": ["bias", "bias"],
    "risk_tolerance": 0-100,
    "assertiveness": 0-100
  }
}`

// AgentPrompt asks for a single persona (the first slot of in)
func AgentPrompt(in AgentInput) string {
	slot := AgentSlot{TargetAge: 40}
	if len(in.Slots) > 0 {
		slot = in.Slots[0]
	}
	return fmt.Sprintf(`Create ONE persona belonging to this opinion segment.

SEGMENT: %s
%s

PERSONA REQUIREMENTS:
%s
%s
Return ONLY valid JSON matching this schema, with no commentary and no markdown:
%s`,
		in.ClusterName,
		in.ClusterDescription,
		slotLine(0, slot),
		forbiddenBlock(in.ForbiddenFirst, in.ForbiddenLast),
		agentSchema,
	)
}

// AgentBatchPrompt asks for len(in.Slots) personas in one JSON array
func AgentBatchPrompt(in AgentInput) string {
	var slots strings.Builder
	for i, s := range in.Slots {
		slots.WriteString(slotLine(i, s))
		slots.WriteString("\n")
	}
	return fmt.Sprintf(`Create %d DISTINCT personas belonging to this opinion segment.

SEGMENT: %s
%s

Each persona must share the segment's outlook but differ in background, occupation, temperament and reasoning.
Do not reuse a first name or a last name within the batch.

PERSONAS (one per line, in this order):
%s%s
Return ONLY a JSON array of exactly %d objects, in the order above, each matching this schema, with no commentary and no markdown:
%s`,
		len(in.Slots),
		in.ClusterName,
		in.ClusterDescription,
		slots.String(),
		forbiddenBlock(in.ForbiddenFirst, in.ForbiddenLast),
		len(in.Slots),
		agentSchema,
	)
}

func slotLine(i int, s AgentSlot) string {
	parts := []string{fmt.Sprintf("%d. age exactly %d", i+1, s.TargetAge)}
	if s.Region != "" {
		parts = append(parts, "lives in "+s.Region)
	}
	if s.SocioProfessional != "" {
		parts = append(parts, "socio-professional group: "+s.SocioProfessional)
	}
	return strings.Join(parts, "; ")
}

func forbiddenBlock(first, last []string) string {
	if len(first) == 0 && len(last) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nNAMES ALREADY USED (do NOT use any of them):\n")
	if len(first) > 0 {
		b.WriteString("First names: " + strings.Join(first, ", ") + "\n")
	}
	if len(last) > 0 {
		b.WriteString("Last names: " + strings.Join(last, ", ") + "\n")
	}
	return b.String()
}
