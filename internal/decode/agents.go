package decode

import (
	"fmt"
	"strings"

	"popsim/internal/model"
)

// AgentDraft is a persona as the model described it. Optional fields the
// model left out stay nil or empty so the synthesis engine can fill them.
type AgentDraft struct {
	Name             string
	Age              *int
	SocioDemographic string
	Traits           []string
	Priors           string
	SpeakingStyle    string

	Directness         *model.Level
	SocialFilter       *model.Level
	ConformityPressure *model.Level
	ContextSensitivity *model.Level

	CoreValues      []string
	CognitiveBiases []string
	RiskTolerance   *int
	Assertiveness   *int
}

// DecodeAgent parses a single persona object
func DecodeAgent(text string) (*AgentDraft, error) {
	m, err := ParseObject(text)
	if err != nil {
		return nil, err
	}
	return AgentFromMap(m, "")
}

// DecodeAgents parses a persona array. Elements that fail validation are
// reported individually and left out; the call only fails when the text is not
// a JSON array at all.
func DecodeAgents(text string) ([]*AgentDraft, []error, error) {
	arr, err := ParseArray(text)
	if err != nil {
		return nil, nil, err
	}
	drafts := make([]*AgentDraft, 0, len(arr))
	var elemErrs []error
	for i, item := range arr {
		prefix := fmt.Sprintf("[%d]", i)
		m, ok := item.(map[string]interface{})
		if !ok {
			elemErrs = append(elemErrs, &FieldError{Field: prefix, Reason: "must be an object, got " + typeName(item)})
			continue
		}
		d, err := AgentFromMap(m, prefix)
		if err != nil {
			elemErrs = append(elemErrs, err)
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts, elemErrs, nil
}

// AgentFromMap reads a persona object. Only the name is required.
func AgentFromMap(m map[string]interface{}, prefix string) (*AgentDraft, error) {
	name, err := requireString(m, prefix, "name")
	if err != nil {
		return nil, err
	}

	d := &AgentDraft{
		Name:             strings.Join(strings.Fields(name), " "),
		SocioDemographic: optionalString(firstOf(m, "socio_demographic", "socioDemographic")),
		Traits:           traitList(m["traits"]),
		Priors:           optionalString(firstOf(m, "priors", "biography")),
		SpeakingStyle:    optionalString(firstOf(m, "speaking_style", "speakingStyle")),
	}
	if n, ok := asLenientNumber(m["age"]); ok {
		d.Age = &n
	}

	if ep, ok := firstOf(m, "expression_profile", "expressionProfile").(map[string]interface{}); ok {
		d.Directness = level(ep["directness"])
		d.SocialFilter = level(firstOf(ep, "social_filter", "socialFilter"))
		d.ConformityPressure = level(firstOf(ep, "conformity_pressure", "conformityPressure"))
		d.ContextSensitivity = level(firstOf(ep, "context_sensitivity", "contextSensitivity"))
	}

	if pp, ok := firstOf(m, "psychological_profile", "psychologicalProfile").(map[string]interface{}); ok {
		d.CoreValues = stringList(firstOf(pp, "core_values", "coreValues"))
		d.CognitiveBiases = stringList(firstOf(pp, "cognitive_biases", "cognitiveBiases"))
		if n, ok := asLenientNumber(firstOf(pp, "risk_tolerance", "riskTolerance")); ok {
			d.RiskTolerance = &n
		}
		if n, ok := asLenientNumber(pp["assertiveness"]); ok {
			d.Assertiveness = &n
		}
	}

	return d, nil
}

func firstOf(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func level(v interface{}) *model.Level {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if l, ok := model.ParseLevel(normalizeToken(s)); ok {
		return &l
	}
	return nil
}

// traitList accepts an array or a comma separated string
func traitList(v interface{}) []string {
	if s, ok := v.(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return stringList(v)
}
