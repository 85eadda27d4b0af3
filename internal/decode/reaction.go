package decode

import (
	"math"
	"strings"
	"unicode"

	"popsim/internal/model"
)

// Target response length, in runes
const (
	ResponseMinLen = 80
	ResponseMaxLen = 160
)

// Repair records a lenient field that was changed during decoding
type Repair struct {
	Field string
	From  string
	To    string
}

// DecodeReaction parses model text into a ReactionTurn
func DecodeReaction(text string) (*model.ReactionTurn, []Repair, error) {
	m, err := ParseObject(text)
	if err != nil {
		return nil, nil, err
	}
	return ReactionFromMap(m)
}

// ReactionFromMap validates an already parsed reaction object. The strict pass
// runs first and fails on the first invalid required field; the repair pass
// then fixes cosmetic fields; clamping comes last so an out-of-range value is
// only bounded once it is known to be well-typed.
func ReactionFromMap(m map[string]interface{}) (*model.ReactionTurn, []Repair, error) {
	turn, err := strictReaction(m)
	if err != nil {
		return nil, nil, err
	}
	repairs := repairReaction(turn, m)
	clampReaction(turn)
	applyCoherence(turn, m)
	return turn, repairs, nil
}

func strictReaction(m map[string]interface{}) (*model.ReactionTurn, error) {
	var (
		turn model.ReactionTurn
		err  error
	)

	if turn.StanceScore, err = requireNumber(m, "", "stance_score"); err != nil {
		return nil, err
	}
	if turn.Confidence, err = requireNumber(m, "", "confidence"); err != nil {
		return nil, err
	}
	if turn.KeyReasons, err = requireStringArray(m, "", "key_reasons"); err != nil {
		return nil, err
	}
	if turn.Response, err = requireString(m, "", "response"); err != nil {
		return nil, err
	}

	tb, err := requireObject(m, "", "true_belief")
	if err != nil {
		return nil, err
	}
	if turn.TrueBelief.InnerStanceScore, err = requireNumber(tb, "true_belief", "inner_stance_score"); err != nil {
		return nil, err
	}
	if turn.TrueBelief.CognitiveBiases, err = requireStringArray(tb, "true_belief", "cognitive_biases"); err != nil {
		return nil, err
	}
	if turn.TrueBelief.CoreValuesImpact, err = requireString(tb, "true_belief", "core_values_impact"); err != nil {
		return nil, err
	}
	if turn.TrueBelief.SelfAwareness, err = requireNumber(tb, "true_belief", "self_awareness"); err != nil {
		return nil, err
	}

	pe, err := requireObject(m, "", "public_expression")
	if err != nil {
		return nil, err
	}
	if turn.PublicExpression.ExpressedStanceScore, err = requireNumber(pe, "public_expression", "expressed_stance_score"); err != nil {
		return nil, err
	}
	if turn.PublicExpression.ExpressionModifier, err = requireNumber(pe, "public_expression", "expression_modifier"); err != nil {
		return nil, err
	}
	if turn.PublicExpression.FilterReasons, err = requireStringArray(pe, "public_expression", "filter_reasons"); err != nil {
		return nil, err
	}
	if turn.PublicExpression.Context, err = requireEnum(pe, "public_expression", "context", model.ExpressionContexts); err != nil {
		return nil, err
	}

	ba, err := requireObject(m, "", "behavioral_action")
	if err != nil {
		return nil, err
	}
	if turn.BehavioralAction.ActionType, err = requireEnum(ba, "behavioral_action", "action_type", model.ActionTypes); err != nil {
		return nil, err
	}
	if turn.BehavioralAction.ActionIntensity, err = requireNumber(ba, "behavioral_action", "action_intensity"); err != nil {
		return nil, err
	}
	if turn.BehavioralAction.ActionConsistency, err = requireEnum(ba, "behavioral_action", "action_consistency", model.ActionConsistencies); err != nil {
		return nil, err
	}
	if turn.BehavioralAction.PredictedEngagement, err = requireEnum(ba, "behavioral_action", "predicted_engagement", model.Engagements); err != nil {
		return nil, err
	}

	return &turn, nil
}

func repairReaction(turn *model.ReactionTurn, m map[string]interface{}) []Repair {
	var repairs []Repair

	raw := optionalString(m["emotion"])
	turn.Emotion = NormalizeEmotion(raw)
	if raw != string(turn.Emotion) {
		repairs = append(repairs, Repair{Field: "emotion", From: raw, To: string(turn.Emotion)})
	}

	reasons := RepairReasons(turn.KeyReasons)
	if !equalStrings(reasons, turn.KeyReasons) {
		repairs = append(repairs, Repair{
			Field: "key_reasons",
			From:  strings.Join(turn.KeyReasons, " | "),
			To:    strings.Join(reasons, " | "),
		})
	}
	turn.KeyReasons = reasons

	resp := RepairResponse(turn.Response, reasons)
	if resp != turn.Response {
		repairs = append(repairs, Repair{Field: "response", From: turn.Response, To: resp})
	}
	turn.Response = resp

	return repairs
}

func clampReaction(t *model.ReactionTurn) {
	t.StanceScore = model.ClampInt(t.StanceScore, 0, 100)
	t.Confidence = model.ClampInt(t.Confidence, 0, 100)
	t.TrueBelief.InnerStanceScore = model.ClampInt(t.TrueBelief.InnerStanceScore, 0, 100)
	t.TrueBelief.SelfAwareness = model.ClampInt(t.TrueBelief.SelfAwareness, 0, 100)
	t.PublicExpression.ExpressedStanceScore = model.ClampInt(t.PublicExpression.ExpressedStanceScore, 0, 100)
	t.PublicExpression.ExpressionModifier = model.ClampInt(t.PublicExpression.ExpressionModifier, -50, 50)
	t.BehavioralAction.ActionIntensity = model.ClampInt(t.BehavioralAction.ActionIntensity, 0, 100)
}

// applyCoherence keeps a well-formed model-supplied score and breakdown and
// derives whatever is missing from the three stance scores
func applyCoherence(t *model.ReactionTurn, m map[string]interface{}) {
	bd := DeriveCoherence(t)
	if obj, ok := m["coherence_breakdown"].(map[string]interface{}); ok {
		be, ok1 := asNumber(obj["belief_expression_gap"])
		bac, ok2 := asNumber(obj["belief_action_gap"])
		ea, ok3 := asNumber(obj["expression_action_gap"])
		if ok1 && ok2 && ok3 {
			bd = model.CoherenceBreakdown{
				BeliefExpressionGap: model.ClampInt(be, 0, 100),
				BeliefActionGap:     model.ClampInt(bac, 0, 100),
				ExpressionActionGap: model.ClampInt(ea, 0, 100),
			}
		}
	}

	score := CoherenceScore(bd)
	if n, ok := asNumber(m["coherence_score"]); ok {
		score = model.ClampInt(n, 0, 100)
	}
	t.CoherenceBreakdown = &bd
	t.CoherenceScore = &score
}

// DeriveCoherence computes the pairwise gaps between belief, expression and action
func DeriveCoherence(t *model.ReactionTurn) model.CoherenceBreakdown {
	inner := t.TrueBelief.InnerStanceScore
	expressed := t.PublicExpression.ExpressedStanceScore
	action := t.StanceScore
	return model.CoherenceBreakdown{
		BeliefExpressionGap: absInt(inner - expressed),
		BeliefActionGap:     absInt(inner - action),
		ExpressionActionGap: absInt(expressed - action),
	}
}

// CoherenceScore is 100 minus the rounded mean gap, bounded to [0,100]
func CoherenceScore(bd model.CoherenceBreakdown) int {
	mean := float64(bd.BeliefExpressionGap+bd.BeliefActionGap+bd.ExpressionActionGap) / 3
	return model.ClampInt(100-int(math.Round(mean)), 0, 100)
}

// RepairReasons trims, de-duplicates and fits reasons to exactly three,
// padding with model.UnstatedReason
func RepairReasons(in []string) []string {
	out := make([]string, 0, 3)
	seen := make(map[string]bool, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		k := strings.ToLower(r)
		if r == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
		if len(out) == 3 {
			return out
		}
	}
	for len(out) < 3 {
		out = append(out, model.UnstatedReason)
	}
	return out
}

// RepairResponse fits a response into the target length, counted in runes.
// Short text is extended with the key reasons. Long text is cut at the last
// sentence end between ResponseMinLen and ResponseMaxLen, else at the last
// space in that window with an ellipsis, else hard-cut with an ellipsis.
func RepairResponse(resp string, reasons []string) string {
	resp = strings.Join(strings.Fields(resp), " ")
	r := []rune(resp)

	if len(r) < ResponseMinLen {
		var stated []string
		for _, reason := range reasons {
			if reason != model.UnstatedReason {
				stated = append(stated, reason)
			}
		}
		if len(stated) > 0 {
			if len(r) > 0 && !isSentenceEnd(r[len(r)-1]) {
				resp += "."
			}
			resp += " Mainly: " + strings.Join(stated, "; ") + "."
			r = []rune(resp)
		}
	}

	if len(r) <= ResponseMaxLen {
		return resp
	}
	for i := ResponseMaxLen - 1; i >= ResponseMinLen-1; i-- {
		if isSentenceEnd(r[i]) {
			return string(r[:i+1])
		}
	}
	cut := ResponseMaxLen - 3
	for i := cut; i >= ResponseMinLen; i-- {
		if unicode.IsSpace(r[i]) {
			return strings.TrimRightFunc(string(r[:i]), func(c rune) bool {
				return unicode.IsSpace(c) || c == ',' || c == ';' || c == ':'
			}) + "..."
		}
	}
	return string(r[:cut]) + "..."
}

func isSentenceEnd(c rune) bool {
	return c == '.' || c == '!' || c == '?' || c == '…' || c == '。' || c == '！' || c == '？'
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
