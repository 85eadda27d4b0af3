package decode

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"popsim/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReaction = `{
  "stance_score": 34,
  "confidence": 71,
  "emotion": "anger",
  "key_reasons": ["cost of living", "no consultation", "rural areas hit hardest"],
  "response": "Another tax on people who have no choice but to drive. Nobody asked us, and it is always the countryside that pays.",
  "true_belief": {
    "inner_stance_score": 28,
    "cognitive_biases": ["loss aversion"],
    "core_values_impact": "Threatens independence and fairness",
    "self_awareness": 62
  },
  "public_expression": {
    "expressed_stance_score": 36,
    "expression_modifier": 8,
    "filter_reasons": ["does not want to look selfish"],
    "context": "public"
  },
  "behavioral_action": {
    "action_type": "petition",
    "action_intensity": 55,
    "action_consistency": "consistent",
    "predicted_engagement": "moderate"
  }
}`

func TestDecodeReactionRoundTripsAllWrappings(t *testing.T) {
	forms := map[string]string{
		"bare":   validReaction,
		"fenced": "```json\n" + validReaction + "\n```",
		"prose":  "Sure! Here is how I would react:\n\n" + validReaction + "\n\nLet me know if you need anything else.",
	}

	var want *model.ReactionTurn
	for name, text := range forms {
		got, repairs, err := DecodeReaction(text)
		require.NoError(t, err, name)
		assert.Empty(t, repairs, name)
		if want == nil {
			want = got
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s form differs from bare form (-want +got):\n%s", name, diff)
		}
	}

	assert.Equal(t, 34, want.StanceScore)
	assert.Equal(t, model.EmotionAnger, want.Emotion)
	assert.Equal(t, model.ActionPetition, want.BehavioralAction.ActionType)
	assert.Equal(t, model.ContextPublic, want.PublicExpression.Context)
	assert.Equal(t, []string{"loss aversion"}, want.TrueBelief.CognitiveBiases)
}

func TestDecodeReactionRejectsStringTrueBelief(t *testing.T) {
	text := strings.Replace(validReaction, `"true_belief": {
    "inner_stance_score": 28,
    "cognitive_biases": ["loss aversion"],
    "core_values_impact": "Threatens independence and fairness",
    "self_awareness": 62
  }`, `"true_belief": "I am privately against it"`, 1)

	_, _, err := DecodeReaction(text)

	var ferr *FieldError
	require.True(t, errors.As(err, &ferr), "got %v", err)
	assert.Equal(t, "true_belief", ferr.Field)
	assert.Contains(t, ferr.Reason, "object")
	assert.Contains(t, err.Error(), "true_belief")
}

func TestDecodeReactionRejectsMissingActionType(t *testing.T) {
	text := strings.Replace(validReaction, `"action_type": "petition",`, "", 1)

	_, _, err := DecodeReaction(text)

	var ferr *FieldError
	require.True(t, errors.As(err, &ferr), "got %v", err)
	assert.Equal(t, "behavioral_action.action_type", ferr.Field)
	assert.Equal(t, "is missing", ferr.Reason)
}

func TestDecodeReactionStrictFields(t *testing.T) {
	cases := []struct {
		name  string
		old   string
		new   string
		field string
	}{
		{"stance as string", `"stance_score": 34`, `"stance_score": "34"`, "stance_score"},
		{"confidence missing", `"confidence": 71,`, ``, "confidence"},
		{"reasons not array", `"key_reasons": ["cost of living", "no consultation", "rural areas hit hardest"]`, `"key_reasons": "cost of living"`, "key_reasons"},
		{"empty response", `"response": "Another tax on people who have no choice but to drive. Nobody asked us, and it is always the countryside that pays."`, `"response": "  "`, "response"},
		{"bad context", `"context": "public"`, `"context": "in the pub"`, "public_expression.context"},
		{"bad engagement", `"predicted_engagement": "moderate"`, `"predicted_engagement": "lukewarm"`, "behavioral_action.predicted_engagement"},
		{"inner missing", `"inner_stance_score": 28,`, ``, "true_belief.inner_stance_score"},
		{"behavioral_action array", `"behavioral_action": {`, `"behavioral_action": [{`, "behavioral_action"},
		{"self awareness missing", `,
    "self_awareness": 62`, ``, "true_belief.self_awareness"},
		{"self awareness as word", `"self_awareness": 62`, `"self_awareness": "high"`, "true_belief.self_awareness"},
		{"biases missing", `"cognitive_biases": ["loss aversion"],`, ``, "true_belief.cognitive_biases"},
		{"values impact missing", `"core_values_impact": "Threatens independence and fairness",`, ``, "true_belief.core_values_impact"},
		{"filter reasons missing", `"filter_reasons": ["does not want to look selfish"],`, ``, "public_expression.filter_reasons"},
		{"filter reasons as string", `"filter_reasons": ["does not want to look selfish"]`, `"filter_reasons": "none"`, "public_expression.filter_reasons"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := strings.Replace(validReaction, tc.old, tc.new, 1)
			if tc.name == "behavioral_action array" {
				text = strings.Replace(text, "\"moderate\"\n  }\n}", "\"moderate\"\n  }]\n}", 1)
			}
			require.NotEqual(t, validReaction, text)

			_, _, err := DecodeReaction(text)
			var ferr *FieldError
			require.True(t, errors.As(err, &ferr), "got %v", err)
			assert.Equal(t, tc.field, ferr.Field)
		})
	}
}

func TestDecodeReactionClampsAfterValidation(t *testing.T) {
	text := strings.Replace(validReaction, `"inner_stance_score": 28`, `"inner_stance_score": 150`, 1)
	text = strings.Replace(text, `"expression_modifier": 8`, `"expression_modifier": -999`, 1)

	turn, _, err := DecodeReaction(text)
	require.NoError(t, err)

	assert.Equal(t, 100, turn.TrueBelief.InnerStanceScore)
	assert.Equal(t, -50, turn.PublicExpression.ExpressionModifier)
}

func TestDecodeReactionClampsHugeNumbers(t *testing.T) {
	text := strings.Replace(validReaction, `"inner_stance_score": 28`, `"inner_stance_score": 1e20`, 1)
	text = strings.Replace(text, `"expression_modifier": 8`, `"expression_modifier": 1e19`, 1)
	text = strings.Replace(text, `"action_intensity": 55`, `"action_intensity": -1e20`, 1)

	turn, _, err := DecodeReaction(text)
	require.NoError(t, err)

	assert.Equal(t, 100, turn.TrueBelief.InnerStanceScore)
	assert.Equal(t, 50, turn.PublicExpression.ExpressionModifier)
	assert.Equal(t, 0, turn.BehavioralAction.ActionIntensity)
}

func TestDecodeReactionLenientRepairs(t *testing.T) {
	text := strings.Replace(validReaction, `"emotion": "anger"`, `"emotion": "Optimistic"`, 1)
	text = strings.Replace(text, `["cost of living", "no consultation", "rural areas hit hardest"]`, `["cost of living", " ", "cost of living"]`, 1)

	turn, repairs, err := DecodeReaction(text)
	require.NoError(t, err)

	assert.Equal(t, model.EmotionHope, turn.Emotion)
	assert.Equal(t, []string{"cost of living", model.UnstatedReason, model.UnstatedReason}, turn.KeyReasons)
	assert.Equal(t, 62, turn.TrueBelief.SelfAwareness)

	fields := make([]string, len(repairs))
	for i, r := range repairs {
		fields[i] = r.Field
	}
	assert.ElementsMatch(t, []string{"emotion", "key_reasons"}, fields)
}

func TestDecodeReactionDerivesCoherence(t *testing.T) {
	turn, _, err := DecodeReaction(validReaction)
	require.NoError(t, err)

	// inner 28, expressed 36, stance 34
	require.NotNil(t, turn.CoherenceBreakdown)
	assert.Equal(t, model.CoherenceBreakdown{BeliefExpressionGap: 8, BeliefActionGap: 6, ExpressionActionGap: 2}, *turn.CoherenceBreakdown)
	require.NotNil(t, turn.CoherenceScore)
	assert.Equal(t, 95, *turn.CoherenceScore)
}

func TestDecodeReactionKeepsSuppliedCoherence(t *testing.T) {
	text := strings.Replace(validReaction, `"confidence": 71,`, `"confidence": 71, "coherence_score": 120, "coherence_breakdown": {"belief_expression_gap": 1, "belief_action_gap": 2, "expression_action_gap": 3},`, 1)

	turn, _, err := DecodeReaction(text)
	require.NoError(t, err)
	assert.Equal(t, 100, *turn.CoherenceScore)
	assert.Equal(t, 3, turn.CoherenceBreakdown.ExpressionActionGap)
}

func TestDecodeReactionAcceptsEnumSpellingVariants(t *testing.T) {
	text := strings.Replace(validReaction, `"context": "public"`, `"context": "Social Media"`, 1)
	text = strings.Replace(text, `"action_consistency": "consistent"`, `"action_consistency": "moderate-gap"`, 1)

	turn, _, err := DecodeReaction(text)
	require.NoError(t, err)
	assert.Equal(t, model.ContextSocialMedia, turn.PublicExpression.Context)
	assert.Equal(t, model.ConsistencyModerateGap, turn.BehavioralAction.ActionConsistency)
}

func TestDecodeReactionParseErrorHasBoundedPreview(t *testing.T) {
	garbage := "I'm sorry, I can't answer that. " + strings.Repeat("blah ", 200)

	_, _, err := DecodeReaction(garbage)

	var perr *ParseError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.LessOrEqual(t, utf8.RuneCountInString(perr.Preview), PreviewLen+3)
	assert.True(t, strings.HasPrefix(perr.Preview, "I'm sorry"))
}

func TestDecodeReactionTruncatedJSON(t *testing.T) {
	_, _, err := DecodeReaction(validReaction[:len(validReaction)/2])
	var perr *ParseError
	assert.True(t, errors.As(err, &perr), "got %v", err)
}

func TestNormalizeEmotionIsTotal(t *testing.T) {
	inputs := []string{"definitely-not-an-emotion", "", "  ANGER  "}
	for k := range EmotionSynonyms() {
		inputs = append(inputs, k)
	}
	for _, e := range model.Emotions {
		inputs = append(inputs, string(e))
	}

	for _, in := range inputs {
		got := NormalizeEmotion(in)
		assert.Contains(t, model.Emotions, got, "input %q", in)
	}
	assert.Equal(t, model.EmotionIndifference, NormalizeEmotion("definitely-not-an-emotion"))
	assert.Equal(t, model.EmotionCynicism, NormalizeEmotion("skeptical"))
	assert.Equal(t, model.EmotionHope, NormalizeEmotion("optimistic"))
	assert.Equal(t, model.EmotionAnger, NormalizeEmotion("  ANGER  "))
}

func TestRepairResponse(t *testing.T) {
	t.Run("within target is untouched", func(t *testing.T) {
		s := strings.Repeat("a", 100)
		assert.Equal(t, s, RepairResponse(s, nil))
	})

	t.Run("short text gets reasons", func(t *testing.T) {
		got := RepairResponse("No way", []string{"too expensive", "unfair", model.UnstatedReason})
		assert.Equal(t, "No way. Mainly: too expensive; unfair.", got)
	})

	t.Run("long text cut at sentence end", func(t *testing.T) {
		first := strings.Repeat("word ", 20) + "end." // 104 runes
		got := RepairResponse(first+" "+strings.Repeat("more ", 30), nil)
		assert.Equal(t, first, got)
	})

	t.Run("long text without sentence end cut at space", func(t *testing.T) {
		got := RepairResponse(strings.Repeat("word ", 60), nil)
		assert.True(t, strings.HasSuffix(got, "word..."), got)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), ResponseMaxLen)
	})

	t.Run("long unbroken text hard cut", func(t *testing.T) {
		got := RepairResponse(strings.Repeat("x", 300), nil)
		assert.Equal(t, ResponseMaxLen, utf8.RuneCountInString(got))
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("multibyte text is measured in runes", func(t *testing.T) {
		s := strings.Repeat("é", 150)
		assert.Equal(t, s, RepairResponse(s, nil))

		long := strings.Repeat("日本語の文章です。", 20)
		got := RepairResponse(long, nil)
		assert.True(t, utf8.ValidString(got))
		assert.LessOrEqual(t, utf8.RuneCountInString(got), ResponseMaxLen)
		assert.True(t, strings.HasSuffix(got, "。"))
	})
}

func TestRepairReasons(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, RepairReasons([]string{"a", "b", "c", "d"}))
	assert.Equal(t, []string{"a", "B", model.UnstatedReason}, RepairReasons([]string{" a ", "B", "b", ""}))
	assert.Len(t, RepairReasons(nil), 3)
}
