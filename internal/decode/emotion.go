package decode

import (
	"strings"

	"popsim/internal/model"
)

// emotionSynonyms maps common model spellings onto the closed vocabulary
var emotionSynonyms = map[string]model.Emotion{
	"optimistic":   model.EmotionHope,
	"optimism":     model.EmotionHope,
	"hopeful":      model.EmotionHope,
	"skeptical":    model.EmotionCynicism,
	"sceptical":    model.EmotionCynicism,
	"skepticism":   model.EmotionCynicism,
	"cynical":      model.EmotionCynicism,
	"angry":        model.EmotionAnger,
	"furious":      model.EmotionAnger,
	"frustrated":   model.EmotionAnger,
	"frustration":  model.EmotionAnger,
	"outraged":     model.EmotionAnger,
	"outrage":      model.EmotionAnger,
	"afraid":       model.EmotionFear,
	"scared":       model.EmotionFear,
	"anxious":      model.EmotionFear,
	"anxiety":      model.EmotionFear,
	"worried":      model.EmotionFear,
	"worry":        model.EmotionFear,
	"concerned":    model.EmotionFear,
	"concern":      model.EmotionFear,
	"proud":        model.EmotionPride,
	"sad":          model.EmotionSadness,
	"disappointed": model.EmotionSadness,
	"indifferent":  model.EmotionIndifference,
	"neutral":      model.EmotionIndifference,
	"apathetic":    model.EmotionIndifference,
	"apathy":       model.EmotionIndifference,
	"excited":      model.EmotionEnthusiasm,
	"excitement":   model.EmotionEnthusiasm,
	"enthusiastic": model.EmotionEnthusiasm,
	"joy":          model.EmotionEnthusiasm,
	"happy":        model.EmotionEnthusiasm,
	"distrust":     model.EmotionMistrust,
	"suspicious":   model.EmotionMistrust,
	"suspicion":    model.EmotionMistrust,
	"mistrustful":  model.EmotionMistrust,
	"wary":         model.EmotionMistrust,
}

// EmotionSynonyms returns a copy of the synonym table
func EmotionSynonyms() map[string]model.Emotion {
	out := make(map[string]model.Emotion, len(emotionSynonyms))
	for k, v := range emotionSynonyms {
		out[k] = v
	}
	return out
}

// NormalizeEmotion maps any string onto the canonical vocabulary. Unknown
// values become indifference; the result is always a member of model.Emotions.
func NormalizeEmotion(s string) model.Emotion {
	tok := strings.ToLower(strings.TrimSpace(s))
	for _, e := range model.Emotions {
		if string(e) == tok {
			return e
		}
	}
	if e, ok := emotionSynonyms[tok]; ok {
		return e
	}
	return model.EmotionIndifference
}
