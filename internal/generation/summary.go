package generation

import (
	"context"
	"errors"
	"strings"

	"popsim/internal/decode"
	"popsim/internal/llm"
	"popsim/internal/model"
	"popsim/internal/prompt"
)

// Summarize asks for an executive summary of a simulation's statistics. The
// reply is plain text; a wrapping markdown fence is removed.
func Summarize(ctx context.Context, gw llm.Gateway, title, scenario string, stats *model.SimulationStats, temperature *float64) (string, error) {
	if stats == nil {
		return "", errors.New("no statistics to summarize")
	}
	res := gw.Call(ctx, llm.Request{
		Prompt:       prompt.SummaryPrompt(title, scenario, stats),
		SystemPrompt: prompt.SummarySystemPrompt,
		Temperature:  temperature,
	})
	if !res.OK() {
		return "", res.Err
	}
	text := strings.TrimSpace(res.Content)
	if strings.HasPrefix(text, "```") {
		text = decode.StripFences(text)
	}
	if text == "" {
		return "", errors.New("empty summary")
	}
	return text, nil
}
