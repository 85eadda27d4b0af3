package prompt

import (
	"fmt"
	"strings"

	"popsim/internal/model"
)

// SummarySystemPrompt frames executive summary calls
const SummarySystemPrompt = "You are a senior public opinion analyst writing for decision makers."

// summaryTopReasons caps the arguments listed in the digest
const summaryTopReasons = 8

// SummaryPrompt asks for an executive summary of a simulation's statistics
func SummaryPrompt(title, scenario string, stats *model.SimulationStats) string {
	g := stats.Global
	var b strings.Builder

	fmt.Fprintf(&b, "PANEL: %d simulated respondents\n", g.Count)
	fmt.Fprintf(&b, "Mean stance: %.1f/100 (first turn %.1f), mean confidence %.1f, mean coherence %.1f\n",
		g.MeanStanceLast, g.MeanStanceFirst, g.MeanConfidence, g.MeanCoherence)
	fmt.Fprintf(&b, "Distribution: very negative %d, negative %d, neutral %d, positive %d\n",
		g.Distribution.VeryNegative, g.Distribution.Negative, g.Distribution.Neutral, g.Distribution.Positive)

	if len(g.Emotions) > 0 {
		parts := make([]string, 0, len(g.Emotions))
		for _, e := range model.Emotions {
			if n := g.Emotions[e]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", e, n))
			}
		}
		fmt.Fprintf(&b, "Emotions: %s\n", strings.Join(parts, ", "))
	}

	b.WriteString("\nTOP ARGUMENTS:\n")
	for i, r := range g.TopReasons {
		if i == summaryTopReasons {
			break
		}
		fmt.Fprintf(&b, "- %s (%d)\n", r.Reason, r.Count)
	}

	b.WriteString("\nBY SEGMENT:\n")
	for _, c := range stats.Clusters {
		fmt.Fprintf(&b, "- %s: %d respondents, mean stance %.1f, confidence %.1f, distribution %d/%d/%d/%d\n",
			c.ClusterName, c.Count, c.MeanStanceLast, c.MeanConfidence,
			c.Distribution.VeryNegative, c.Distribution.Negative, c.Distribution.Neutral, c.Distribution.Positive)
	}

	return fmt.Sprintf(`Write an executive summary of this simulated opinion study.

STUDY: %s

SCENARIO:
%s

RESULTS:
%s
Cover: the overall verdict, the main fault lines between segments, the strongest arguments on each side, and one risk to watch.
Write 3 short paragraphs of plain prose. No headings, no bullet points, no markdown.`,
		title, scenario, b.String())
}
