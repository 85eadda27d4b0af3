package decode

import (
	"fmt"
	"strings"

	"popsim/internal/model"
)

// PollAnswer is one decoded poll answer. Err is set when the element could not
// be repaired into a valid answer for the poll's mode.
type PollAnswer struct {
	Index     int
	AgentID   string
	Choice    string
	Ranking   []string
	Scores    map[string]int
	Reasoning string
	Repairs   []Repair
	Err       error
}

// DecodePollAnswers parses an array of poll answers and validates each
// against the poll. Lossless repairs are applied: case-insensitive option
// matching, score clamping, and completing a partial ranking with the missing
// options in declared order.
func DecodePollAnswers(text string, poll model.Poll) ([]PollAnswer, error) {
	arr, err := ParseArray(text)
	if err != nil {
		return nil, err
	}
	out := make([]PollAnswer, 0, len(arr))
	for i, item := range arr {
		prefix := fmt.Sprintf("[%d]", i)
		m, ok := item.(map[string]interface{})
		if !ok {
			out = append(out, PollAnswer{Index: i, Err: &FieldError{Field: prefix, Reason: "must be an object, got " + typeName(item)}})
			continue
		}
		a := PollAnswerFromMap(m, poll, prefix)
		a.Index = i
		out = append(out, a)
	}
	return out, nil
}

// PollAnswerFromMap validates a single answer object
func PollAnswerFromMap(m map[string]interface{}, poll model.Poll, prefix string) PollAnswer {
	a := PollAnswer{
		AgentID:   optionalString(m["agent_id"]),
		Reasoning: optionalString(m["reasoning"]),
	}
	switch poll.Mode {
	case model.PollRanking:
		a.Ranking, a.Repairs, a.Err = decodeRanking(m, poll.Options, prefix)
	case model.PollScoring:
		a.Scores, a.Repairs, a.Err = decodeScores(m, poll.Options, prefix)
	default:
		a.Choice, a.Repairs, a.Err = decodeChoice(m, poll.Options, prefix)
	}
	return a
}

// matchOption returns the declared option equal to s ignoring case and
// surrounding space
func matchOption(s string, options []string) (string, bool) {
	t := strings.TrimSpace(s)
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), t) {
			return o, true
		}
	}
	return "", false
}

func decodeChoice(m map[string]interface{}, options []string, prefix string) (string, []Repair, error) {
	raw, err := requireString(m, prefix, "choice")
	if err != nil {
		return "", nil, err
	}
	opt, ok := matchOption(raw, options)
	if !ok {
		return "", nil, &FieldError{Field: fieldPath(prefix, "choice"), Reason: fmt.Sprintf("unknown option %q", raw)}
	}
	var repairs []Repair
	if opt != raw {
		repairs = append(repairs, Repair{Field: fieldPath(prefix, "choice"), From: raw, To: opt})
	}
	return opt, repairs, nil
}

func decodeRanking(m map[string]interface{}, options []string, prefix string) ([]string, []Repair, error) {
	raw, err := requireStringArray(m, prefix, "ranking")
	if err != nil {
		return nil, nil, err
	}
	ranking := make([]string, 0, len(options))
	used := make(map[string]bool, len(options))
	for i, r := range raw {
		opt, ok := matchOption(r, options)
		if !ok {
			return nil, nil, &FieldError{Field: fmt.Sprintf("%s[%d]", fieldPath(prefix, "ranking"), i), Reason: fmt.Sprintf("unknown option %q", r)}
		}
		if used[opt] {
			return nil, nil, &FieldError{Field: fmt.Sprintf("%s[%d]", fieldPath(prefix, "ranking"), i), Reason: fmt.Sprintf("option %q ranked twice", opt)}
		}
		used[opt] = true
		ranking = append(ranking, opt)
	}
	if len(ranking) == 0 {
		return nil, nil, &FieldError{Field: fieldPath(prefix, "ranking"), Reason: "must not be empty"}
	}

	var repairs []Repair
	if len(ranking) < len(options) {
		before := strings.Join(ranking, " > ")
		for _, o := range options {
			if !used[o] {
				ranking = append(ranking, o)
			}
		}
		repairs = append(repairs, Repair{Field: fieldPath(prefix, "ranking"), From: before, To: strings.Join(ranking, " > ")})
	}
	return ranking, repairs, nil
}

func decodeScores(m map[string]interface{}, options []string, prefix string) (map[string]int, []Repair, error) {
	obj, err := requireObject(m, prefix, "scores")
	if err != nil {
		return nil, nil, err
	}
	base := fieldPath(prefix, "scores")
	scores := make(map[string]int, len(options))
	var repairs []Repair
	for k, v := range obj {
		opt, ok := matchOption(k, options)
		if !ok {
			return nil, nil, &FieldError{Field: fieldPath(base, k), Reason: "unknown option"}
		}
		n, ok := asNumber(v)
		if !ok {
			return nil, nil, &FieldError{Field: fieldPath(base, k), Reason: "must be a number, got " + typeName(v)}
		}
		if c := model.ClampInt(n, 0, 100); c != n {
			repairs = append(repairs, Repair{Field: fieldPath(base, opt), From: fmt.Sprint(n), To: fmt.Sprint(c)})
			n = c
		}
		scores[opt] = n
	}
	for _, o := range options {
		if _, ok := scores[o]; !ok {
			return nil, nil, &FieldError{Field: fieldPath(base, o), Reason: "is missing"}
		}
	}
	return scores, repairs, nil
}
