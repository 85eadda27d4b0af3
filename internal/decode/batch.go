package decode

import (
	"fmt"

	"popsim/internal/model"
)

// BatchReaction is one element of a batched reaction response. Err is set
// when that element alone failed validation.
type BatchReaction struct {
	Index   int
	AgentID string
	Turn    *model.ReactionTurn
	Repairs []Repair
	Err     error
}

// DecodeReactionBatch parses an array of reactions keyed by agent_id. Each
// element is validated independently so one bad element does not discard the
// rest; only unparseable text fails the whole call.
func DecodeReactionBatch(text string) ([]BatchReaction, error) {
	arr, err := ParseArray(text)
	if err != nil {
		return nil, err
	}
	out := make([]BatchReaction, 0, len(arr))
	for i, item := range arr {
		br := BatchReaction{Index: i}
		m, ok := item.(map[string]interface{})
		if !ok {
			br.Err = &FieldError{Field: fmt.Sprintf("[%d]", i), Reason: "must be an object, got " + typeName(item)}
			out = append(out, br)
			continue
		}
		br.AgentID = optionalString(m["agent_id"])
		br.Turn, br.Repairs, br.Err = ReactionFromMap(m)
		out = append(out, br)
	}
	return out, nil
}
