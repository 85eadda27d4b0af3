package stats

import (
	"math"
	"sort"

	"popsim/internal/model"
)

// Poll computes overall, per-cluster and per-demographic statistics for a
// poll. Groups follow the order of the clusters and demographics arguments;
// buckets only seen in responses come after, labelled by their id.
func Poll(poll model.Poll, responses []model.PollResponse, clusters []model.Cluster, demographics []model.Demographic) model.PollStats {
	out := model.PollStats{
		Overall:      Breakdown(poll, responses),
		Clusters:     []model.GroupPollStats{},
		Demographics: []model.GroupPollStats{},
	}

	clusterLabels := make([]labelled, 0, len(clusters))
	for _, c := range clusters {
		clusterLabels = append(clusterLabels, labelled{id: c.ID, label: c.Name})
	}
	out.Clusters = groupBy(poll, responses, "cluster", clusterLabels, func(r *model.PollResponse) (string, string) {
		return r.ClusterID, r.ClusterName
	})

	for _, kind := range model.DemographicKinds {
		var labels []labelled
		for _, d := range demographics {
			if d.Kind == kind {
				labels = append(labels, labelled{id: d.ID, label: d.Label})
			}
		}
		kind := kind
		out.Demographics = append(out.Demographics, groupBy(poll, responses, string(kind), labels, func(r *model.PollResponse) (string, string) {
			id := r.BucketID(kind)
			return id, id
		})...)
	}
	return out
}

type labelled struct {
	id    string
	label string
}

func groupBy(poll model.Poll, responses []model.PollResponse, kind string, known []labelled, key func(*model.PollResponse) (string, string)) []model.GroupPollStats {
	groups := make(map[string][]model.PollResponse)
	labels := make(map[string]string)
	var order []string
	for _, l := range known {
		if _, ok := labels[l.id]; !ok {
			order = append(order, l.id)
			labels[l.id] = l.label
		}
	}
	for i := range responses {
		id, label := key(&responses[i])
		if id == "" {
			continue
		}
		if _, ok := labels[id]; !ok {
			order = append(order, id)
			labels[id] = label
		}
		groups[id] = append(groups[id], responses[i])
	}

	out := make([]model.GroupPollStats, 0, len(order))
	for _, id := range order {
		rs := groups[id]
		if len(rs) == 0 {
			continue
		}
		out = append(out, model.GroupPollStats{
			Kind:          kind,
			GroupID:       id,
			Label:         labels[id],
			PollBreakdown: Breakdown(poll, rs),
		})
	}
	return out
}

// Breakdown computes the mode-specific option statistics for a set of responses
func Breakdown(poll model.Poll, responses []model.PollResponse) model.PollBreakdown {
	b := model.PollBreakdown{Responses: len(responses)}
	switch poll.Mode {
	case model.PollRanking:
		b.Options = rankingStats(poll.Options, responses)
	case model.PollScoring:
		b.Options = scoringStats(poll.Options, responses)
	default:
		b.Options = choiceStats(poll.Options, responses)
	}
	return b
}

func choiceStats(options []string, responses []model.PollResponse) []model.OptionStats {
	out := make([]model.OptionStats, len(options))
	idx := make(map[string]int, len(options))
	for i, o := range options {
		out[i] = model.OptionStats{Option: o}
		idx[o] = i
	}
	for _, r := range responses {
		if i, ok := idx[r.Choice]; ok {
			out[i].Count++
		}
	}
	return out
}

// rankingStats reports average 1-based rank and first-choice count, sorted by
// ascending average rank. Options nobody ranked sort last.
func rankingStats(options []string, responses []model.PollResponse) []model.OptionStats {
	out := make([]model.OptionStats, len(options))
	idx := make(map[string]int, len(options))
	rankSum := make([]int, len(options))
	rankN := make([]int, len(options))
	for i, o := range options {
		out[i] = model.OptionStats{Option: o}
		idx[o] = i
	}
	for _, r := range responses {
		for pos, opt := range r.Ranking {
			i, ok := idx[opt]
			if !ok {
				continue
			}
			rankSum[i] += pos + 1
			rankN[i]++
			if pos == 0 {
				out[i].FirstChoiceCount++
			}
		}
	}
	for i := range out {
		if rankN[i] > 0 {
			out[i].AverageRank = float64(rankSum[i]) / float64(rankN[i])
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		ra, rb := out[a].AverageRank, out[b].AverageRank
		if ra == 0 {
			return false
		}
		if rb == 0 {
			return true
		}
		return ra < rb
	})
	return out
}

func scoringStats(options []string, responses []model.PollResponse) []model.OptionStats {
	out := make([]model.OptionStats, len(options))
	for i, o := range options {
		st := model.OptionStats{Option: o, Histogram: make([]int, model.HistogramBuckets)}
		sum, n := 0, 0
		st.Min = math.MaxInt
		for _, r := range responses {
			score, ok := r.Scores[o]
			if !ok {
				continue
			}
			sum += score
			n++
			if score < st.Min {
				st.Min = score
			}
			if score > st.Max {
				st.Max = score
			}
			st.Histogram[model.HistogramBucket(score)]++
		}
		if n > 0 {
			st.Mean = float64(sum) / float64(n)
		} else {
			st.Min = 0
		}
		out[i] = st
	}
	return out
}
