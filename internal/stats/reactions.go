// Package stats aggregates reaction results and poll responses into
// population-level statistics.
package stats

import (
	"sort"

	"popsim/internal/model"

	mstats "github.com/montanaflynn/stats"
)

// Bucket places a stance score in the four-way distribution
func Bucket(d *model.StanceDistribution, score int) {
	switch {
	case score < 25:
		d.VeryNegative++
	case score < 50:
		d.Negative++
	case score < 75:
		d.Neutral++
	default:
		d.Positive++
	}
}

// Reactions computes global and per-cluster statistics. Clusters are reported
// in the order of the clusters argument, then any cluster only seen in results.
func Reactions(results []model.ReactionResult, clusters []model.Cluster) *model.SimulationStats {
	out := &model.SimulationStats{
		Global:   aggregate(results),
		Clusters: []model.ClusterReactionStats{},
	}

	byCluster := make(map[string][]model.ReactionResult)
	var order []string
	names := make(map[string]string)
	for _, c := range clusters {
		if _, ok := names[c.ID]; !ok {
			order = append(order, c.ID)
			names[c.ID] = c.Name
		}
	}
	for _, r := range results {
		if _, ok := names[r.ClusterID]; !ok {
			order = append(order, r.ClusterID)
			names[r.ClusterID] = r.ClusterName
		}
		byCluster[r.ClusterID] = append(byCluster[r.ClusterID], r)
	}

	for _, id := range order {
		rs := byCluster[id]
		if len(rs) == 0 {
			continue
		}
		out.Clusters = append(out.Clusters, model.ClusterReactionStats{
			ClusterID:     id,
			ClusterName:   names[id],
			ReactionStats: aggregate(rs),
		})
	}
	return out
}

func aggregate(results []model.ReactionResult) model.ReactionStats {
	s := model.ReactionStats{
		Emotions:   make(map[model.Emotion]int),
		TopReasons: []model.ReasonCount{},
	}

	var first, last, conf, coh mstats.Float64Data
	reasonIdx := make(map[string]int)

	for i := range results {
		ft, lt := results[i].FirstTurn(), results[i].LastTurn()
		if ft == nil {
			continue
		}
		s.Count++
		first = append(first, float64(ft.StanceScore))
		last = append(last, float64(lt.StanceScore))
		conf = append(conf, float64(lt.Confidence))
		if lt.CoherenceScore != nil {
			coh = append(coh, float64(*lt.CoherenceScore))
		}
		Bucket(&s.Distribution, lt.StanceScore)
		s.Emotions[lt.Emotion]++

		for _, reason := range lt.KeyReasons {
			if reason == model.UnstatedReason || reason == "" {
				continue
			}
			if idx, ok := reasonIdx[reason]; ok {
				s.TopReasons[idx].Count++
				continue
			}
			reasonIdx[reason] = len(s.TopReasons)
			s.TopReasons = append(s.TopReasons, model.ReasonCount{Reason: reason, Count: 1})
		}
	}

	// Every helper only fails on empty input, which leaves the zero value
	s.MeanStanceFirst, _ = first.Mean()
	s.MeanStanceLast, _ = last.Mean()
	s.MedianStance, _ = last.Median()
	s.StanceStdDev, _ = last.StandardDeviationPopulation()
	s.MeanConfidence, _ = conf.Mean()
	s.MeanCoherence, _ = coh.Mean()

	// stable sort keeps first-seen order among equal counts
	sort.SliceStable(s.TopReasons, func(a, b int) bool {
		return s.TopReasons[a].Count > s.TopReasons[b].Count
	})
	return s
}
