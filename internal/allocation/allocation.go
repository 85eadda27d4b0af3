// Package allocation splits a panel size across clusters and samples the
// agents that make up the panel.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"popsim/internal/model"
)

// ErrNoClusters is returned when there is nothing to allocate across
var ErrNoClusters = errors.New("allocation: no clusters")

// Share is a cluster's identity and population weight
type Share struct {
	ClusterID string
	Weight    float64
}

// SharesOf extracts shares from clusters, in order
func SharesOf(clusters []model.Cluster) []Share {
	shares := make([]Share, len(clusters))
	for i, c := range clusters {
		shares[i] = Share{ClusterID: c.ID, Weight: c.Weight}
	}
	return shares
}

// Allocate distributes n agents across shares. The counts always sum to n.
//
// Equal mode gives n/len to each cluster and one extra to each of the first
// n%len clusters. Weighted mode gives floor(weight/total*n) to every cluster
// but the last, which absorbs the rounding remainder. Weighted mode with a
// zero (or negative) total weight behaves as equal mode.
func Allocate(shares []Share, n int, mode model.AllocationMode) (map[string]int, error) {
	if len(shares) == 0 {
		return nil, ErrNoClusters
	}
	if n < 0 {
		return nil, fmt.Errorf("allocation: negative agent count %d", n)
	}

	switch mode {
	case model.AllocationEqual, "":
		return equal(shares, n), nil
	case model.AllocationWeighted:
		return weighted(shares, n), nil
	}
	return nil, fmt.Errorf("allocation: unknown mode %q", mode)
}

func equal(shares []Share, n int) map[string]int {
	out := make(map[string]int, len(shares))
	base, rem := n/len(shares), n%len(shares)
	for i, s := range shares {
		count := base
		if i < rem {
			count++
		}
		out[s.ClusterID] += count
	}
	return out
}

func weighted(shares []Share, n int) map[string]int {
	total := 0.0
	for _, s := range shares {
		total += math.Max(s.Weight, 0)
	}
	if total <= 0 {
		return equal(shares, n)
	}

	out := make(map[string]int, len(shares))
	assigned := 0
	last := len(shares) - 1
	for _, s := range shares[:last] {
		count := int(math.Floor(math.Max(s.Weight, 0) * float64(n) / total))
		out[s.ClusterID] += count
		assigned += count
	}
	out[shares[last].ClusterID] += n - assigned
	return out
}

// Select samples count distinct items uniformly without replacement. When
// fewer than count are available, all of them are returned.
func Select[T any](rng *rand.Rand, available []T, count int) []T {
	if count <= 0 {
		return []T{}
	}
	pool := append([]T(nil), available...)
	if count >= len(pool) {
		return pool
	}
	// partial Fisher-Yates
	for i := 0; i < count; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}

// NormalizeWeights rescales weights to integers that sum to exactly 100 using
// the largest-remainder method. Ties on the remainder go to the earlier index.
// All-zero (or empty-total) weights become an equal split.
func NormalizeWeights(weights []float64) []int {
	out := make([]int, len(weights))
	if len(weights) == 0 {
		return out
	}

	total := 0.0
	for _, w := range weights {
		total += math.Max(w, 0)
	}
	if total <= 0 {
		base, rem := 100/len(weights), 100%len(weights)
		for i := range out {
			out[i] = base
			if i < rem {
				out[i]++
			}
		}
		return out
	}

	type rest struct {
		idx  int
		frac float64
	}
	rests := make([]rest, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := math.Max(w, 0) * 100 / total
		out[i] = int(math.Floor(exact))
		assigned += out[i]
		rests[i] = rest{idx: i, frac: exact - math.Floor(exact)}
	}
	sort.SliceStable(rests, func(a, b int) bool {
		return rests[a].frac > rests[b].frac
	})
	for k := 0; k < 100-assigned; k++ {
		out[rests[k%len(rests)].idx]++
	}
	return out
}
