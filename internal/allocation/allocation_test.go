package allocation

import (
	"math/rand"
	"testing"

	"popsim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func TestAllocateSumsExactly(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 500; trial++ {
		k := 1 + rng.Intn(8)
		shares := make([]Share, k)
		for i := range shares {
			shares[i] = Share{ClusterID: string(rune('a' + i)), Weight: rng.Float64() * 100}
		}
		n := k + rng.Intn(200)

		for _, mode := range []model.AllocationMode{model.AllocationEqual, model.AllocationWeighted} {
			got, err := Allocate(shares, n, mode)
			require.NoError(t, err)
			assert.Equal(t, n, sum(got), "trial %d mode %s shares %v n %d", trial, mode, shares, n)
			for id, c := range got {
				assert.GreaterOrEqual(t, c, 0, "cluster %s", id)
			}
		}
	}
}

func TestAllocateWeighted502030(t *testing.T) {
	shares := []Share{{"c1", 50}, {"c2", 30}, {"c3", 20}}
	got, err := Allocate(shares, 10, model.AllocationWeighted)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"c1": 5, "c2": 3, "c3": 2}, got)
}

func TestAllocateWeightedLastAbsorbsRemainder(t *testing.T) {
	shares := []Share{{"a", 1}, {"b", 1}, {"c", 1}}
	got, err := Allocate(shares, 10, model.AllocationWeighted)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 3, "b": 3, "c": 4}, got)
}

func TestAllocateEqualRemainderGoesFirst(t *testing.T) {
	shares := []Share{{"a", 90}, {"b", 5}, {"c", 5}}
	got, err := Allocate(shares, 8, model.AllocationEqual)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 3, "b": 3, "c": 2}, got)
}

func TestAllocateZeroWeightsDegradeToEqual(t *testing.T) {
	shares := []Share{{"a", 0}, {"b", 0}, {"c", 0}, {"d", 0}}
	for n := 4; n < 30; n++ {
		weighted, err := Allocate(shares, n, model.AllocationWeighted)
		require.NoError(t, err)
		equal, err := Allocate(shares, n, model.AllocationEqual)
		require.NoError(t, err)
		assert.Equal(t, equal, weighted, "n=%d", n)
	}
}

func TestAllocateErrors(t *testing.T) {
	_, err := Allocate(nil, 5, model.AllocationEqual)
	assert.ErrorIs(t, err, ErrNoClusters)

	_, err = Allocate([]Share{{"a", 1}}, 5, "random")
	assert.Error(t, err)

	_, err = Allocate([]Share{{"a", 1}}, -1, model.AllocationEqual)
	assert.Error(t, err)
}

func TestSelectRespectsAvailability(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	items := []int{1, 2, 3, 4, 5, 6, 7}

	for count := 0; count <= 10; count++ {
		got := Select(rng, items, count)
		want := count
		if want > len(items) {
			want = len(items)
		}
		require.Len(t, got, want, "count=%d", count)

		seen := map[int]bool{}
		for _, v := range got {
			assert.False(t, seen[v], "duplicate %d", v)
			assert.Contains(t, items, v)
			seen[v] = true
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, items, "input is not mutated")
}

func TestSelectIsUniformEnough(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	items := []string{"a", "b", "c", "d"}
	hits := map[string]int{}
	for i := 0; i < 4000; i++ {
		for _, v := range Select(rng, items, 1) {
			hits[v]++
		}
	}
	for _, v := range items {
		assert.InDelta(t, 1000, hits[v], 150, "item %s", v)
	}
}

func TestNormalizeWeights(t *testing.T) {
	cases := []struct {
		in   []float64
		want []int
	}{
		{[]float64{50, 30, 20}, []int{50, 30, 20}},
		{[]float64{1, 1, 1}, []int{34, 33, 33}},
		{[]float64{0, 0, 0}, []int{34, 33, 33}},
		{[]float64{10, 10}, []int{50, 50}},
		{[]float64{60, 30, 30}, []int{50, 25, 25}},
		{[]float64{2, 1}, []int{67, 33}},
	}
	for _, tc := range cases {
		got := NormalizeWeights(tc.in)
		assert.Equal(t, tc.want, got, "input %v", tc.in)

		total := 0
		for _, v := range got {
			total += v
		}
		assert.Equal(t, 100, total)
	}
	assert.Empty(t, NormalizeWeights(nil))
}
