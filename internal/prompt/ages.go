package prompt

import (
	"fmt"
	"math/rand"
)

// AgeBand is an inclusive age range
type AgeBand struct {
	Min int
	Max int
}

func (b AgeBand) String() string {
	return fmt.Sprintf("%d-%d", b.Min, b.Max)
}

// AgeBands is the rotation used to spread target ages across a batch
var AgeBands = []AgeBand{
	{18, 24},
	{25, 34},
	{35, 44},
	{45, 54},
	{55, 64},
	{65, 80},
}

// TargetAges assigns n target ages, one per batch slot. Slot i draws uniformly
// from band (offset+i) mod len(AgeBands), so consecutive batches keep rotating
// when offset advances by the batch size.
func TargetAges(rng *rand.Rand, offset, n int) []int {
	ages := make([]int, n)
	for i := range ages {
		band := AgeBands[(offset+i)%len(AgeBands)]
		ages[i] = band.Min + rng.Intn(band.Max-band.Min+1)
	}
	return ages
}
