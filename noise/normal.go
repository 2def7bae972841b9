package noise

import (
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Normal draws samples from the standard normal distribution.
// Normal is not safe for concurrent use.
type Normal struct {
	dist distuv.Normal
}

// NewNormal creates new standard normal sampler seeded with seed.
// If seed is 0 the sampler is seeded from the current time.
func NewNormal(seed uint64) *Normal {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Normal{
		dist: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}
}

// Sample returns a single standard normal draw.
func (n *Normal) Sample() float64 {
	return n.dist.Rand()
}
