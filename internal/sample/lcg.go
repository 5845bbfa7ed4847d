package sample

// LCG is a linear congruential generator with the Numerical Recipes
// constants. The sampler hand-rolls its PRNG because identical seed plus
// identical input must reproduce the identical sample across builds and Go
// releases; math/rand makes no such cross-version stream guarantee.
type LCG struct {
	state uint64
}

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
	lcgModulus    = 1 << 32
)

// NewLCG creates a generator from a caller-supplied seed.
func NewLCG(seed int64) *LCG {
	return &LCG{state: uint64(seed) % lcgModulus}
}

// Next returns the next uniform value in [0, 1).
func (g *LCG) Next() float64 {
	g.state = (g.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(g.state) / float64(lcgModulus)
}
