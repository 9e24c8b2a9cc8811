package loadgen

import (
	"math"
	"math/rand/v2"
)

// Zipf returns n keys in [0, keySpace) following a Zipf distribution with
// skew theta. The same seed always yields the same sequence.
func Zipf(n, keySpace int, theta float64, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]int, n)
	if keySpace <= 1 {
		return out
	}

	spread := keySpace + 1
	zeta2 := zeta(2, theta)
	zetaN := zeta(spread, theta)
	alpha := 1.0 / (1.0 - theta)
	eta := (1 - math.Pow(2.0/float64(spread), 1.0-theta)) / (1.0 - zeta2/zetaN)
	half := 1.0 + math.Pow(0.5, theta)

	for i := range out {
		u := rng.Float64()
		uz := u * zetaN
		k := 0
		switch {
		case uz < 1.0:
		case uz < half:
			k = 1
		default:
			k = int(float64(spread) * math.Pow(eta*u-eta+1.0, alpha))
		}
		out[i] = min(k, keySpace-1)
	}
	return out
}

func zeta(n int, theta float64) float64 {
	sum := 0.0
	for i := 1; i <= n; i++ {
		sum += 1.0 / math.Pow(float64(i), theta)
	}
	return sum
}
