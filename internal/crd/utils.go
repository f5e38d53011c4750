package crd

import (
	"math"
)

type Real = float64

func isFinite(x Real) bool { return !math.IsInf(x, 0) && !math.IsNaN(x) }

// splitEvents spreads n events over workers; the first n%workers get one extra.
func splitEvents(n, workers int) []int {
	if workers < 1 {
		workers = 1
	}
	per := make([]int, workers)
	if n <= 0 {
		return per
	}
	base, rem := n/workers, n%workers
	for w := 0; w < workers; w++ {
		per[w] = base
		if w < rem {
			per[w]++
		}
	}
	return per
}

// workerSeed derives an independent RNG seed per worker.
func workerSeed(seed int64, wid int) int64 {
	return seed ^ int64(uint64(wid)*seedMix)
}
