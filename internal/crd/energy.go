package crd

import (
	"math"
	"sync/atomic"
)

// energyAccumulator is a lock-free float64 sum, kept apart from the hit locks.
type energyAccumulator struct {
	bits atomic.Uint64
}

func (a *energyAccumulator) add(delta Real) {
	for {
		old := a.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (a *energyAccumulator) load() Real { return math.Float64frombits(a.bits.Load()) }

func (a *energyAccumulator) reset() { a.bits.Store(0) }
