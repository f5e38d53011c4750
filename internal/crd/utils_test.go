package crd

import (
	"math"
	"testing"
)

func TestIsFinite(t *testing.T) {
	if !isFinite(1) || isFinite(math.Inf(1)) || isFinite(math.NaN()) {
		t.Fatal("isFinite failed")
	}
}

func TestSplitEvents(t *testing.T) {
	per := splitEvents(10, 3)
	if len(per) != 3 || per[0] != 4 || per[1] != 3 || per[2] != 3 {
		t.Fatalf("unexpected split: %v", per)
	}
	sum := 0
	for _, n := range splitEvents(1001, 7) {
		sum += n
	}
	if sum != 1001 {
		t.Fatalf("split lost events: %d", sum)
	}
	if per := splitEvents(5, 0); len(per) != 1 || per[0] != 5 {
		t.Fatalf("zero workers should mean one: %v", per)
	}
	if per := splitEvents(0, 4); per[0]+per[1]+per[2]+per[3] != 0 {
		t.Fatalf("no events expected: %v", per)
	}
}

func TestWorkerSeedDistinct(t *testing.T) {
	seen := map[int64]bool{}
	for w := 0; w < 64; w++ {
		s := workerSeed(42, w)
		if seen[s] {
			t.Fatalf("duplicate seed for worker %d", w)
		}
		seen[s] = true
	}
}
