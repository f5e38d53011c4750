package crd

import "time"

// Snapshot is the immutable result of a finalized run. Callers must not
// modify the slices returned by Records.
type Snapshot struct {
	RunID      string
	Hits       [NumCategories][]HitRecord
	Merged     [NumCategories]int // records offered to Merge
	Dropped    [NumCategories]int // records discarded by the retention policy
	Energy     Real               // total deposit, eV
	Events     int64
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s *Snapshot) Records(c HitCategory) []HitRecord { return s.Hits[c] }

func (s *Snapshot) Len(c HitCategory) int { return len(s.Hits[c]) }

// Total is the number of retained records over all categories.
func (s *Snapshot) Total() int {
	n := 0
	for c := range s.Hits {
		n += len(s.Hits[c])
	}
	return n
}

// Rows is the number of data rows the artifact has: one per record plus
// one sentinel per empty category.
func (s *Snapshot) Rows() int {
	n := 0
	for c := range s.Hits {
		if l := len(s.Hits[c]); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
