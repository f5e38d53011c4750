package crd

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	aggIdle int32 = iota
	aggRunning
	aggFinalized
)

// RunAggregate is the run-scoped reducer shared by all workers. Each hit
// category has its own lock; the energy total is a separate lock-free sum.
// Reset and Finalize must be separated from worker writes by a barrier.
type RunAggregate struct {
	locks   categoryLocks
	hits    [NumCategories][]HitRecord
	merged  [NumCategories]int
	dropped [NumCategories]int
	policy  [NumCategories]RetentionPolicy
	energy  energyAccumulator
	state   atomic.Int32

	metrics *Metrics
	log     zerolog.Logger
}

type AggregateOption func(*RunAggregate)

// WithRetention sets the retention policy of one category.
func WithRetention(c HitCategory, p RetentionPolicy) AggregateOption {
	return func(a *RunAggregate) {
		if c.Valid() {
			a.policy[c] = p
		}
	}
}

func WithAggregateMetrics(m *Metrics) AggregateOption {
	return func(a *RunAggregate) { a.metrics = m }
}

func WithAggregateLogger(l zerolog.Logger) AggregateOption {
	return func(a *RunAggregate) { a.log = l }
}

// NewRunAggregate returns an idle aggregate; call Reset to start a run.
func NewRunAggregate(opts ...AggregateOption) *RunAggregate {
	a := &RunAggregate{log: zerolog.Nop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Policy returns the retention policy of c.
func (a *RunAggregate) Policy(c HitCategory) RetentionPolicy { return a.policy[c] }

// Running reports whether the aggregate accepts merges.
func (a *RunAggregate) Running() bool { return a.state.Load() == aggRunning }

// Reset empties every category and zeroes the energy total. The previous
// run's data is released, not reused, so earlier snapshots stay intact.
func (a *RunAggregate) Reset() {
	a.locks.lockAll()
	for c := range a.hits {
		a.hits[c] = nil
		a.merged[c] = 0
		a.dropped[c] = 0
	}
	a.energy.reset()
	a.state.Store(aggRunning)
	a.locks.unlockAll()
}

// Merge appends records to category c under that category's lock. The
// records of one call stay contiguous and in order; records is not retained.
func (a *RunAggregate) Merge(c HitCategory, records []HitRecord) {
	if !c.Valid() {
		a.violation("invalid_category", "merge into category %d", c)
		return
	}
	if len(records) == 0 {
		return
	}
	if !a.Running() {
		a.violation("merge_outside_run", "merge of %d %s records outside a run", len(records), c)
	}
	a.locks.lock(c)
	var dropped int
	a.hits[c], dropped = a.policy[c].admit(a.hits[c], records, a.merged[c])
	a.merged[c] += len(records)
	a.dropped[c] += dropped
	total := len(a.hits[c])
	a.locks.unlock(c)

	a.metrics.observeMerge(c, len(records), dropped)
	a.log.Debug().Str("category", c.String()).Int("added", len(records)-dropped).
		Int("dropped", dropped).Int("total", total).Msg("merged hits")
}

// AddEnergy adds delta to the run total. Order does not matter.
func (a *RunAggregate) AddEnergy(delta Real) {
	if !a.Running() {
		a.violation("energy_outside_run", "energy deposit %g outside a run", delta)
	}
	if delta < 0 {
		a.violation("negative_energy", "negative energy deposit %g", delta)
	}
	a.energy.add(delta)
}

// Energy returns the current energy total.
func (a *RunAggregate) Energy() Real { return a.energy.load() }

// Len returns the number of retained records of c.
func (a *RunAggregate) Len(c HitCategory) int {
	a.locks.lock(c)
	defer a.locks.unlock(c)
	return len(a.hits[c])
}

// Finalize returns a deep copy of the run's data and closes the run.
// Every worker must have finished merging; otherwise totals are undefined.
func (a *RunAggregate) Finalize() Snapshot {
	if !a.Running() {
		a.violation("finalize_outside_run", "finalize without a running run")
	}
	var snap Snapshot
	a.locks.lockAll()
	for c := range a.hits {
		snap.Hits[c] = append([]HitRecord(nil), a.hits[c]...)
		snap.Merged[c] = a.merged[c]
		snap.Dropped[c] = a.dropped[c]
	}
	a.state.Store(aggFinalized)
	a.locks.unlockAll()
	snap.Energy = a.energy.load()

	for c := range snap.Dropped {
		if snap.Dropped[c] > 0 {
			a.log.Warn().Str("category", HitCategory(c).String()).Str("policy", a.policy[c].String()).
				Int("offered", snap.Merged[c]).Int("dropped", snap.Dropped[c]).
				Msg("retention policy discarded hits")
		}
	}
	a.metrics.finalized(snap.Energy)
	return snap
}

func (a *RunAggregate) violation(kind, format string, args ...any) {
	contractViolation(a.metrics, a.log, kind, format, args...)
}

// contractViolation panics in debug builds. Release builds count it and
// carry on best-effort.
func contractViolation(m *Metrics, log zerolog.Logger, kind, format string, args ...any) {
	m.violation(kind)
	msg := fmt.Sprintf(format, args...)
	if assertions {
		panic("crd: contract violation: " + msg)
	}
	log.Debug().Str("kind", kind).Msg(msg)
}
