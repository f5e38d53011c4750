package crd

import (
	"sync"

	"github.com/rs/zerolog"
)

// ObservationKind is what a worker just did.
type ObservationKind uint8

const (
	ObserveEventBegin ObservationKind = iota // event opened
	ObserveHit                               // hit buffered
	ObserveDeposit                           // energy buffered
	ObserveEventEnd                          // event merged and cleared
	ObserveMerge                             // one category handed to the aggregate
)

var observationNames = [...]string{"event_begin", "hit", "deposit", "event_end", "merge"}

func (k ObservationKind) String() string {
	if int(k) < len(observationNames) {
		return observationNames[k]
	}
	return "unknown"
}

// Observation is one worker-side lifecycle point. Category and Count are
// set for hits and merges, Energy for deposits and event ends.
type Observation struct {
	Kind     ObservationKind
	Worker   int
	Event    int64
	Category HitCategory
	Count    int
	Energy   Real
}

// Observer receives observations from workers, possibly concurrently.
type Observer interface {
	Observe(o Observation)
}

type ObserverFunc func(Observation)

func (f ObserverFunc) Observe(o Observation) { f(o) }

// Observers fans out to every element.
type Observers []Observer

func (obs Observers) Observe(o Observation) {
	for _, ob := range obs {
		if ob != nil {
			ob.Observe(o)
		}
	}
}

// LogObserver writes every observation at trace level.
type LogObserver struct {
	Log zerolog.Logger
}

func (l LogObserver) Observe(o Observation) {
	e := l.Log.Trace()
	if !e.Enabled() {
		return
	}
	e = e.Str("kind", o.Kind.String()).Int("worker", o.Worker).Int64("event", o.Event)
	switch o.Kind {
	case ObserveHit, ObserveMerge:
		e = e.Str("category", o.Category.String()).Int("count", o.Count)
	case ObserveDeposit, ObserveEventEnd:
		e = e.Float64("energy", o.Energy)
	}
	e.Msg("observe")
}

// RecordingObserver keeps every observation in memory.
type RecordingObserver struct {
	mu     sync.Mutex
	obs    []Observation
	counts map[ObservationKind]int
}

func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{counts: make(map[ObservationKind]int)}
}

func (r *RecordingObserver) Observe(o Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[ObservationKind]int)
	}
	r.obs = append(r.obs, o)
	r.counts[o.Kind]++
}

func (r *RecordingObserver) Count(k ObservationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[k]
}

// Observations returns a copy of everything seen so far.
func (r *RecordingObserver) Observations() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Observation(nil), r.obs...)
}

// Stats logs one line per observation kind.
func (r *RecordingObserver) Stats(log zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range observationNames {
		k := ObservationKind(i)
		log.Info().Str("kind", k.String()).Int("count", r.counts[k]).Msg("observations")
	}
}
