package crd

// HitRecorder receives the hits and deposits of one event.
type HitRecorder interface {
	RecordHit(c HitCategory, h HitRecord)
	RecordEnergyDeposit(delta Real)
}

// Merger is the run-scoped side of EndEvent. Merge must copy records;
// the caller reuses the slice for the next event.
type Merger interface {
	Merge(c HitCategory, records []HitRecord)
	AddEnergy(delta Real)
}

// EventBuffer holds the hits and energy of one event on one worker.
// It is not safe for concurrent use; each worker owns its own buffer.
type EventBuffer struct {
	hits [NumCategories][]HitRecord
	edep Real
}

func NewEventBuffer() *EventBuffer { return &EventBuffer{} }

// BeginEvent clears the buffer. Capacity is kept for the next event.
func (b *EventBuffer) BeginEvent() {
	for c := range b.hits {
		b.hits[c] = b.hits[c][:0]
	}
	b.edep = 0
}

func (b *EventBuffer) RecordHit(c HitCategory, h HitRecord) {
	b.hits[c] = append(b.hits[c], h)
}

// RecordEnergyDeposit does not validate delta; negative values corrupt the total.
func (b *EventBuffer) RecordEnergyDeposit(delta Real) {
	b.edep += delta
}

// EndEvent merges every non-empty category once, adds the event energy
// (even when zero) and clears the buffer.
func (b *EventBuffer) EndEvent(target Merger) {
	for c := range b.hits {
		if len(b.hits[c]) > 0 {
			target.Merge(HitCategory(c), b.hits[c])
		}
	}
	target.AddEnergy(b.edep)
	b.BeginEvent()
}

func (b *EventBuffer) Len(c HitCategory) int { return len(b.hits[c]) }

func (b *EventBuffer) Energy() Real { return b.edep }

// Empty reports whether no hit and no energy is buffered.
func (b *EventBuffer) Empty() bool {
	for c := range b.hits {
		if len(b.hits[c]) > 0 {
			return false
		}
	}
	return b.edep == 0
}
