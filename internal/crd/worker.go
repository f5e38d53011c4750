package crd

import (
	"sync"

	"github.com/rs/zerolog"
)

// Worker is the per-goroutine side of a run. It owns one EventBuffer and
// one classifier and must not be shared between goroutines.
type Worker struct {
	id     int
	gen    uint64
	ctrl   *Controller
	buf    *EventBuffer
	cls    *StepClassifier
	obs    Observer
	log    zerolog.Logger
	event  int64
	open   bool
	events int
	done   bool
	closed sync.Once
}

func (w *Worker) ID() int { return w.id }

// Events is the number of events this worker ended.
func (w *Worker) Events() int { return w.events }

// BeginEvent opens event id and clears the buffer.
func (w *Worker) BeginEvent(id int64) {
	if w.open {
		w.ctrl.violation("begin_in_event", w.log, "event %d begun while %d is open", id, w.event)
	}
	w.buf.BeginEvent()
	w.event, w.open = id, true
	w.observe(Observation{Kind: ObserveEventBegin})
}

// ProcessStep classifies s into the current event.
func (w *Worker) ProcessStep(s Step) bool {
	if !w.open {
		w.ctrl.violation("step_outside_event", w.log, "step outside an event")
	}
	return w.cls.Classify(s, w)
}

// RecordHit buffers h. It is also the entry point for producers the
// classifier does not cover, such as MC truth.
func (w *Worker) RecordHit(c HitCategory, h HitRecord) {
	if !c.Valid() {
		w.ctrl.violation("invalid_category", w.log, "record into category %d", c)
		return
	}
	w.buf.RecordHit(c, h)
	w.observe(Observation{Kind: ObserveHit, Category: c, Count: 1})
}

func (w *Worker) RecordEnergyDeposit(delta Real) {
	w.buf.RecordEnergyDeposit(delta)
	w.observe(Observation{Kind: ObserveDeposit, Energy: delta})
}

// EndEvent merges the buffered event into the run and clears the buffer.
// A worker that was closed, or that belongs to an earlier run, drops the
// event instead.
func (w *Worker) EndEvent() {
	if !w.open {
		w.ctrl.violation("end_outside_event", w.log, "EndEvent without BeginEvent")
	}
	if w.done || w.gen != w.ctrl.gen.Load() {
		w.ctrl.violation("merge_outside_run", w.log, "event %d ended by a worker detached from the run", w.event)
		w.buf.BeginEvent()
		w.open = false
		return
	}
	if w.obs != nil {
		for c := 0; c < NumCategories; c++ {
			if n := w.buf.Len(HitCategory(c)); n > 0 {
				w.observe(Observation{Kind: ObserveMerge, Category: HitCategory(c), Count: n})
			}
		}
	}
	energy := w.buf.Energy()
	w.buf.EndEvent(w.ctrl.agg)
	w.open = false
	w.events++
	w.ctrl.eventEnded()
	w.observe(Observation{Kind: ObserveEventEnd, Energy: energy})
}

// Close releases the worker from the run barrier. An open event is ended
// first. Further calls are no-ops.
func (w *Worker) Close() {
	w.closed.Do(func() {
		if w.open {
			w.ctrl.violation("close_in_event", w.log, "worker closed inside event %d", w.event)
			w.EndEvent()
		}
		w.done = true
		w.log.Debug().Int("events", w.events).Msg("worker done")
		w.ctrl.workerDone()
	})
}

func (w *Worker) observe(o Observation) {
	if w.obs == nil {
		return
	}
	o.Worker, o.Event = w.id, w.event
	w.obs.Observe(o)
}
