package crd

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RunOptions sizes a run.
type RunOptions struct {
	Events  int
	Workers int   // <= 0 means runtime.NumCPU()
	Seed    int64 // per-worker seeds are derived from it
}

// Run executes a complete run: BeginRun, events spread over a fixed pool of
// workers, EndRun. The first source error cancels the other workers and the
// run ends without a result write.
func (c *Controller) Run(ctx context.Context, src StepSource, opts RunOptions) (Snapshot, error) {
	if src == nil {
		return Snapshot{}, fmt.Errorf("run: no step source")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if opts.Events > 0 && workers > opts.Events {
		workers = opts.Events
	}
	if _, err := c.BeginRun(); err != nil {
		return Snapshot{}, err
	}

	per := splitEvents(opts.Events, workers)
	total := int64(opts.Events)
	every := int64(1)
	if total >= ProgressSteps {
		every = total / ProgressSteps
	}
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	first := int64(0)
	for wid, n := range per {
		wid, n := wid, n
		wk, err := c.NewWorker(wid)
		if err != nil {
			c.abortRun(err)
			return Snapshot{}, err
		}
		base := first
		first += int64(n)
		g.Go(func() error {
			defer wk.Close()
			rng := rand.New(rand.NewSource(workerSeed(opts.Seed, wid)))
			emit := func(s Step) { wk.ProcessStep(s) }
			for i := 0; i < n; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				id := base + int64(i)
				wk.BeginEvent(id)
				if err := src.Simulate(gctx, EventInfo{ID: id, Worker: wid}, rng, emit); err != nil {
					wk.EndEvent()
					return fmt.Errorf("worker %d event %d: %w", wid, id, err)
				}
				wk.EndEvent()
				if d := done.Add(1); d%every == 0 {
					c.log.Info().Int64("events", d).Int64("total", total).
						Float64("percent", float64(d)*100/float64(total)).Msg("progress")
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.abortRun(err)
		return Snapshot{}, err
	}
	return c.EndRun(ctx)
}
