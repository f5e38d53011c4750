package crd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrRunActive      = errors.New("run already active")
	ErrRunNotActive   = errors.New("no active run")
	ErrAlreadyWritten = errors.New("run result already written")
)

type runState uint8

const (
	runIdle runState = iota
	runRunning
	runEnding
	runDone
)

// Controller drives the run lifecycle: it resets the aggregate, registers
// workers, waits for them at run end and writes the result once.
type Controller struct {
	agg          *RunAggregate
	sink         ResultSink
	geo          GeometryProvider
	scoringName  string
	detectorName string
	metrics      *Metrics
	obs          Observer
	log          zerolog.Logger
	now          func() time.Time

	mu      sync.Mutex
	state   runState
	runID   string
	started time.Time
	workers int
	written bool
	wg      sync.WaitGroup
	events  atomic.Int64
	gen     atomic.Uint64 // bumped by every BeginRun
}

type ControllerOption func(*Controller)

// WithSink sets where finalized runs go. Without a sink EndRun only returns the snapshot.
func WithSink(s ResultSink) ControllerOption { return func(c *Controller) { c.sink = s } }

func WithGeometry(g GeometryProvider) ControllerOption { return func(c *Controller) { c.geo = g } }

// WithVolumes names the scoring and SiPM detector volumes.
func WithVolumes(scoring, detector string) ControllerOption {
	return func(c *Controller) {
		if scoring != "" {
			c.scoringName = scoring
		}
		if detector != "" {
			c.detectorName = detector
		}
	}
}

func WithMetrics(m *Metrics) ControllerOption { return func(c *Controller) { c.metrics = m } }

func WithObserver(o Observer) ControllerOption { return func(c *Controller) { c.obs = o } }

func WithLogger(l zerolog.Logger) ControllerOption { return func(c *Controller) { c.log = l } }

func WithClock(now func() time.Time) ControllerOption { return func(c *Controller) { c.now = now } }

// WithRetentionPolicies sets the retention policy of every category.
func WithRetentionPolicies(p [NumCategories]RetentionPolicy) ControllerOption {
	return func(c *Controller) {
		for i := range p {
			c.agg.policy[i] = p[i]
		}
	}
}

// NewController returns an idle controller with its own RunAggregate.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		agg:          NewRunAggregate(),
		scoringName:  ScoringVolumeName,
		detectorName: DetectorVolumeName,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.agg.metrics = c.metrics
	c.agg.log = c.log
	return c
}

// Aggregate returns the run aggregate the workers merge into.
func (c *Controller) Aggregate() *RunAggregate { return c.agg }

// RunID returns the id of the current or last run.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// BeginRun resets the aggregate and opens a new run. No worker may be
// merging when it is called.
func (c *Controller) BeginRun() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == runRunning || c.state == runEnding {
		return "", fmt.Errorf("begin run %s: %w", c.runID, ErrRunActive)
	}
	c.runID = uuid.NewString()
	c.started = c.now()
	c.workers = 0
	c.written = false
	c.events.Store(0)
	c.gen.Add(1)
	c.agg.Reset()
	c.metrics.runStarted()
	c.state = runRunning
	c.log.Info().Str("run_id", c.runID).Msg("run started")
	return c.runID, nil
}

// NewWorker registers worker id with the current run. The worker must be
// closed before EndRun can return.
func (c *Controller) NewWorker(id int) (*Worker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != runRunning {
		return nil, fmt.Errorf("new worker %d: %w", id, ErrRunNotActive)
	}
	c.wg.Add(1)
	c.workers++
	log := c.log.With().Int("worker", id).Logger()
	return &Worker{
		id:   id,
		gen:  c.gen.Load(),
		ctrl: c,
		buf:  NewEventBuffer(),
		cls:  NewStepClassifier(c.geo, c.scoringName, c.detectorName, log),
		obs:  c.obs,
		log:  log,
	}, nil
}

// EndRun waits for every worker to close, finalizes the aggregate and
// writes the snapshot to the sink. A sink error is fatal for the run and
// wraps ErrSinkFailed; the snapshot is returned either way.
func (c *Controller) EndRun(ctx context.Context) (Snapshot, error) {
	snap, err := c.finish()
	if err != nil {
		return Snapshot{}, err
	}
	if c.sink != nil {
		if werr := c.sink.Write(ctx, &snap); werr != nil {
			if !errors.Is(werr, ErrSinkFailed) {
				werr = fmt.Errorf("%w: %w", ErrSinkFailed, werr)
			}
			err = werr
		}
	}
	c.mu.Lock()
	c.written = true
	c.state = runDone
	c.mu.Unlock()

	c.metrics.runEnded(err == nil, c.now().Sub(snap.StartedAt))
	if err != nil {
		c.log.Error().Err(err).Str("run_id", snap.RunID).Msg("run result not written")
		return snap, err
	}
	c.log.Info().Str("run_id", snap.RunID).Int64("events", snap.Events).Int("workers", snap.Workers).
		Int("sipm", snap.Len(CategorySiPM)).Int("mc", snap.Len(CategoryMC)).Int("step", snap.Len(CategoryStep)).
		Float64("energy_ev", snap.Energy).Msg("run finished")
	return snap, nil
}

// abortRun closes the run without writing anything.
func (c *Controller) abortRun(cause error) {
	snap, err := c.finish()
	if err != nil {
		return
	}
	c.mu.Lock()
	c.state = runDone
	c.mu.Unlock()
	c.metrics.runEnded(false, c.now().Sub(snap.StartedAt))
	c.log.Error().Err(cause).Str("run_id", snap.RunID).Msg("run aborted")
}

// finish is the end-of-run barrier: it blocks new workers, waits for the
// registered ones and finalizes the aggregate.
func (c *Controller) finish() (Snapshot, error) {
	c.mu.Lock()
	switch c.state {
	case runRunning:
	case runDone:
		if c.written {
			c.mu.Unlock()
			return Snapshot{}, fmt.Errorf("end run %s: %w", c.runID, ErrAlreadyWritten)
		}
		fallthrough
	default:
		c.mu.Unlock()
		return Snapshot{}, fmt.Errorf("end run: %w", ErrRunNotActive)
	}
	c.state = runEnding
	runID, started, workers := c.runID, c.started, c.workers
	c.mu.Unlock()

	c.wg.Wait()
	snap := c.agg.Finalize()
	snap.RunID = runID
	snap.Workers = workers
	snap.Events = c.events.Load()
	snap.StartedAt = started
	snap.FinishedAt = c.now()
	return snap, nil
}

func (c *Controller) eventEnded() {
	c.events.Add(1)
	c.metrics.eventEnded()
}

func (c *Controller) workerDone() { c.wg.Done() }

func (c *Controller) violation(kind string, log zerolog.Logger, format string, args ...any) {
	contractViolation(c.metrics, log, kind, format, args...)
}
