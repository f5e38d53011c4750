package crd

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/nikita-mazotov/CubeSat-CRD-public/internal/artifact"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunCountsEveryEvent(t *testing.T) {
	g := DefaultGeometry()
	scint, _ := g.FindVolumeByName(ScoringVolumeName)
	var calls atomic.Int64
	src := StepSourceFunc(func(_ context.Context, ev EventInfo, _ *rand.Rand, emit func(Step)) error {
		calls.Add(1)
		emit(Step{Volume: scint, Time: Real(ev.ID), EnergyDeposit: 0.5})
		emit(Step{Volume: scint, Time: Real(ev.ID), EnergyDeposit: 0.5})
		return nil
	})
	m := NewMetrics(prometheus.NewRegistry())
	ctrl := NewController(WithGeometry(g), WithMetrics(m))
	snap, err := ctrl.Run(context.Background(), src, RunOptions{Events: 101, Workers: 4, Seed: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls.Load() != 101 || snap.Events != 101 || snap.Workers != 4 {
		t.Fatalf("calls=%d events=%d workers=%d", calls.Load(), snap.Events, snap.Workers)
	}
	if snap.Len(CategoryStep) != 202 || snap.Energy != 101 {
		t.Fatalf("step=%d energy=%v", snap.Len(CategoryStep), snap.Energy)
	}
	ids := map[Real]int{}
	for _, h := range snap.Records(CategoryStep) {
		ids[h.T]++
	}
	if len(ids) != 101 {
		t.Fatalf("event ids not unique: %d", len(ids))
	}
	if got := testutil.ToFloat64(m.events); got != 101 {
		t.Fatalf("events metric=%v", got)
	}
}

func TestRunSourceErrorAbortsWithoutWrite(t *testing.T) {
	boom := errors.New("transport failed")
	src := StepSourceFunc(func(_ context.Context, ev EventInfo, _ *rand.Rand, _ func(Step)) error {
		if ev.ID == 3 {
			return boom
		}
		return nil
	})
	sink := &countingSink{}
	ctrl := NewController(WithSink(sink))
	if _, err := ctrl.Run(context.Background(), src, RunOptions{Events: 20, Workers: 2}); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if sink.calls != 0 {
		t.Fatal("aborted run must not be written")
	}
	// the controller is reusable after an abort
	if _, err := ctrl.Run(context.Background(), src, RunOptions{Events: 2, Workers: 1}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sink.calls != 1 {
		t.Fatalf("sink calls=%d", sink.calls)
	}
}

func TestRunUniformSourceDeterministic(t *testing.T) {
	run := func() Snapshot {
		g := DefaultGeometry()
		ctrl := NewController(WithGeometry(g))
		snap, err := ctrl.Run(context.Background(), NewUniformSource(g), RunOptions{Events: 40, Workers: 1, Seed: 42})
		if err != nil {
			t.Fatal(err)
		}
		return snap
	}
	a, b := run(), run()
	if a.Energy != b.Energy || a.Len(CategoryStep) != b.Len(CategoryStep) || a.Len(CategorySiPM) != b.Len(CategorySiPM) {
		t.Fatalf("same seed, different runs: %v/%v %d/%d", a.Energy, b.Energy, a.Len(CategoryStep), b.Len(CategoryStep))
	}
	if a.Len(CategoryStep) == 0 || a.Energy <= 0 || a.Len(CategoryMC) != 0 {
		t.Fatalf("unexpected run: step=%d energy=%v mc=%d", a.Len(CategoryStep), a.Energy, a.Len(CategoryMC))
	}
	for _, h := range a.Records(CategorySiPM) {
		if h.E != PhotonEnergyEV || h.Z < 7.15 || h.Z > 8.15 {
			t.Fatalf("SiPM hit outside the detector: %+v", h)
		}
	}
}

func TestRunMissingScoringVolumeRecordsNothing(t *testing.T) {
	g := DefaultGeometry()
	store := artifact.NewMemory()
	ctrl := NewController(WithGeometry(g), WithVolumes("Nope", "AlsoNope"), WithSink(NewCSVSink(store)))
	snap, err := ctrl.Run(context.Background(), NewUniformSource(g), RunOptions{Events: 10, Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Total() != 0 || snap.Energy != 0 {
		t.Fatalf("hits recorded without volumes: %d %v", snap.Total(), snap.Energy)
	}
	if got := string(store.Bytes(OutputName)); got != "x,y,z,time,energy,type\nn/a,n/a,n/a,n/a,n/a,SiPM_EMPTY\nn/a,n/a,n/a,n/a,n/a,MC_EMPTY\nn/a,n/a,n/a,n/a,n/a,STEP_EMPTY\n" {
		t.Fatalf("artifact:\n%s", got)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl := NewController(WithGeometry(DefaultGeometry()))
	if _, err := ctrl.Run(ctx, NewUniformSource(DefaultGeometry()), RunOptions{Events: 10, Workers: 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestRunMissingScoringVolumeDiscardsSiPMHits(t *testing.T) {
	g := DefaultGeometry()
	ctrl := NewController(WithGeometry(g), WithVolumes("NoSuchVolume", DetectorVolumeName))
	snap, err := ctrl.Run(context.Background(), NewUniformSource(g), RunOptions{Events: 500, Workers: 2, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Total() != 0 || snap.Energy != 0 {
		t.Fatalf("hits recorded after a scoring volume miss: sipm=%d step=%d energy=%v",
			snap.Len(CategorySiPM), snap.Len(CategoryStep), snap.Energy)
	}

	// same seed with the scoring volume present does produce SiPM hits
	ok := NewController(WithGeometry(g))
	ref, err := ok.Run(context.Background(), NewUniformSource(g), RunOptions{Events: 500, Workers: 2, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if ref.Len(CategorySiPM) == 0 {
		t.Fatal("expected SiPM hits when both volumes resolve")
	}
}
