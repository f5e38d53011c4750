package crd

import (
	"context"
	"fmt"
	"math/rand"
)

// EventInfo identifies one event of a run.
type EventInfo struct {
	ID     int64 // unique within the run
	Worker int
}

// StepSource is the external stepping engine: it simulates one event and
// reports every step through emit. rng belongs to the calling worker.
type StepSource interface {
	Simulate(ctx context.Context, ev EventInfo, rng *rand.Rand, emit func(Step)) error
}

type StepSourceFunc func(ctx context.Context, ev EventInfo, rng *rand.Rand, emit func(Step)) error

func (f StepSourceFunc) Simulate(ctx context.Context, ev EventInfo, rng *rand.Rand, emit func(Step)) error {
	return f(ctx, ev, rng, emit)
}

// UniformSource scatters steps uniformly over the world box. A fraction of
// them are optical photons with a fixed energy; the rest are electrons with
// exponentially distributed deposits. It drives the pipeline and nothing more.
type UniformSource struct {
	Geometry       *BoxGeometry
	Steps          int  // steps per event
	PhotonFraction Real // 0..1
	MeanDeposit    Real // eV
	PhotonEnergy   Real // eV
	TimeSpan       Real // ns
}

// NewUniformSource returns a source over g with the package defaults.
func NewUniformSource(g *BoxGeometry) *UniformSource {
	return &UniformSource{
		Geometry:       g,
		Steps:          StepsPerEvent,
		PhotonFraction: PhotonFraction,
		MeanDeposit:    MeanDepositEV,
		PhotonEnergy:   PhotonEnergyEV,
		TimeSpan:       TimeSpanNS,
	}
}

func (u *UniformSource) Simulate(ctx context.Context, _ EventInfo, rng *rand.Rand, emit func(Step)) error {
	if u.Geometry == nil {
		return fmt.Errorf("uniform source has no geometry")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w := u.Geometry.World()
	for i := 0; i < u.Steps; i++ {
		p := Point3{
			X: w.Min.X + rng.Float64()*(w.Max.X-w.Min.X),
			Y: w.Min.Y + rng.Float64()*(w.Max.Y-w.Min.Y),
			Z: w.Min.Z + rng.Float64()*(w.Max.Z-w.Min.Z),
		}
		s := Step{
			Volume:   u.Geometry.Locate(p),
			Position: p,
			Time:     rng.Float64() * u.TimeSpan,
		}
		if rng.Float64() < u.PhotonFraction {
			s.Particle = ParticleOpticalPhoton
			s.KineticEnergy = u.PhotonEnergy
		} else {
			s.Particle = ParticleElectron
			s.EnergyDeposit = rng.ExpFloat64() * u.MeanDeposit
			s.KineticEnergy = s.EnergyDeposit
		}
		emit(s)
	}
	return nil
}
