package crd

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ParticleKind is the species of the track that made a step.
type ParticleKind uint8

const (
	ParticleOther ParticleKind = iota
	ParticleOpticalPhoton
	ParticleGamma
	ParticleElectron
)

var particleNames = [...]string{"other", "opticalphoton", "gamma", "e-"}

func (k ParticleKind) String() string {
	if int(k) < len(particleNames) {
		return particleNames[k]
	}
	return fmt.Sprintf("ParticleKind(%d)", uint8(k))
}

// ParseParticleKind accepts the names printed by String.
func ParseParticleKind(s string) (ParticleKind, error) {
	for i, n := range particleNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return ParticleKind(i), nil
		}
	}
	return ParticleOther, fmt.Errorf("unknown particle %q", s)
}

// Step is one transport step reported by the stepping engine. Position and
// Time are taken at the pre-step point.
type Step struct {
	Volume        VolumeRef
	Position      Point3 // mm
	Time          Real   // global time, ns
	EnergyDeposit Real   // eV
	KineticEnergy Real   // eV
	Particle      ParticleKind
}

// StepClassifier turns steps into hits. Steps in the scoring volume deposit
// energy and produce a Step hit; optical photons in the detector volume
// produce a SiPM hit carrying their kinetic energy. Not safe for concurrent
// use; each worker owns one.
type StepClassifier struct {
	geo      GeometryProvider
	scoring  *ScoringVolumeResolver
	detector *ScoringVolumeResolver
}

// NewStepClassifier returns a classifier resolving both volumes in geo on first use.
func NewStepClassifier(geo GeometryProvider, scoringName, detectorName string, log zerolog.Logger) *StepClassifier {
	return &StepClassifier{
		geo:      geo,
		scoring:  NewScoringVolumeResolver(scoringName, log),
		detector: NewScoringVolumeResolver(detectorName, log),
	}
}

// Classify records what s contributes to rec and reports whether it produced
// anything. A missing scoring volume discards every step, SiPM hits included.
func (sc *StepClassifier) Classify(s Step, rec HitRecorder) bool {
	if !s.Volume.Valid() {
		return false
	}
	if _, err := sc.scoring.Resolve(sc.geo); err != nil {
		return false
	}
	recorded := false
	if sc.scoring.Filter(s.Volume) {
		rec.RecordEnergyDeposit(s.EnergyDeposit)
		rec.RecordHit(CategoryStep, NewHitRecord(s.Position, s.Time, s.EnergyDeposit))
		recorded = true
	}
	if s.Particle == ParticleOpticalPhoton {
		if _, err := sc.detector.Resolve(sc.geo); err == nil && sc.detector.Filter(s.Volume) {
			rec.RecordHit(CategorySiPM, NewHitRecord(s.Position, s.Time, s.KineticEnergy))
			recorded = true
		}
	}
	return recorded
}
