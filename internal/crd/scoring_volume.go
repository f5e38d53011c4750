package crd

import (
	"errors"

	"github.com/rs/zerolog"
)

// ErrVolumeNotFound means the geometry has no volume with the requested name.
var ErrVolumeNotFound = errors.New("volume not found")

// VolumeRef identifies a geometry volume. The zero value is "no volume".
type VolumeRef struct {
	ID   int
	Name string
}

func (v VolumeRef) Valid() bool { return v.Name != "" }

// GeometryProvider is the external geometry collaborator.
type GeometryProvider interface {
	FindVolumeByName(name string) (VolumeRef, bool)
}

// ScoringVolumeResolver resolves one named volume lazily and caches the
// outcome, including a miss, for the rest of the run. One per worker.
type ScoringVolumeResolver struct {
	name     string
	log      zerolog.Logger
	resolved bool
	ref      VolumeRef
}

// NewScoringVolumeResolver returns a resolver for the volume called name.
func NewScoringVolumeResolver(name string, log zerolog.Logger) *ScoringVolumeResolver {
	return &ScoringVolumeResolver{name: name, log: log}
}

func (r *ScoringVolumeResolver) Name() string { return r.name }

// Resolve returns the cached volume, querying p on the first call only.
// A miss is logged once and reported as ErrVolumeNotFound from then on.
func (r *ScoringVolumeResolver) Resolve(p GeometryProvider) (VolumeRef, error) {
	if !r.resolved {
		r.resolved = true
		if p != nil {
			if ref, ok := p.FindVolumeByName(r.name); ok && ref.Valid() {
				r.ref = ref
			}
		}
		if !r.ref.Valid() {
			r.log.Warn().Str("volume", r.name).Msg("volume not found; steps in it will be ignored for this run")
		}
	}
	if !r.ref.Valid() {
		return VolumeRef{}, ErrVolumeNotFound
	}
	return r.ref, nil
}

// Filter reports whether observed is the resolved volume.
// It is false before Resolve and after a miss.
func (r *ScoringVolumeResolver) Filter(observed VolumeRef) bool {
	return r.ref.Valid() && observed == r.ref
}
