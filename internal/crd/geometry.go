package crd

import "fmt"

// Box is an axis-aligned box, Min <= Max on every axis.
type Box struct {
	Min, Max Point3
}

// BoxAround returns the box with the given center and half sizes.
func BoxAround(center, half Point3) Box {
	return Box{Min: center.Sub(half), Max: center.Add(half)}
}

// Contains reports whether p lies inside b or on its surface.
func (b Box) Contains(p Point3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Box) Center() Point3 { return b.Min.Mid(b.Max) }

func (b Box) Volume() Real {
	return (b.Max.X - b.Min.X) * (b.Max.Y - b.Min.Y) * (b.Max.Z - b.Min.Z)
}

func (b Box) valid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z &&
		isFinite(b.Min.X) && isFinite(b.Min.Y) && isFinite(b.Min.Z) &&
		isFinite(b.Max.X) && isFinite(b.Max.Y) && isFinite(b.Max.Z)
}

// VolumeCfg places one named box: center and half sizes in mm.
type VolumeCfg struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Center Point3 `json:"center" yaml:"center"`
	Half   Point3 `json:"half" yaml:"half"`
}

// BoxGeometry is a flat set of named boxes. The first box is the world;
// a point belongs to the smallest box that contains it.
type BoxGeometry struct {
	vols   []BoxVolume
	byName map[string]int
}

// BoxVolume is one placed box.
type BoxVolume struct {
	Ref VolumeRef
	Box Box
}

// NewBoxGeometry builds the geometry; names must be unique and boxes valid.
func NewBoxGeometry(cfgs []VolumeCfg) (*BoxGeometry, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("geometry needs at least a world volume")
	}
	g := &BoxGeometry{byName: make(map[string]int, len(cfgs))}
	for i, c := range cfgs {
		if c.Name == "" {
			return nil, fmt.Errorf("volume %d has no name", i)
		}
		if _, dup := g.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate volume %q", c.Name)
		}
		b := BoxAround(c.Center, c.Half)
		if !b.valid() {
			return nil, fmt.Errorf("volume %q has an invalid box: %+v", c.Name, c.Half)
		}
		g.byName[c.Name] = i
		g.vols = append(g.vols, BoxVolume{Ref: VolumeRef{ID: i + 1, Name: c.Name}, Box: b})
	}
	return g, nil
}

// DefaultVolumes is the CubeSat detector stack: world, aluminium shell,
// plastic scintillator and the SiPM on its +z face.
func DefaultVolumes() []VolumeCfg {
	return []VolumeCfg{
		{Name: "World", Half: Point3{15.12, 15.204, 16.98}},
		{Name: SampleVolumeName, Half: Point3{12.6, 12.67, 14.15}},
		{Name: ScoringVolumeName, Half: Point3{5.6, 5.67, 7.15}},
		{Name: DetectorVolumeName, Center: Point3{0, 0, 7.65}, Half: Point3{3.5, 3.5, 0.5}},
	}
}

// DefaultGeometry returns the geometry of DefaultVolumes.
func DefaultGeometry() *BoxGeometry {
	g, err := NewBoxGeometry(DefaultVolumes())
	if err != nil {
		panic(err)
	}
	return g
}

func (g *BoxGeometry) FindVolumeByName(name string) (VolumeRef, bool) {
	i, ok := g.byName[name]
	if !ok {
		return VolumeRef{}, false
	}
	return g.vols[i].Ref, true
}

// Locate returns the smallest volume containing p, or the zero ref outside the world.
func (g *BoxGeometry) Locate(p Point3) VolumeRef {
	best, bestV := -1, 0.0
	for i := range g.vols {
		if !g.vols[i].Box.Contains(p) {
			continue
		}
		if v := g.vols[i].Box.Volume(); best < 0 || v < bestV {
			best, bestV = i, v
		}
	}
	if best < 0 {
		return VolumeRef{}
	}
	return g.vols[best].Ref
}

// World returns the first (outermost) box.
func (g *BoxGeometry) World() Box { return g.vols[0].Box }

// Volume returns the placed box called name.
func (g *BoxGeometry) Volume(name string) (BoxVolume, bool) {
	i, ok := g.byName[name]
	if !ok {
		return BoxVolume{}, false
	}
	return g.vols[i], true
}

func (g *BoxGeometry) Volumes() []BoxVolume { return append([]BoxVolume(nil), g.vols...) }
