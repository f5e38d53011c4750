package crd

import "testing"

func TestDefaultGeometryLocate(t *testing.T) {
	g := DefaultGeometry()
	cases := []struct {
		p    Point3
		want string
	}{
		{Point3{0, 0, 0}, ScoringVolumeName},
		{Point3{0, 0, 7.9}, DetectorVolumeName},
		{Point3{10, 0, 0}, SampleVolumeName},
		{Point3{14, 0, 0}, "World"},
		{Point3{0, 0, 7.15}, DetectorVolumeName}, // shared face, smaller box wins
	}
	for _, c := range cases {
		if got := g.Locate(c.p); got.Name != c.want {
			t.Fatalf("Locate(%+v)=%q want %q", c.p, got.Name, c.want)
		}
	}
	if ref := g.Locate(Point3{100, 0, 0}); ref.Valid() {
		t.Fatalf("outside world located in %+v", ref)
	}
}

func TestBoxGeometryFindVolumeByName(t *testing.T) {
	g := DefaultGeometry()
	ref, ok := g.FindVolumeByName(ScoringVolumeName)
	if !ok || ref.Name != ScoringVolumeName || ref.ID == 0 {
		t.Fatalf("find: %+v %v", ref, ok)
	}
	if _, ok := g.FindVolumeByName("Nope"); ok {
		t.Fatal("unknown volume found")
	}
	w := g.World()
	if w.Max.X != 15.12 || w.Min.Z != -16.98 {
		t.Fatalf("world box %+v", w)
	}
}

func TestNewBoxGeometryRejectsBadInput(t *testing.T) {
	if _, err := NewBoxGeometry(nil); err == nil {
		t.Fatal("empty geometry accepted")
	}
	if _, err := NewBoxGeometry([]VolumeCfg{{Name: "a", Half: Point3{1, 1, 1}}, {Name: "a", Half: Point3{1, 1, 1}}}); err == nil {
		t.Fatal("duplicate accepted")
	}
	if _, err := NewBoxGeometry([]VolumeCfg{{Name: "a", Half: Point3{-1, 1, 1}}}); err == nil {
		t.Fatal("negative half size accepted")
	}
	if _, err := NewBoxGeometry([]VolumeCfg{{Half: Point3{1, 1, 1}}}); err == nil {
		t.Fatal("unnamed volume accepted")
	}
}

func TestBoxHelpers(t *testing.T) {
	b := BoxAround(Point3{1, 2, 3}, Point3{1, 1, 2})
	if b.Volume() != 16 || b.Center() != (Point3{1, 2, 3}) {
		t.Fatalf("box %+v", b)
	}
	if !b.Contains(Point3{0, 1, 1}) || b.Contains(Point3{0, 1, 0.9}) {
		t.Fatal("Contains mismatch")
	}
}
