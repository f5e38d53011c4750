package crd

import "testing"

func TestPointAdd(t *testing.T) {
	p := Point3{1, 2, 3}
	v := Point3{-1, 1, 0.5}
	if q := p.Add(v); q != (Point3{0, 3, 3.5}) {
		t.Fatalf("Add mismatch: %+v", q)
	}
	if q := p.Sub(v); q != (Point3{2, 1, 2.5}) {
		t.Fatalf("Sub mismatch: %+v", q)
	}
	if m := p.Mid(Point3{3, 2, 1}); m != (Point3{2, 2, 2}) {
		t.Fatalf("Mid mismatch: %+v", m)
	}
}

func TestBoxAroundCenter(t *testing.T) {
	b := BoxAround(Point3{0, 0, 7.5}, Point3{3.5, 3.5, 0.5})
	if b.Min != (Point3{-3.5, -3.5, 7}) || b.Max != (Point3{3.5, 3.5, 8}) {
		t.Fatalf("bounds: %+v", b)
	}
	if c := b.Center(); c != (Point3{0, 0, 7.5}) {
		t.Fatalf("center: %+v", c)
	}
}
