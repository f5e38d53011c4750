package crd

// Point3 is a position in the detector frame, in millimetres.
type Point3 struct {
	X, Y, Z Real
}

// Add translates p by v.
func (p Point3) Add(v Point3) Point3 {
	return Point3{p.X + v.X, p.Y + v.Y, p.Z + v.Z}
}

// Sub translates p by -v.
func (p Point3) Sub(v Point3) Point3 {
	return Point3{p.X - v.X, p.Y - v.Y, p.Z - v.Z}
}

// Mid returns the midpoint between p and q.
func (p Point3) Mid(q Point3) Point3 {
	return Point3{(p.X + q.X) * 0.5, (p.Y + q.Y) * 0.5, (p.Z + q.Z) * 0.5}
}
