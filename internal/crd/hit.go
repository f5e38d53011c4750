package crd

import (
	"fmt"
	"strings"
)

// HitRecord is one measured hit: position in mm, global time in ns and energy in eV.
type HitRecord struct {
	X, Y, Z Real
	T       Real
	E       Real
}

// NewHitRecord builds a record from a position, a time and an energy.
func NewHitRecord(p Point3, t, e Real) HitRecord {
	return HitRecord{X: p.X, Y: p.Y, Z: p.Z, T: t, E: e}
}

// Position returns the hit position.
func (h HitRecord) Position() Point3 { return Point3{h.X, h.Y, h.Z} }

// HitCategory tags the independent hit sequences.
type HitCategory uint8

const (
	CategoryStep HitCategory = iota // energy-depositing step inside the scoring volume
	CategorySiPM                    // optical photon reaching the SiPM
	CategoryMC                      // Monte-Carlo auxiliary truth, reserved
)

var categoryNames = [NumCategories]string{"Step", "SiPM", "MC"}
var categoryEmpty = [NumCategories]string{"STEP_EMPTY", "SiPM_EMPTY", "MC_EMPTY"}

// outputOrder is the fixed block order of the result artifact.
var outputOrder = [NumCategories]HitCategory{CategorySiPM, CategoryMC, CategoryStep}

// Categories returns the categories in artifact order: SiPM, MC, Step.
func Categories() []HitCategory {
	out := outputOrder
	return out[:]
}

func (c HitCategory) Valid() bool { return c < NumCategories }

// String returns the row tag of the category.
func (c HitCategory) String() string {
	if !c.Valid() {
		return fmt.Sprintf("HitCategory(%d)", uint8(c))
	}
	return categoryNames[c]
}

// EmptyTag is the tag of the sentinel row written for an empty category.
func (c HitCategory) EmptyTag() string {
	if !c.Valid() {
		return c.String() + "_EMPTY"
	}
	return categoryEmpty[c]
}

// ParseCategory accepts the row tag in any case.
func ParseCategory(s string) (HitCategory, error) {
	for i, n := range categoryNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return HitCategory(i), nil
		}
	}
	return 0, fmt.Errorf("unknown hit category %q", s)
}
