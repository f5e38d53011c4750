package crd

import "fmt"

// RetentionMode selects how Merge treats the records of a category.
type RetentionMode string

const (
	RetainAll      RetentionMode = "all"      // keep everything
	RetainNone     RetentionMode = "none"     // count and discard everything
	RetainCap      RetentionMode = "cap"      // keep the first Limit records of the run
	RetainDecimate RetentionMode = "decimate" // keep every Every-th record offered
)

// RetentionPolicy bounds how many records of one category a run keeps.
// Discarded records are counted, never silently lost.
type RetentionPolicy struct {
	Mode  RetentionMode `json:"mode" yaml:"mode" validate:"omitempty,oneof=all none cap decimate"`
	Limit int           `json:"limit,omitempty" yaml:"limit,omitempty" validate:"gte=0"`
	Every int           `json:"every,omitempty" yaml:"every,omitempty" validate:"gte=0"`
}

func (p RetentionPolicy) Validate() error {
	switch p.Mode {
	case "", RetainAll, RetainNone:
		return nil
	case RetainCap:
		if p.Limit < 0 {
			return fmt.Errorf("retention cap needs limit >= 0, got %d", p.Limit)
		}
		return nil
	case RetainDecimate:
		if p.Every < 1 {
			return fmt.Errorf("retention decimate needs every >= 1, got %d", p.Every)
		}
		return nil
	default:
		return fmt.Errorf("unknown retention mode %q", p.Mode)
	}
}

func (p RetentionPolicy) String() string {
	switch p.Mode {
	case RetainCap:
		return fmt.Sprintf("cap(%d)", p.Limit)
	case RetainDecimate:
		return fmt.Sprintf("decimate(%d)", p.Every)
	case "":
		return string(RetainAll)
	default:
		return string(p.Mode)
	}
}

// admit appends the records the policy keeps to dst. offered is how many
// records of this category the run saw before this batch.
func (p RetentionPolicy) admit(dst, records []HitRecord, offered int) ([]HitRecord, int) {
	switch p.Mode {
	case RetainNone:
		return dst, len(records)
	case RetainCap:
		room := p.Limit - len(dst)
		if room <= 0 {
			return dst, len(records)
		}
		if room >= len(records) {
			return append(dst, records...), 0
		}
		return append(dst, records[:room]...), len(records) - room
	case RetainDecimate:
		if p.Every <= 1 {
			return append(dst, records...), 0
		}
		kept := 0
		for i, h := range records {
			if (offered+i)%p.Every == 0 {
				dst = append(dst, h)
				kept++
			}
		}
		return dst, len(records) - kept
	default:
		return append(dst, records...), 0
	}
}
