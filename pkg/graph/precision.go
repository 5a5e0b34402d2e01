package graph

import "fmt"

// Precision classifies the element type a value carries. The optimizer only
// ever converts between the two floating-point precisions; everything else is
// PrecisionOther and is left untouched.
type Precision int

const (
	// PrecisionOther marks values the cast optimizer never rewrites
	// (integers, booleans, strings, ...).
	PrecisionOther Precision = iota
	// PrecisionWide is the 32-bit floating-point representation.
	PrecisionWide
	// PrecisionNarrow is the 16-bit floating-point representation.
	PrecisionNarrow
)

// String returns the lowercase name used in serialized graphs and logs.
func (p Precision) String() string {
	switch p {
	case PrecisionWide:
		return "wide"
	case PrecisionNarrow:
		return "narrow"
	default:
		return "other"
	}
}

// Opposite returns the other floating-point precision.
// PrecisionOther has no opposite and is returned unchanged.
func (p Precision) Opposite() Precision {
	switch p {
	case PrecisionWide:
		return PrecisionNarrow
	case PrecisionNarrow:
		return PrecisionWide
	default:
		return p
	}
}

// ParsePrecision converts a serialized precision name back to a Precision.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "wide":
		return PrecisionWide, nil
	case "narrow":
		return PrecisionNarrow, nil
	case "other", "":
		return PrecisionOther, nil
	default:
		return PrecisionOther, fmt.Errorf("unknown precision %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Precision) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Precision) UnmarshalText(text []byte) error {
	parsed, err := ParsePrecision(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
