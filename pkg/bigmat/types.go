package bigmat

import (
	"fmt"
	"math"
)

// ElementType selects the byte width and native numeric type of every
// element in a matrix. The four tags are a closed set; the tag value is
// the element width in bytes.
type ElementType int

const (
	// Char is a 1-byte signed integer element (tag 1).
	Char ElementType = 1
	// Short is a 2-byte signed integer element (tag 2).
	Short ElementType = 2
	// Int is a 4-byte signed integer element (tag 4).
	Int ElementType = 4
	// Double is an 8-byte IEEE-754 element (tag 8).
	Double ElementType = 8
)

// Missing-value sentinels in each width's native representation.
// Integer widths sacrifice their minimum value; Double uses NaN.
const (
	naChar  = int8(math.MinInt8)
	naShort = int16(math.MinInt16)
	naInt   = int32(math.MinInt32)
)

// Valid reports whether t is one of the four known tags.
func (t ElementType) Valid() bool {
	switch t {
	case Char, Short, Int, Double:
		return true
	default:
		return false
	}
}

// Width returns the element size in bytes.
//
// Width panics on an unrecognized tag: the tag set is closed, so an
// unknown value is a programming error, not a recoverable condition.
func (t ElementType) Width() int {
	t.mustValid()

	return int(t)
}

// Range returns the native numeric range [min, max] used to test for
// overflow when narrowing an externally supplied float64. The sentinel
// value is excluded from the integer ranges.
func (t ElementType) Range() (minVal, maxVal float64) {
	switch t {
	case Char:
		return math.MinInt8 + 1, math.MaxInt8
	case Short:
		return math.MinInt16 + 1, math.MaxInt16
	case Int:
		return math.MinInt32 + 1, math.MaxInt32
	case Double:
		return math.Inf(-1), math.Inf(1)
	}

	panic(fmt.Sprintf("bigmat: unknown element type tag %d", int(t)))
}

// NA returns the missing-value sentinel as a float64. For Double this is
// NaN; for the integer widths it is the excluded minimum value.
func (t ElementType) NA() float64 {
	switch t {
	case Char:
		return float64(naChar)
	case Short:
		return float64(naShort)
	case Int:
		return float64(naInt)
	case Double:
		return math.NaN()
	}

	panic(fmt.Sprintf("bigmat: unknown element type tag %d", int(t)))
}

// Narrow maps an externally supplied value onto the element's native
// domain: NaN and out-of-range values become the NA sentinel, everything
// else is passed through (integer widths truncate toward zero on store).
func (t ElementType) Narrow(v float64) float64 {
	if math.IsNaN(v) {
		return t.NA()
	}

	if t == Double {
		return v
	}

	minVal, maxVal := t.Range()
	if v < minVal || v > maxVal {
		return t.NA()
	}

	return v
}

// IsNA reports whether v represents a missing value for this type. NaN
// is the missing value at the float64 surface for every type; the
// integer widths additionally recognize their native sentinel.
func (t ElementType) IsNA(v float64) bool {
	if math.IsNaN(v) {
		return true
	}

	if t == Double {
		return false
	}

	return v == t.NA()
}

func (t ElementType) String() string {
	switch t {
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
}

// ParseElementType converts a type name accepted by the CLI and
// descriptor files into a tag.
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "char":
		return Char, nil
	case "short":
		return Short, nil
	case "int":
		return Int, nil
	case "double":
		return Double, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrType, s)
	}
}

func (t ElementType) mustValid() {
	if !t.Valid() {
		panic(fmt.Sprintf("bigmat: unknown element type tag %d", int(t)))
	}
}
