// Package fingerprint defines the molecular fingerprint value type used by
// the nearest-neighbor search engine, together with Tanimoto similarity over
// it.  Fingerprints are stored sparsely as the sorted positions of set bits;
// compound databases mix formats and bit lengths, so every comparison is
// guarded by the equal-length contract: the Tanimoto coefficient of two
// fingerprints of different lengths is the sentinel value -1, never a
// silently coerced number.
package fingerprint

import (
	"sort"
	"strings"

	"github.com/turtacn/antimet/pkg/errors"
)

// Format identifies the fingerprinting algorithm that produced a
// fingerprint.  Comparisons are only meaningful within one format.
type Format string

const (
	FormatMACCS       Format = "maccs"
	FormatMorgan      Format = "morgan"
	FormatTopological Format = "topological"
)

// validFormats lists every accepted format, in the order reported by
// error messages.
var validFormats = []Format{FormatMACCS, FormatMorgan, FormatTopological}

// IsValid reports whether the format is one of the supported values.
func (f Format) IsValid() bool {
	for _, v := range validFormats {
		if f == v {
			return true
		}
	}
	return false
}

func (f Format) String() string { return string(f) }

// ParseFormat validates a format name.  Unknown names yield a configuration
// error naming the invalid value and the valid set.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if f.IsValid() {
		return f, nil
	}
	names := make([]string, len(validFormats))
	for i, v := range validFormats {
		names[i] = string(v)
	}
	return "", errors.New(errors.ErrCodeFingerprintFormat, "invalid fingerprint format").
		WithDetailf("got %q, valid: %s", s, strings.Join(names, ", "))
}

// MismatchSentinel is returned by Coefficient and Distance when the two
// fingerprints cannot be compared (different bit lengths).
const MismatchSentinel = -1.0

// Fingerprint is an immutable sparse bit vector: the sorted, de-duplicated
// positions of set bits plus the declared total bit length.
type Fingerprint struct {
	// Format identifies the producing algorithm.
	Format Format

	// Bits holds the set-bit positions in strictly ascending order.
	Bits []uint32

	// Length is the total number of bits in the (virtual) vector.
	Length int
}

// New constructs a Fingerprint, sorting and de-duplicating positions.
// Positions at or beyond length are dropped.
func New(format Format, positions []uint32, length int) Fingerprint {
	bits := make([]uint32, 0, len(positions))
	for _, p := range positions {
		if int(p) < length {
			bits = append(bits, p)
		}
	}
	sort.Slice(bits, func(i, j int) bool { return bits[i] < bits[j] })
	// De-duplicate in place.
	out := bits[:0]
	var last uint32
	for i, b := range bits {
		if i == 0 || b != last {
			out = append(out, b)
		}
		last = b
	}
	return Fingerprint{Format: format, Bits: out, Length: length}
}

// OnBits returns the number of set bits.
func (fp Fingerprint) OnBits() int { return len(fp.Bits) }

// IsZero reports whether the fingerprint carries no information at all.
func (fp Fingerprint) IsZero() bool { return fp.Length == 0 && len(fp.Bits) == 0 }

// Comparable reports whether Tanimoto comparison between the two
// fingerprints is defined.
func Comparable(a, b Fingerprint) bool {
	return a.Length == b.Length && a.Length > 0
}

// Coefficient computes the Tanimoto coefficient |A∩B| / |A∪B| over the set
// bits of two equal-length fingerprints.  For mismatched lengths it returns
// MismatchSentinel.  Two fingerprints with empty union have coefficient 0.
func Coefficient(a, b Fingerprint) float64 {
	if !Comparable(a, b) {
		return MismatchSentinel
	}
	inter, union := 0, 0
	i, j := 0, 0
	for i < len(a.Bits) && j < len(b.Bits) {
		switch {
		case a.Bits[i] == b.Bits[j]:
			inter++
			union++
			i++
			j++
		case a.Bits[i] < b.Bits[j]:
			union++
			i++
		default:
			union++
			j++
		}
	}
	union += (len(a.Bits) - i) + (len(b.Bits) - j)
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// Distance is the Tanimoto distance 1 − Coefficient.  For mismatched
// lengths it returns MismatchSentinel; callers must check Comparable (or
// the sign of the result) before using the value as a distance.
func Distance(a, b Fingerprint) float64 {
	c := Coefficient(a, b)
	if c == MismatchSentinel {
		return MismatchSentinel
	}
	return 1.0 - c
}
