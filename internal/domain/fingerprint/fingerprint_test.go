package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/antimet/pkg/errors"
)

func fp(bits ...uint32) Fingerprint {
	return New(FormatMACCS, bits, 166)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("morgan")
	assert.NoError(t, err)
	assert.Equal(t, FormatMorgan, f)

	_, err = ParseFormat("ecfp10")
	assert.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFingerprintFormat))
	assert.Contains(t, err.Error(), "ecfp10")
	assert.Contains(t, err.Error(), "maccs")
}

func TestNew_SortsAndDeduplicates(t *testing.T) {
	got := New(FormatMACCS, []uint32{9, 3, 9, 1, 3}, 166)
	assert.Equal(t, []uint32{1, 3, 9}, got.Bits)
	assert.Equal(t, 3, got.OnBits())

	// Positions beyond the declared length are dropped.
	clipped := New(FormatMACCS, []uint32{1, 200}, 166)
	assert.Equal(t, []uint32{1}, clipped.Bits)
}

func TestCoefficient(t *testing.T) {
	tests := []struct {
		name string
		a, b Fingerprint
		want float64
	}{
		{"identical", fp(1, 2, 3), fp(1, 2, 3), 1.0},
		{"disjoint", fp(1, 2), fp(3, 4), 0.0},
		{"half_overlap", fp(1, 2, 3, 4), fp(3, 4, 5, 6), 1.0 / 3.0},
		{"subset", fp(1, 2), fp(1, 2, 3, 4), 0.5},
		{"both_empty", fp(), fp(), 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Coefficient(tt.a, tt.b), 1e-12)
		})
	}
}

func TestCoefficient_Symmetry(t *testing.T) {
	pairs := [][2]Fingerprint{
		{fp(1, 5, 9), fp(2, 5, 140)},
		{fp(), fp(10, 20)},
		{fp(0, 165), fp(0)},
	}
	for _, p := range pairs {
		assert.Equal(t, Coefficient(p[0], p[1]), Coefficient(p[1], p[0]))
		assert.Equal(t, Distance(p[0], p[1]), Distance(p[1], p[0]))
	}
}

func TestSelfDistanceIsZero(t *testing.T) {
	a := fp(3, 77, 120)
	assert.Equal(t, 1.0, Coefficient(a, a))
	assert.Equal(t, 0.0, Distance(a, a))
	assert.Equal(t, 1.0-Coefficient(a, a), Distance(a, a))
}

func TestMismatchedLengthSentinel(t *testing.T) {
	maccs := New(FormatMACCS, []uint32{1, 2}, 166)
	morgan := New(FormatMorgan, []uint32{1, 2}, 2048)

	assert.False(t, Comparable(maccs, morgan))
	assert.Equal(t, MismatchSentinel, Coefficient(maccs, morgan))
	assert.Equal(t, MismatchSentinel, Distance(maccs, morgan))

	// Zero-length fingerprints are never comparable, even to themselves.
	var zero Fingerprint
	assert.Equal(t, MismatchSentinel, Coefficient(zero, zero))
}
