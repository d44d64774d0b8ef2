package chemistry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
)

func TestParseSMILES(t *testing.T) {
	mol, err := ParseSMILES("CCO")
	require.NoError(t, err)
	assert.Equal(t, 3, mol.NumAtoms())
	assert.Equal(t, 2, mol.NumBonds())
	assert.Equal(t, 0, mol.NumRingAtoms())

	benzene, err := ParseSMILES("c1ccccc1")
	require.NoError(t, err)
	assert.Equal(t, 6, benzene.NumAtoms())
	assert.Equal(t, 6, benzene.NumRingAtoms())
	// Five chain bonds plus the ring closure.
	assert.Equal(t, 6, benzene.NumBonds())

	chloro, err := ParseSMILES("CCl")
	require.NoError(t, err)
	require.Equal(t, 2, chloro.NumAtoms())
	assert.Equal(t, "Cl", chloro.Atoms[1].Symbol)

	_, err = ParseSMILES("")
	assert.Error(t, err)
	_, err = ParseSMILES("[]()")
	assert.Error(t, err)
}

func TestFingerprint_DeterministicAndDiscriminating(t *testing.T) {
	tk := NewSimpleToolkit()
	ethanol, err := ParseSMILES("CCO")
	require.NoError(t, err)

	for _, format := range []fingerprint.Format{
		fingerprint.FormatMACCS, fingerprint.FormatMorgan, fingerprint.FormatTopological,
	} {
		t.Run(string(format), func(t *testing.T) {
			a, err := tk.Fingerprint(ethanol, format)
			require.NoError(t, err)
			b, err := tk.Fingerprint(ethanol, format)
			require.NoError(t, err)
			assert.Equal(t, a, b)
			assert.Greater(t, a.OnBits(), 0)
			assert.Equal(t, 1.0, fingerprint.Coefficient(a, b))
		})
	}

	// Different molecules should land on different bit sets.
	ethane, err := ParseSMILES("CC")
	require.NoError(t, err)
	fa, err := tk.Fingerprint(ethanol, fingerprint.FormatMorgan)
	require.NoError(t, err)
	fb, err := tk.Fingerprint(ethane, fingerprint.FormatMorgan)
	require.NoError(t, err)
	assert.Less(t, fingerprint.Coefficient(fa, fb), 1.0)
}

func TestFingerprint_UnsupportedFormat(t *testing.T) {
	tk := NewSimpleToolkit()
	mol, err := ParseSMILES("CCO")
	require.NoError(t, err)
	_, err = tk.Fingerprint(mol, fingerprint.Format("daylight"))
	assert.Error(t, err)
}

func TestMaximumCommonSubstructure(t *testing.T) {
	tk := NewSimpleToolkit()
	a, err := ParseSMILES("CCO")
	require.NoError(t, err)

	self, err := tk.MaximumCommonSubstructure(a, a, MCSOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.True(t, self.Completed)
	assert.Equal(t, a.NumAtoms(), self.MatchedAtoms)
	assert.Equal(t, a.NumBonds(), self.MatchedBonds)
	assert.InDelta(t, 1.0, StructuralSimilarity(self, a, a), 1e-12)

	b, err := ParseSMILES("CCN")
	require.NoError(t, err)
	partial, err := tk.MaximumCommonSubstructure(a, b, MCSOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, partial.MatchedAtoms)
	sim := StructuralSimilarity(partial, a, b)
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
	// Atoms and bonds weigh equally: each side covers (2/3 + 1/2)/2.
	assert.InDelta(t, math.Pow((2.0/3.0+1.0/2.0)/2.0, 2), sim, 1e-12)

	// Below the minimum coverage the match does not complete, and an
	// incomplete match scores zero.
	strict, err := tk.MaximumCommonSubstructure(a, b, MCSOptions{MinFraction: 0.9})
	require.NoError(t, err)
	assert.False(t, strict.Completed)
	assert.Equal(t, 0.0, StructuralSimilarity(strict, a, b))
}

func TestMCS_MinFractionRelativeToQuery(t *testing.T) {
	tk := NewSimpleToolkit()
	query, err := ParseSMILES("CCCCCO")
	require.NoError(t, err)
	frag, err := ParseSMILES("CC")
	require.NoError(t, err)

	// The fragment is fully covered, but only a third of the query is.
	// The minimum is measured against the first molecule, so the match
	// does not complete.
	res, err := tk.MaximumCommonSubstructure(query, frag, MCSOptions{MinFraction: 0.5})
	require.NoError(t, err)
	assert.False(t, res.Completed)

	// Swapping the arguments makes the fragment the reference side, and
	// the match covers all of it.
	res, err = tk.MaximumCommonSubstructure(frag, query, MCSOptions{MinFraction: 0.5})
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestMCS_RingConstraint(t *testing.T) {
	tk := NewSimpleToolkit()
	chain, err := ParseSMILES("CCCCCC")
	require.NoError(t, err)
	ring, err := ParseSMILES("C1CCCCC1")
	require.NoError(t, err)

	loose, err := tk.MaximumCommonSubstructure(chain, ring, MCSOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6, loose.MatchedAtoms)

	strict, err := tk.MaximumCommonSubstructure(chain, ring, MCSOptions{MatchRings: true})
	require.NoError(t, err)
	assert.Equal(t, 0, strict.MatchedAtoms)
}

func TestMonteCarloVolume(t *testing.T) {
	tk := NewSimpleToolkit()

	single := &Molecule{
		Atoms:  []Atom{{Symbol: "C"}},
		Coords: [][3]float64{{0, 0, 0}},
	}
	got, err := tk.MonteCarloVolume(single, VolumeOptions{Samples: 20000})
	require.NoError(t, err)
	// 4/3·π·1.70³ ≈ 20.58 Å³ for a lone carbon sphere.
	assert.InDelta(t, 20.58, got, 1.5)

	// Same seed, same estimate.
	again, err := tk.MonteCarloVolume(single, VolumeOptions{Samples: 20000})
	require.NoError(t, err)
	assert.Equal(t, got, again)

	flat, err := ParseSMILES("CCO")
	require.NoError(t, err)
	_, err = tk.MonteCarloVolume(flat, VolumeOptions{})
	assert.Error(t, err)
}
