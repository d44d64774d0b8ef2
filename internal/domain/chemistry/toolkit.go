package chemistry

import (
	"time"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
)

// MCSOptions controls maximum-common-substructure matching.
type MCSOptions struct {
	// MatchRings requires matched atoms to agree on ring membership.
	MatchRings bool

	// MinFraction is the minimum fraction of the first molecule's atoms
	// (the query in screening) the common substructure must cover for the
	// match to count as completed.  Zero means no minimum.
	MinFraction float64

	// Timeout bounds the search.  An expired search reports
	// Completed=false; callers treat that as structural similarity zero,
	// never as an error.
	Timeout time.Duration
}

// MCSResult is the outcome of a maximum-common-substructure search.
type MCSResult struct {
	// Completed is false when the search timed out or the match fell below
	// MinFraction.
	Completed bool

	// MatchedAtoms and MatchedBonds size the common substructure.
	MatchedAtoms int
	MatchedBonds int
}

// VolumeOptions controls Monte Carlo volume estimation.
type VolumeOptions struct {
	// Samples is the number of random points drawn.  Zero selects the
	// default of 10000.
	Samples int

	// Seed makes the estimate reproducible.  Zero selects a fixed default
	// seed, so estimates are deterministic unless a caller opts out.
	Seed int64
}

// Toolkit is the cheminformatics capability boundary.  Implementations must
// be safe for concurrent use: the index builder and the filter pipeline call
// them from worker goroutines.
type Toolkit interface {
	// Fingerprint computes a fingerprint of the requested format.
	// Unsupported formats yield a configuration error; molecules the
	// toolkit cannot featurize yield a data error.
	Fingerprint(mol *Molecule, format fingerprint.Format) (fingerprint.Fingerprint, error)

	// MaximumCommonSubstructure searches for the largest substructure
	// common to a and b.  Timeouts are reported through
	// MCSResult.Completed, not through the error.
	MaximumCommonSubstructure(a, b *Molecule, opts MCSOptions) (MCSResult, error)

	// MonteCarloVolume estimates the van der Waals volume of a molecule
	// with 3D coordinates, in cubic angstroms.
	MonteCarloVolume(mol *Molecule, opts VolumeOptions) (float64, error)
}

// mcsScore is the weighted per-molecule coverage of a common substructure:
// atomsWeight * matchedAtoms/molAtoms + bondsWeight * matchedBonds/molBonds.
func mcsScore(res MCSResult, mol *Molecule, atomsWeight, bondsWeight float64) float64 {
	score := 0.0
	if n := mol.NumAtoms(); n > 0 {
		score += atomsWeight * float64(res.MatchedAtoms) / float64(n)
	}
	if n := mol.NumBonds(); n > 0 {
		score += bondsWeight * float64(res.MatchedBonds) / float64(n)
	}
	return score
}

// Default weights for StructuralSimilarity: shared atoms and shared bonds
// count equally.
const (
	DefaultAtomsWeight = 0.5
	DefaultBondsWeight = 0.5
)

// StructuralSimilarity scores how structurally close candidate is to query,
// as the product of the weighted substructure coverage relative to each
// molecule, with the default equal atom/bond weights.  Incomplete MCS
// results (timeout, below minimum fraction) score zero.
func StructuralSimilarity(res MCSResult, query, candidate *Molecule) float64 {
	return WeightedStructuralSimilarity(res, query, candidate,
		DefaultAtomsWeight, DefaultBondsWeight)
}

// WeightedStructuralSimilarity is StructuralSimilarity with caller-chosen
// atom and bond weights.  Non-positive total weight scores zero.
func WeightedStructuralSimilarity(res MCSResult, query, candidate *Molecule,
	atomsWeight, bondsWeight float64) float64 {

	if !res.Completed {
		return 0.0
	}
	total := atomsWeight + bondsWeight
	if total <= 0 {
		return 0.0
	}
	q := mcsScore(res, query, atomsWeight, bondsWeight) / total
	c := mcsScore(res, candidate, atomsWeight, bondsWeight) / total
	return q * c
}
