package index

import (
	"sort"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/pkg/errors"
)

// Neighbor is a single search hit.
type Neighbor struct {
	ID       string
	Distance float64
}

// FlatIndex is one brute-force shard: parallel identifier and fingerprint
// slices over a single fingerprint format.  A FlatIndex is immutable after
// construction and safe for concurrent queries.
type FlatIndex struct {
	format fingerprint.Format
	ids    []string
	fps    []fingerprint.Fingerprint
}

// NewFlatIndex builds a shard from parallel slices.  The slices must be the
// same length and every fingerprint must carry the shard's format; violating
// either is a caller bug.
func NewFlatIndex(format fingerprint.Format, ids []string, fps []fingerprint.Fingerprint) (*FlatIndex, error) {
	if len(ids) != len(fps) {
		return nil, errors.Invariant("identifier and fingerprint slices differ in length").
			WithDetailf("ids=%d fps=%d", len(ids), len(fps))
	}
	for i, fp := range fps {
		if fp.Format != format {
			return nil, errors.Invariant("mixed fingerprint formats in one shard").
				WithDetailf("index %d: got %s, want %s", i, fp.Format, format)
		}
	}
	return &FlatIndex{format: format, ids: ids, fps: fps}, nil
}

// Format returns the shard's fingerprint format.
func (ix *FlatIndex) Format() fingerprint.Format { return ix.format }

// Len returns the number of indexed compounds.
func (ix *FlatIndex) Len() int { return len(ix.ids) }

// checkQuery rejects queries whose format or bit length does not match the
// shard.  Mismatches are configuration errors, never silent empty results.
func (ix *FlatIndex) checkQuery(query fingerprint.Fingerprint) error {
	if query.Format != ix.format {
		return errors.New(errors.ErrCodeFingerprintDimMismatch,
			"query fingerprint format does not match index").
			WithDetailf("query=%s index=%s", query.Format, ix.format)
	}
	if len(ix.fps) > 0 && query.Length != ix.fps[0].Length {
		return errors.New(errors.ErrCodeFingerprintDimMismatch,
			"query fingerprint length does not match index").
			WithDetailf("query=%d index=%d", query.Length, ix.fps[0].Length)
	}
	return nil
}

// RadiusNeighbors returns every indexed compound within the given Tanimoto
// distance of the query, as identifier -> distance.  Indexed entries that
// are not comparable to the query (per-item length mismatch) are skipped.
// An empty index yields an empty map.
func (ix *FlatIndex) RadiusNeighbors(query fingerprint.Fingerprint, radius float64) (map[string]float64, error) {
	if err := ix.checkQuery(query); err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for i, fp := range ix.fps {
		d := fingerprint.Distance(query, fp)
		if d < 0 {
			continue
		}
		if d <= radius {
			out[ix.ids[i]] = d
		}
	}
	return out, nil
}

// KNearest returns up to k nearest compounds sorted by ascending distance,
// ties broken by identifier for deterministic output.  k larger than the
// index returns everything.
func (ix *FlatIndex) KNearest(query fingerprint.Fingerprint, k int) ([]Neighbor, error) {
	if err := ix.checkQuery(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	all := make([]Neighbor, 0, len(ix.fps))
	for i, fp := range ix.fps {
		d := fingerprint.Distance(query, fp)
		if d < 0 {
			continue
		}
		all = append(all, Neighbor{ID: ix.ids[i], Distance: d})
	}
	sortNeighbors(all)
	if k < len(all) {
		all = all[:k]
	}
	return all, nil
}

func sortNeighbors(ns []Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].ID < ns[j].ID
	})
}
