package index

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/pkg/errors"
)

func maccs(bits ...uint32) fingerprint.Fingerprint {
	return fingerprint.New(fingerprint.FormatMACCS, bits, 166)
}

// randomFingerprints builds n deterministic pseudo-random MACCS fingerprints
// with identifiers cpd-0000 .. cpd-(n-1).
func randomFingerprints(n int, seed int64) ([]string, []fingerprint.Fingerprint) {
	rng := rand.New(rand.NewSource(seed))
	ids := make([]string, n)
	fps := make([]fingerprint.Fingerprint, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("cpd-%04d", i)
		bits := make([]uint32, 0, 24)
		for b := 0; b < 24; b++ {
			bits = append(bits, uint32(rng.Intn(166)))
		}
		fps[i] = fingerprint.New(fingerprint.FormatMACCS, bits, 166)
	}
	return ids, fps
}

func TestParseSolubilityBucket(t *testing.T) {
	b, err := ParseSolubilityBucket("medium")
	require.NoError(t, err)
	assert.Equal(t, SolubilityMedium, b)

	_, err = ParseSolubilityBucket("soluble")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSolubilityBucket))
}

func TestSolubilityBucket_Contains(t *testing.T) {
	assert.True(t, SolubilityHigh.Contains(-1.0))
	assert.False(t, SolubilityHigh.Contains(-3.0))
	assert.True(t, SolubilityMedium.Contains(-3.0))
	assert.False(t, SolubilityMedium.Contains(-5.0))
	assert.True(t, SolubilityLow.Contains(-5.0))
	for _, logS := range []float64{-1, -3, -5} {
		assert.True(t, SolubilityAll.Contains(logS))
	}
}

func TestFlatIndex_RadiusNeighbors(t *testing.T) {
	ix, err := NewFlatIndex(fingerprint.FormatMACCS,
		[]string{"a", "b", "c"},
		[]fingerprint.Fingerprint{maccs(1, 2, 3), maccs(1, 2, 4), maccs(100, 101)})
	require.NoError(t, err)

	got, err := ix.RadiusNeighbors(maccs(1, 2, 3), 0.6)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got["a"])
	assert.InDelta(t, 0.5, got["b"], 1e-12)
}

func TestFlatIndex_QueryFormatMismatch(t *testing.T) {
	ix, err := NewFlatIndex(fingerprint.FormatMACCS,
		[]string{"a"}, []fingerprint.Fingerprint{maccs(1)})
	require.NoError(t, err)

	morgan := fingerprint.New(fingerprint.FormatMorgan, []uint32{1}, 2048)
	_, err = ix.RadiusNeighbors(morgan, 1.0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFingerprintDimMismatch))

	_, err = ix.KNearest(morgan, 5)
	assert.Error(t, err)
}

func TestFlatIndex_SkipsIncomparableEntries(t *testing.T) {
	// An entry with a different bit length is skipped, not an error and
	// never a negative-distance hit.
	short := fingerprint.New(fingerprint.FormatMACCS, []uint32{1, 2}, 64)
	ix, err := NewFlatIndex(fingerprint.FormatMACCS,
		[]string{"short", "ok"},
		[]fingerprint.Fingerprint{short, maccs(1, 2)})
	require.NoError(t, err)

	got, err := ix.RadiusNeighbors(fingerprint.New(fingerprint.FormatMACCS, []uint32{1, 2}, 64), 1.0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, hasShort := got["short"]
	assert.True(t, hasShort)
}

func TestFlatIndex_Empty(t *testing.T) {
	ix, err := NewFlatIndex(fingerprint.FormatMACCS, nil, nil)
	require.NoError(t, err)

	got, err := ix.RadiusNeighbors(maccs(1), 1.0)
	require.NoError(t, err)
	assert.Empty(t, got)

	ns, err := ix.KNearest(maccs(1), 10)
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestNewFlatIndex_Invariants(t *testing.T) {
	_, err := NewFlatIndex(fingerprint.FormatMACCS, []string{"a"}, nil)
	assert.Error(t, err)

	morgan := fingerprint.New(fingerprint.FormatMorgan, []uint32{1}, 2048)
	_, err = NewFlatIndex(fingerprint.FormatMACCS, []string{"a"},
		[]fingerprint.Fingerprint{morgan})
	assert.Error(t, err)
}

func TestShardedIndex_MatchesFlatIndex(t *testing.T) {
	ids, fps := randomFingerprints(500, 42)
	flat, err := NewFlatIndex(fingerprint.FormatMACCS, ids, fps)
	require.NoError(t, err)

	shards, err := shard(fingerprint.FormatMACCS, ids, fps, 64)
	require.NoError(t, err)
	require.Len(t, shards, 8)
	sharded, err := NewShardedIndex(fingerprint.FormatMACCS, shards)
	require.NoError(t, err)
	assert.Equal(t, 500, sharded.Len())

	query := maccs(3, 17, 42, 80, 120, 150)
	ctx := context.Background()

	for _, k := range []int{1, 5, 50, 500, 1000} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			want, err := flat.KNearest(query, k)
			require.NoError(t, err)
			got, err := sharded.KNearest(ctx, query, k)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	for _, radius := range []float64{0.0, 0.5, 0.9, 1.0} {
		want, err := flat.RadiusNeighbors(query, radius)
		require.NoError(t, err)
		got, err := sharded.RadiusNeighbors(ctx, query, radius)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestShardedIndex_FailsWholeQueryOnShardError(t *testing.T) {
	good, err := NewFlatIndex(fingerprint.FormatMACCS,
		[]string{"a"}, []fingerprint.Fingerprint{maccs(1)})
	require.NoError(t, err)
	short, err := NewFlatIndex(fingerprint.FormatMACCS,
		[]string{"b"},
		[]fingerprint.Fingerprint{fingerprint.New(fingerprint.FormatMACCS, []uint32{1}, 64)})
	require.NoError(t, err)

	ix, err := NewShardedIndex(fingerprint.FormatMACCS, []*FlatIndex{good, short})
	require.NoError(t, err)

	// The query matches the first shard but not the second; the whole
	// query fails rather than returning partial results.
	_, err = ix.RadiusNeighbors(context.Background(), maccs(1), 1.0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFingerprintDimMismatch))

	_, err = ix.KNearest(context.Background(), maccs(1), 3)
	assert.Error(t, err)
}

func TestShardedIndex_MixedFormatRejected(t *testing.T) {
	good, err := NewFlatIndex(fingerprint.FormatMACCS,
		[]string{"a"}, []fingerprint.Fingerprint{maccs(1)})
	require.NoError(t, err)
	_, err = NewShardedIndex(fingerprint.FormatMorgan, []*FlatIndex{good})
	assert.Error(t, err)
}
