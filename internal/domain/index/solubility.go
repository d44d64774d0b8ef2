// Package index implements the exact nearest-neighbor fingerprint index:
// flat brute-force shards, a sharded searcher that fans queries out and
// re-merges results, a chunked parallel builder over compound sources, and
// gob snapshot persistence keyed by fingerprint format and solubility
// bucket.
package index

import (
	"strings"

	"github.com/turtacn/antimet/pkg/errors"
)

// SolubilityBucket partitions compounds by aqueous solubility (logS).
type SolubilityBucket string

const (
	SolubilityAll    SolubilityBucket = "all"
	SolubilityHigh   SolubilityBucket = "high"
	SolubilityMedium SolubilityBucket = "medium"
	SolubilityLow    SolubilityBucket = "low"
)

// Bucket thresholds on logS.  High solubility is logS above -2, low is
// below -4, medium is the band between.
const (
	highSolubilityLogS = -2.0
	lowSolubilityLogS  = -4.0
)

var validBuckets = []SolubilityBucket{
	SolubilityAll, SolubilityHigh, SolubilityMedium, SolubilityLow,
}

// ParseSolubilityBucket validates a bucket name.
func ParseSolubilityBucket(s string) (SolubilityBucket, error) {
	b := SolubilityBucket(s)
	for _, v := range validBuckets {
		if b == v {
			return b, nil
		}
	}
	names := make([]string, len(validBuckets))
	for i, v := range validBuckets {
		names[i] = string(v)
	}
	return "", errors.New(errors.ErrCodeSolubilityBucket, "invalid solubility bucket").
		WithDetailf("got %q, valid: %s", s, strings.Join(names, ", "))
}

// Contains reports whether a compound with the given logS falls into the
// bucket.
func (b SolubilityBucket) Contains(logS float64) bool {
	switch b {
	case SolubilityHigh:
		return logS > highSolubilityLogS
	case SolubilityMedium:
		return logS > lowSolubilityLogS && logS <= highSolubilityLogS
	case SolubilityLow:
		return logS <= lowSolubilityLogS
	default:
		return true
	}
}
