package index

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/pkg/errors"
)

// ShardedIndex fans queries out to flat shards and re-merges results.  A
// radius query unions the per-shard maps; a k-nearest query collects each
// shard's local top-k and re-sorts globally, which is exact because the
// global top-k is a subset of the shard-local top-k sets.  Any shard
// failure fails the whole query.
type ShardedIndex struct {
	format fingerprint.Format
	shards []*FlatIndex
}

// NewShardedIndex assembles shards into one searchable index.  All shards
// must share one format.
func NewShardedIndex(format fingerprint.Format, shards []*FlatIndex) (*ShardedIndex, error) {
	for i, s := range shards {
		if s.Format() != format {
			return nil, errors.Invariant("mixed shard formats").
				WithDetailf("shard %d: got %s, want %s", i, s.Format(), format)
		}
	}
	return &ShardedIndex{format: format, shards: shards}, nil
}

// Format returns the index fingerprint format.
func (ix *ShardedIndex) Format() fingerprint.Format { return ix.format }

// NumShards returns the shard count.
func (ix *ShardedIndex) NumShards() int { return len(ix.shards) }

// Len returns the total number of indexed compounds.
func (ix *ShardedIndex) Len() int {
	n := 0
	for _, s := range ix.shards {
		n += s.Len()
	}
	return n
}

// RadiusNeighbors implements the radius query across all shards.
func (ix *ShardedIndex) RadiusNeighbors(ctx context.Context, query fingerprint.Fingerprint, radius float64) (map[string]float64, error) {
	merged := make(map[string]float64)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, shard := range ix.shards {
		shard := shard
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			local, err := shard.RadiusNeighbors(query, radius)
			if err != nil {
				return err
			}
			mu.Lock()
			for id, d := range local {
				merged[id] = d
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

// KNearest implements the k-nearest query across all shards.
func (ix *ShardedIndex) KNearest(ctx context.Context, query fingerprint.Fingerprint, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	var all []Neighbor
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, shard := range ix.shards {
		shard := shard
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			local, err := shard.KNearest(query, k)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sortNeighbors(all)
	if k < len(all) {
		all = all[:k]
	}
	return all, nil
}
