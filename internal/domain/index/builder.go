package index

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/antimet/internal/domain/chemistry"
	"github.com/turtacn/antimet/internal/domain/compound"
	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/antimet/pkg/errors"
)

// FingerprintCache lets the builder reuse fingerprints computed by earlier
// builds.  The redis-backed implementation lives in
// internal/infrastructure/cache/redis; a nil cache disables reuse.
type FingerprintCache interface {
	// Get returns the cached fingerprint and true on a hit.  Cache errors
	// are returned so the builder can log them; a miss is not an error.
	Get(ctx context.Context, id string, format fingerprint.Format) (fingerprint.Fingerprint, bool, error)

	// Set stores a computed fingerprint.
	Set(ctx context.Context, id string, fp fingerprint.Fingerprint) error
}

// BuildObserver receives build progress for metrics export.  The prometheus
// implementation lives in internal/infrastructure/monitoring/prometheus.
type BuildObserver interface {
	ChunkProcessed(records int)
	CompoundSkipped()
	BuildCompleted(indexed int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ChunkProcessed(int)                {}
func (nopObserver) CompoundSkipped()                  {}
func (nopObserver) BuildCompleted(int, time.Duration) {}

// BuilderOptions tunes the chunked build.
type BuilderOptions struct {
	// ChunkSize is the number of source rows per read chunk (default 1000).
	ChunkSize int

	// ShardSize is the maximum compounds per shard (default 50000).  The
	// shard count is ceil(indexed / ShardSize).
	ShardSize int

	// Workers bounds chunk-level parallelism (default NumCPU).
	Workers int
}

func (o *BuilderOptions) defaults() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1000
	}
	if o.ShardSize <= 0 {
		o.ShardSize = 50000
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
}

// BuildReport summarizes one build.
type BuildReport struct {
	BuildID  string
	Format   fingerprint.Format
	Bucket   SolubilityBucket
	Total    int
	Indexed  int
	Filtered int
	Skipped  int
	Shards   int
	Elapsed  time.Duration
}

// Builder constructs sharded fingerprint indexes from a compound source.
type Builder struct {
	source   compound.Source
	toolkit  chemistry.Toolkit
	cache    FingerprintCache
	observer BuildObserver
	log      logging.Logger
}

// NewBuilder wires a builder.  cache and observer may be nil.
func NewBuilder(source compound.Source, toolkit chemistry.Toolkit, cache FingerprintCache,
	observer BuildObserver, log logging.Logger) *Builder {
	if observer == nil {
		observer = nopObserver{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Builder{source: source, toolkit: toolkit, cache: cache,
		observer: observer, log: log.Named("index.builder")}
}

// chunkResult keeps per-chunk output so concatenation order is the chunk
// order, independent of worker scheduling.
type chunkResult struct {
	ids      []string
	fps      []fingerprint.Fingerprint
	filtered int
	skipped  int
}

// Build reads the whole source in chunks, filters by solubility bucket,
// fingerprints every surviving compound and assembles the shards.  A
// compound the toolkit cannot featurize is skipped with a warning; a source
// read failure aborts the build with the failing chunk range attached.
func (b *Builder) Build(ctx context.Context, format fingerprint.Format,
	bucket SolubilityBucket, opts BuilderOptions) (*ShardedIndex, *BuildReport, error) {

	opts.defaults()
	start := time.Now()
	buildID := uuid.NewString()
	log := b.log.With(logging.String("build_id", buildID),
		logging.String("format", string(format)), logging.String("bucket", string(bucket)))

	total, err := b.source.Count(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable,
			"cannot count compound source")
	}

	numChunks := (total + opts.ChunkSize - 1) / opts.ChunkSize
	results := make([]chunkResult, numChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for c := 0; c < numChunks; c++ {
		c := c
		lo := c * opts.ChunkSize
		hi := lo + opts.ChunkSize
		if hi > total {
			hi = total
		}
		g.Go(func() error {
			res, err := b.buildChunk(gctx, format, bucket, lo, hi)
			if err != nil {
				return err
			}
			results[c] = res
			b.observer.ChunkProcessed(hi - lo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var ids []string
	var fps []fingerprint.Fingerprint
	filtered, skipped := 0, 0
	for _, res := range results {
		ids = append(ids, res.ids...)
		fps = append(fps, res.fps...)
		filtered += res.filtered
		skipped += res.skipped
	}

	shards, err := shard(format, ids, fps, opts.ShardSize)
	if err != nil {
		return nil, nil, err
	}
	ix, err := NewShardedIndex(format, shards)
	if err != nil {
		return nil, nil, err
	}

	report := &BuildReport{
		BuildID: buildID, Format: format, Bucket: bucket,
		Total: total, Indexed: len(ids), Filtered: filtered, Skipped: skipped,
		Shards: len(shards), Elapsed: time.Since(start),
	}
	b.observer.BuildCompleted(report.Indexed, report.Elapsed)
	log.Info("index build completed",
		logging.Int("total", report.Total), logging.Int("indexed", report.Indexed),
		logging.Int("filtered", report.Filtered), logging.Int("skipped", report.Skipped),
		logging.Int("shards", report.Shards), logging.Duration("elapsed", report.Elapsed))
	return ix, report, nil
}

func (b *Builder) buildChunk(ctx context.Context, format fingerprint.Format,
	bucket SolubilityBucket, lo, hi int) (chunkResult, error) {

	var res chunkResult
	rows, err := b.source.Slice(ctx, lo, hi)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrCodeChunkFailed, "chunk read failed").
			WithDetailf("range [%d, %d)", lo, hi)
	}
	for _, row := range rows {
		if !bucket.Contains(row.Solubility) {
			res.filtered++
			continue
		}
		fp, err := b.fingerprintRecord(ctx, row, format)
		if err != nil {
			res.skipped++
			b.observer.CompoundSkipped()
			b.log.Warn("compound skipped",
				logging.String("compound", row.InChIKey), logging.Err(err))
			continue
		}
		res.ids = append(res.ids, row.InChIKey)
		res.fps = append(res.fps, fp)
	}
	return res, nil
}

func (b *Builder) fingerprintRecord(ctx context.Context, row compound.Record,
	format fingerprint.Format) (fingerprint.Fingerprint, error) {

	if b.cache != nil {
		fp, ok, err := b.cache.Get(ctx, row.InChIKey, format)
		if err != nil {
			b.log.Warn("fingerprint cache read failed",
				logging.String("compound", row.InChIKey), logging.Err(err))
		} else if ok {
			return fp, nil
		}
	}

	mol, err := chemistry.ParseSMILES(row.SMILES)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	fp, err := b.toolkit.Fingerprint(mol, format)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}

	if b.cache != nil {
		if err := b.cache.Set(ctx, row.InChIKey, fp); err != nil {
			b.log.Warn("fingerprint cache write failed",
				logging.String("compound", row.InChIKey), logging.Err(err))
		}
	}
	return fp, nil
}

// shard splits the concatenated arrays into ceil(n/shardSize) flat shards.
func shard(format fingerprint.Format, ids []string, fps []fingerprint.Fingerprint,
	shardSize int) ([]*FlatIndex, error) {

	var shards []*FlatIndex
	for lo := 0; lo < len(ids); lo += shardSize {
		hi := lo + shardSize
		if hi > len(ids) {
			hi = len(ids)
		}
		s, err := NewFlatIndex(format, ids[lo:hi], fps[lo:hi])
		if err != nil {
			return nil, err
		}
		shards = append(shards, s)
	}
	if len(shards) == 0 {
		// An empty build still yields a queryable (empty) index.
		s, err := NewFlatIndex(format, nil, nil)
		if err != nil {
			return nil, err
		}
		shards = append(shards, s)
	}
	return shards, nil
}
