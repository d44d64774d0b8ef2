// Package indexing orchestrates index builds against the snapshot store:
// queries load a prebuilt snapshot when one exists and fall back to a full
// build that is then snapshotted for the next process.
package indexing

import (
	"context"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/internal/domain/index"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
)

// Service couples the chunked builder with a snapshot store.
type Service struct {
	builder *index.Builder
	store   index.SnapshotStore
	opts    index.BuilderOptions
	log     logging.Logger
}

// NewService wires the service.  store may be nil, in which case every call
// builds from the source.
func NewService(builder *index.Builder, store index.SnapshotStore,
	opts index.BuilderOptions, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{builder: builder, store: store, opts: opts, log: log.Named("indexing")}
}

// BuildIndex always builds from the compound source and, when a store is
// configured, replaces the snapshot for (format, bucket).
func (s *Service) BuildIndex(ctx context.Context, format fingerprint.Format,
	bucket index.SolubilityBucket) (*index.ShardedIndex, *index.BuildReport, error) {

	ix, report, err := s.builder.Build(ctx, format, bucket, s.opts)
	if err != nil {
		return nil, nil, err
	}
	if s.store != nil {
		if err := index.SaveSnapshot(ctx, s.store, ix, bucket); err != nil {
			return nil, nil, err
		}
		s.log.Info("index snapshot written",
			logging.String("key", index.SnapshotKey(format, bucket)),
			logging.Int("indexed", report.Indexed))
	}
	return ix, report, nil
}

// LoadOrBuildIndex returns the snapshotted index for (format, bucket) when
// one exists, and otherwise builds and snapshots it.  A snapshot that exists
// but cannot be loaded is treated as absent: the build replaces it.
func (s *Service) LoadOrBuildIndex(ctx context.Context, format fingerprint.Format,
	bucket index.SolubilityBucket) (*index.ShardedIndex, error) {

	if s.store != nil {
		ok, err := s.store.Exists(ctx, index.SnapshotKey(format, bucket))
		if err != nil {
			return nil, err
		}
		if ok {
			ix, err := index.LoadSnapshot(ctx, s.store, format, bucket)
			if err == nil {
				s.log.Info("index loaded from snapshot",
					logging.String("key", index.SnapshotKey(format, bucket)),
					logging.Int("fingerprints", ix.Len()))
				return ix, nil
			}
			s.log.Warn("snapshot unreadable, rebuilding",
				logging.String("key", index.SnapshotKey(format, bucket)),
				logging.Err(err))
		}
	}

	ix, _, err := s.BuildIndex(ctx, format, bucket)
	return ix, err
}
