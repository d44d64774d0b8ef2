package index

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/pkg/errors"
)

// SnapshotStore is the persistence boundary for index snapshots.  Keys are
// opaque object names; the filesystem store below maps them to files and the
// minio-backed store in internal/infrastructure/storage/minio maps them to
// objects in a bucket.
type SnapshotStore interface {
	// Get opens the snapshot for reading.  A missing snapshot yields an
	// error with code COMMON_003 (not found).
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes the snapshot, replacing any previous version.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Exists reports whether the snapshot is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// SnapshotKey names the snapshot for one (format, bucket) combination.
func SnapshotKey(format fingerprint.Format, bucket SolubilityBucket) string {
	return fmt.Sprintf("fingerprints_%s_sol_%s.gob", format, bucket)
}

// snapshotShard is the gob wire form of one shard.
type snapshotShard struct {
	IDs  []string
	Bits [][]uint32
}

// snapshotTable is the gob wire form of a full index.
type snapshotTable struct {
	Format fingerprint.Format
	Bucket SolubilityBucket
	Length int
	Shards []snapshotShard
}

// SaveSnapshot serializes the index and writes it to the store under the
// key for (format, bucket).
func SaveSnapshot(ctx context.Context, store SnapshotStore, ix *ShardedIndex, bucket SolubilityBucket) error {
	table := snapshotTable{Format: ix.Format(), Bucket: bucket}
	for _, s := range ix.shards {
		ss := snapshotShard{IDs: s.ids}
		for _, fp := range s.fps {
			ss.Bits = append(ss.Bits, fp.Bits)
			table.Length = fp.Length
		}
		table.Shards = append(table.Shards, ss)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(table); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot encode index snapshot")
	}
	key := SnapshotKey(ix.Format(), bucket)
	if err := store.Put(ctx, key, &buf, int64(buf.Len())); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot write index snapshot").
			WithDetail(key)
	}
	return nil
}

// LoadSnapshot reads and rebuilds the index stored for (format, bucket).
func LoadSnapshot(ctx context.Context, store SnapshotStore, format fingerprint.Format,
	bucket SolubilityBucket) (*ShardedIndex, error) {

	key := SnapshotKey(format, bucket)
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var table snapshotTable
	if err := gob.NewDecoder(rc).Decode(&table); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot decode index snapshot").
			WithDetail(key)
	}
	if table.Format != format {
		return nil, errors.Invariant("snapshot format does not match key").
			WithDetailf("snapshot=%s key=%s", table.Format, format)
	}

	shards := make([]*FlatIndex, 0, len(table.Shards))
	for _, ss := range table.Shards {
		fps := make([]fingerprint.Fingerprint, len(ss.Bits))
		for i, bits := range ss.Bits {
			fps[i] = fingerprint.New(format, bits, table.Length)
		}
		s, err := NewFlatIndex(format, ss.IDs, fps)
		if err != nil {
			return nil, err
		}
		shards = append(shards, s)
	}
	return NewShardedIndex(format, shards)
}

// FileSnapshotStore keeps snapshots as files under one directory.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates the directory if needed.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotStore,
			"cannot create snapshot directory").WithDetail(dir)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

// Get implements SnapshotStore.
func (s *FileSnapshotStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if os.IsNotExist(err) {
		return nil, errors.NotFound("snapshot not found").WithDetail(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot open snapshot").
			WithDetail(key)
	}
	return f, nil
}

// Put implements SnapshotStore.  The write goes through a temp file and a
// rename so readers never observe a partial snapshot.
func (s *FileSnapshotStore) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	tmp, err := os.CreateTemp(s.dir, "snapshot-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot create snapshot temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot write snapshot").WithDetail(key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot close snapshot").WithDetail(key)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot publish snapshot").WithDetail(key)
	}
	return nil
}

// Exists implements SnapshotStore.
func (s *FileSnapshotStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot stat snapshot").
			WithDetail(key)
	}
	return true, nil
}
