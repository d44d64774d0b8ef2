// Package minio implements the index snapshot store on an S3-compatible
// object store, so a sharded index built on one host can be loaded by every
// query replica.
package minio

import (
	"context"
	"io"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/antimet/internal/config"
	"github.com/turtacn/antimet/pkg/errors"
)

// Connect opens a minio client and ensures the snapshot bucket exists.
func Connect(ctx context.Context, cfg config.MinIOConfig) (*miniogo.Client, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot create minio client")
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot check snapshot bucket").
			WithDetail(cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot create snapshot bucket").
				WithDetail(cfg.Bucket)
		}
	}
	return client, nil
}

// SnapshotStore satisfies index.SnapshotStore over one bucket.
type SnapshotStore struct {
	client *miniogo.Client
	bucket string
}

// NewSnapshotStore wraps an open client.
func NewSnapshotStore(client *miniogo.Client, bucket string) *SnapshotStore {
	return &SnapshotStore{client: client, bucket: bucket}
}

// Get opens the snapshot object for reading.  Missing objects map to the
// canonical not-found code, so LoadOrBuildIndex can fall through to a build.
func (s *SnapshotStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot open snapshot").WithDetail(key)
	}
	// GetObject is lazy; surface a missing key now rather than at first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, errors.NotFound("snapshot not found").WithDetail(key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot stat snapshot").WithDetail(key)
	}
	return obj, nil
}

// Put writes the snapshot, replacing any previous version.
func (s *SnapshotStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot write snapshot").WithDetail(key)
	}
	return nil
}

// Exists reports whether the snapshot object is present.
func (s *SnapshotStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeSnapshotStore, "cannot stat snapshot").WithDetail(key)
}

func isNoSuchKey(err error) bool {
	resp := miniogo.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || strings.Contains(err.Error(), "does not exist")
}
