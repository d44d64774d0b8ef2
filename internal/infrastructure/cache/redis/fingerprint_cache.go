// Package redis implements the index builder's fingerprint cache on top of
// a redis server.  Cached fingerprints survive process restarts, so repeated
// index builds over the same compound collection skip the featurization
// step entirely.
package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/turtacn/antimet/internal/config"
	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/pkg/errors"
)

// Connect opens a redis client and verifies connectivity.
func Connect(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "cannot reach redis")
	}
	return client, nil
}

// entry is the cached wire form of a fingerprint.
type entry struct {
	Bits   []uint32 `json:"bits"`
	Length int      `json:"length"`
}

// FingerprintCache satisfies index.FingerprintCache.
type FingerprintCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewFingerprintCache wraps an open client.  A zero ttl stores entries
// without expiry.
func NewFingerprintCache(client *goredis.Client, ttl time.Duration) *FingerprintCache {
	return &FingerprintCache{client: client, ttl: ttl}
}

func cacheKey(id string, format fingerprint.Format) string {
	return "antimet:fp:" + string(format) + ":" + id
}

// Get returns the cached fingerprint and true on a hit.  A miss is not an
// error; broken entries and transport failures are, so the builder can log
// and recompute.
func (c *FingerprintCache) Get(ctx context.Context, id string, format fingerprint.Format) (fingerprint.Fingerprint, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(id, format)).Bytes()
	if err == goredis.Nil {
		return fingerprint.Fingerprint{}, false, nil
	}
	if err != nil {
		return fingerprint.Fingerprint{}, false,
			errors.Wrap(err, errors.ErrCodeCacheError, "fingerprint cache read failed").WithDetail(id)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return fingerprint.Fingerprint{}, false,
			errors.Wrap(err, errors.ErrCodeCacheError, "fingerprint cache entry corrupt").WithDetail(id)
	}
	return fingerprint.New(format, e.Bits, e.Length), true, nil
}

// Set stores a computed fingerprint.
func (c *FingerprintCache) Set(ctx context.Context, id string, fp fingerprint.Fingerprint) error {
	raw, err := json.Marshal(entry{Bits: fp.Bits, Length: fp.Length})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode fingerprint").WithDetail(id)
	}
	if err := c.client.Set(ctx, cacheKey(id, fp.Format), raw, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "fingerprint cache write failed").WithDetail(id)
	}
	return nil
}
