package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SnapshotTTL bounds staleness of cached loan limit snapshots.
const SnapshotTTL = 5 * time.Minute

// ErrCacheMiss is returned by Get when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache is a key-value store with per-entry expiration.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// LimitKey builds the cache key for a loan limit record
func LimitKey(id int64) string {
	return fmt.Sprintf("loan_limit:%d", id)
}
