// Package cache stores rendered list pages for a short time so identical
// requests inside the TTL window skip the database.
package cache

import (
	"context"
	"time"
)

// Store is a key-value store with per-entry expiry.
// Get returns (value, true, nil) on hit, (nil, false, nil) on miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}
