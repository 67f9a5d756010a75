// Package cache holds the expiring key-value store used for transient workflow state.
package cache

import (
	"context"
	"time"
)

// Store is an expiring key-value cache. A missing or expired key is reported as
// ok == false with a nil error. Keys are independent: there is no transaction
// spanning several keys, so callers must tolerate one key expiring before another.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Delete(ctx context.Context, keys ...string) error
}
