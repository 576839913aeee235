// Package cache defines the inquiry response cache used by the transport.
package cache

import (
	"context"
	"time"
)

// Interface is satisfied by redisstore.Client and lrustore.Store. A miss is
// (nil, false, nil); errors are transport failures only.
type Interface interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
