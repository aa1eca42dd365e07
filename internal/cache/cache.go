package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// ResponseCache stores raw response bodies keyed by request URL.
// Entries expire after the ttl given on Set; a zero ttl means no expiry.
// Concurrent writers to the same key: last write wins.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
