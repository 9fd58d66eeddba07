// Package cache provides the key-value cache behind the page loader,
// with an in-memory default and an optional redis backend.
package cache

import (
	"context"
	"time"
)

// Cache is the contract the page loader programs against. Get reports
// (found, err): on a miss dest is left untouched and found is false.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Ping(ctx context.Context) error
	Close() error
}
