// Package kv is the adapter over the external key-value store. Everything
// that crosses requests (bot configs, counters, knowledge caches) lives
// behind this interface; the chat path holds no in-process shared state.
//
// The contract is deliberately minimal: get/put/delete with TTL. The store
// offers no transactions and no atomic increment, so counters built on top
// of it are approximate (see internal/admission). If exact metering is ever
// required, swap in a driver backed by a store with native increment; do not
// bolt locking onto this one.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the opaque key-value contract. A zero ttl on Put means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
