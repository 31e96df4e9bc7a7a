// Package store defines the remote key-value capability used by nscache.
//
// A Store is an established handle to the remote cache store. It is created
// once by a dialer, shared by reference for every operation and closed when
// the owning connection manager is closed or invalidated.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the []byte previously passed to Set for the same key.
package store

import (
	"context"
	"time"
)

// Store is a byte store with expiring keys and cursor-based key enumeration.
// Must be safe for concurrent use once returned by a dialer.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value unconditionally. ttl > 0 sets an expiry atomically
	// with the write; ttl <= 0 means the key persists.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key. Removing a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Expire sets a TTL on an existing key. ok is false if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)

	// TTL returns the remaining time to live. ok is false if the key is
	// absent; a key without expiry reports (0, true, nil).
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)

	// Scan walks keys matching a glob pattern without blocking the store,
	// calling fn once per cursor page. Returning an error from fn stops the
	// walk and Scan returns that error. count is a page size hint.
	Scan(ctx context.Context, match string, count int64, fn func(keys []string) error) error

	// Ping checks the handle is alive.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// DialFunc establishes a new handle. It is called by the connection manager,
// possibly several times while retrying, never concurrently.
type DialFunc func(ctx context.Context) (Store, error)
