// Package near defines an optional in-process cache placed in front of the
// remote store.
//
// A near cache trades freshness for latency: entries written by other
// processes are not seen until the local copy expires, and removals done by
// other processes are not propagated. Keep its TTL short. Keys are storage
// keys (namespace already applied).
package near

import "time"

// Cache is a byte cache with per-entry TTL. Implementations must be safe for
// concurrent use and may drop entries at any time.
type Cache interface {
	Get(key string) ([]byte, bool)
	// Set stores value for at most ttl. ttl must be > 0.
	Set(key string, value []byte, ttl time.Duration)
	Del(key string)
	// Clear drops every entry.
	Clear()
	Close() error
}
