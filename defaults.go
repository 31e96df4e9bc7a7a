package nscache

import "time"

const (
	// DefaultNamespace is the key prefix used when Options.Namespace is empty.
	DefaultNamespace = "deviceservice:"

	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultScanCount   = 100
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Minutes converts a TTL expressed in whole minutes. Non-positive values
// yield 0, which means "no expiry".
func Minutes(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Minute
}
