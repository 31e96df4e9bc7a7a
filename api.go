package nscache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	c "github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/near"
	"github.com/unkn0wn-root/nscache/store"
)

// Cache is the typed, namespaced cache API. V is the caller's value type;
// serialization is handled by a pluggable Codec[V].
type Cache[V any] interface {
	// Get returns ok=false with a nil error when the key is absent. A
	// non-nil error always means the cache could not answer.
	Get(ctx context.Context, key string) (v V, ok bool, err error)

	// Set overwrites key. ttl <= 0 keeps the entry until removed.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Remove deletes key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error

	// RemoveByPattern deletes every key matching the glob pattern within
	// the namespace and returns how many were deleted.
	RemoveByPattern(ctx context.Context, pattern string) (int, error)

	// Touch resets the TTL of an existing key. ok is false if absent.
	Touch(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)
}

// Options configure a Client. Either Dial or Conn is required.
type Options struct {
	// Namespace prefixes every key. "" => DefaultNamespace.
	Namespace string

	// Dial establishes the store handle; used to build a private ConnManager.
	Dial store.DialFunc
	// Conn shares an existing manager between clients. Takes precedence
	// over Dial, Retry and StickyFailure. The client does not close it.
	Conn *ConnManager

	Retry         RetryPolicy // zero => 5 attempts, 1s base, doubling
	StickyFailure bool        // default false => re-arm on next call

	ScanCount int64 // SCAN COUNT hint; 0 => 100

	Near    near.Cache    // optional in-process layer; nil disables
	NearTTL time.Duration // upper bound for near entries; 0 => 1m

	Logger   Logger       // if nil, NopLogger is used
	Hooks    Hooks        // if nil, NopHooks is used
	Tracer   trace.Tracer // if nil, the global otel tracer is used
	Disabled bool         // reads miss and writes are dropped
}

// New builds a Client. No connection is made until the first operation.
func New(opts Options) (*Client, error) {
	return newClient(opts)
}

// NewCache wraps c with a codec. A nil codec selects JSON.
func NewCache[V any](cl *Client, codec c.Codec[V]) Cache[V] {
	if codec == nil {
		codec = c.JSON[V]{}
	}
	return &typed[V]{cl: cl, codec: codec}
}

// Get reads key as JSON into T.
func Get[T any](ctx context.Context, cl *Client, key string) (T, bool, error) {
	return NewCache[T](cl, nil).Get(ctx, key)
}

// Set writes value as JSON.
func Set[T any](ctx context.Context, cl *Client, key string, value T, ttl time.Duration) error {
	return NewCache[T](cl, nil).Set(ctx, key, value, ttl)
}
