package nscache

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	c "github.com/unkn0wn-root/nscache/codec"
	"github.com/unkn0wn-root/nscache/internal/keys"
	"github.com/unkn0wn-root/nscache/near"
	"github.com/unkn0wn-root/nscache/store"
)

const (
	tracerName     = "github.com/unkn0wn-root/nscache"
	defaultNearTTL = time.Minute
)

// Client is the byte-level, namespaced cache. It is safe for concurrent use.
// Typed access goes through NewCache.
type Client struct {
	ns        string
	conn      *ConnManager
	ownsConn  bool
	scanCount int64
	near      near.Cache
	nearTTL   time.Duration
	log       Logger
	hooks     Hooks
	tracer    trace.Tracer
	enabled   bool
}

func newClient(opts Options) (*Client, error) {
	if opts.Conn == nil && opts.Dial == nil {
		return nil, errors.New("nscache: Dial or Conn is required")
	}

	cl := &Client{
		ns:        coalesce(opts.Namespace, DefaultNamespace),
		scanCount: coalesce(opts.ScanCount, int64(DefaultScanCount)),
		near:      opts.Near,
		nearTTL:   coalesce(opts.NearTTL, defaultNearTTL),
		log:       coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:     coalesce[Hooks](opts.Hooks, NopHooks{}),
		tracer:    opts.Tracer,
		enabled:   !opts.Disabled,
	}
	if cl.tracer == nil {
		cl.tracer = otel.Tracer(tracerName)
	}

	if opts.Conn != nil {
		cl.conn = opts.Conn
	} else {
		co := []ConnOption{
			WithRetryPolicy(opts.Retry),
			WithConnLogger(cl.log),
			WithConnHooks(cl.hooks),
		}
		if opts.StickyFailure {
			co = append(co, WithStickyFailure())
		}
		cl.conn = NewConnManager(opts.Dial, co...)
		cl.ownsConn = true
	}
	return cl, nil
}

func (cl *Client) Namespace() string { return cl.ns }

func (cl *Client) Enabled() bool { return cl.enabled }

// Conn exposes the connection manager, e.g. to share it or read its State.
func (cl *Client) Conn() *ConnManager { return cl.conn }

// GetBytes returns the stored bytes for key. A missing or empty value is a
// miss, not an error.
func (cl *Client) GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error) {
	if !cl.enabled {
		return nil, false, nil
	}
	ctx, span := cl.startSpan(ctx, "get", key)
	defer func() {
		span.SetAttributes(attribute.Bool("cache.hit", ok))
		endSpan(span, err)
	}()

	sk := keys.Storage(cl.ns, key)
	if cl.near != nil {
		if v, hit := cl.near.Get(sk); hit {
			span.SetAttributes(attribute.Bool("cache.near_hit", true))
			return v, true, nil
		}
	}

	s, err := cl.conn.Get(ctx)
	if err != nil {
		return nil, false, err
	}
	v, found, err := s.Get(ctx, sk)
	if err != nil {
		cl.log.Error("cache get failed", Fields{"key": key, "err": err})
		return nil, false, &OperationError{Op: "get", Key: key, Err: err}
	}
	if !found || len(v) == 0 {
		return nil, false, nil
	}
	if cl.near != nil {
		cl.fillNear(ctx, s, sk, v)
	}
	return v, true, nil
}

// fillNear caches a value read from the store for no longer than the key has
// left there. When the remaining TTL cannot be read the near layer is not
// filled.
func (cl *Client) fillNear(ctx context.Context, s store.Store, sk string, v []byte) {
	ttl, ok, err := s.TTL(ctx, sk)
	if err != nil || !ok {
		return
	}
	cl.near.Set(sk, v, cl.nearEntryTTL(ttl))
}

// SetBytes overwrites key. When ttl > 0 the expiry is applied atomically
// with the write.
func (cl *Client) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	if !cl.enabled {
		return nil
	}
	ctx, span := cl.startSpan(ctx, "set", key)
	span.SetAttributes(
		attribute.Int("cache.value_size", len(value)),
		attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
	)
	defer func() { endSpan(span, err) }()

	s, err := cl.conn.Get(ctx)
	if err != nil {
		return err
	}
	sk := keys.Storage(cl.ns, key)
	if err := s.Set(ctx, sk, value, ttl); err != nil {
		if cl.near != nil {
			cl.near.Del(sk)
		}
		cl.log.Error("cache set failed", Fields{"key": key, "err": err})
		return &OperationError{Op: "set", Key: key, Err: err}
	}
	if cl.near != nil {
		cl.near.Set(sk, value, cl.nearEntryTTL(ttl))
	}
	cl.log.Debug("cache set", Fields{"key": key, "ttl": ttl, "size": len(value)})
	return nil
}

// Remove deletes key. Deleting a missing key succeeds.
func (cl *Client) Remove(ctx context.Context, key string) (err error) {
	if !cl.enabled {
		return nil
	}
	ctx, span := cl.startSpan(ctx, "remove", key)
	defer func() { endSpan(span, err) }()

	sk := keys.Storage(cl.ns, key)
	if cl.near != nil {
		cl.near.Del(sk)
	}
	s, err := cl.conn.Get(ctx)
	if err != nil {
		return err
	}
	if err := s.Del(ctx, sk); err != nil {
		cl.log.Error("cache remove failed", Fields{"key": key, "err": err})
		return &OperationError{Op: "del", Key: key, Err: err}
	}
	return nil
}

// RemoveByPattern deletes every key in the namespace matching pattern (Redis
// glob syntax). Keys are enumerated with cursor-based SCAN, never KEYS, and
// deleted one at a time. A failed delete does not stop the walk: failures
// are collected and returned together as a *PatternError, along with the
// number of keys that were deleted. A failed SCAN ends the walk and is
// reported the same way.
func (cl *Client) RemoveByPattern(ctx context.Context, pattern string) (deleted int, err error) {
	if !cl.enabled {
		return 0, nil
	}
	ctx, span := cl.startSpan(ctx, "remove_by_pattern", "")
	span.SetAttributes(attribute.String("cache.pattern", pattern))
	defer func() {
		span.SetAttributes(attribute.Int("cache.deleted", deleted))
		endSpan(span, err)
	}()

	if cl.near != nil {
		// no way to match a glob against the near layer
		defer cl.near.Clear()
	}

	s, err := cl.conn.Get(ctx)
	if err != nil {
		return 0, err
	}

	match := keys.Pattern(cl.ns, pattern)
	pe := &PatternError{Pattern: pattern}
	// SCAN may return a key more than once
	seen := make(map[string]struct{})
	scanErr := s.Scan(ctx, match, cl.scanCount, func(page []string) error {
		for _, sk := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, dup := seen[sk]; dup {
				continue
			}
			seen[sk] = struct{}{}
			pe.Matched++
			if err := s.Del(ctx, sk); err != nil {
				pe.Errs = append(pe.Errs, &OperationError{Op: "del", Key: strings.TrimPrefix(sk, cl.ns), Err: err})
				continue
			}
			pe.Deleted++
		}
		return nil
	})
	switch {
	case scanErr != nil && ctx.Err() != nil:
		// cancelled by the caller, not a store failure
		pe.Errs = append(pe.Errs, ctx.Err())
	case scanErr != nil:
		pe.Errs = append(pe.Errs, &OperationError{Op: "scan", Key: match, Err: scanErr})
	}

	cl.hooks.PatternRemoved(pattern, pe.Matched, pe.Deleted, pe.Matched-pe.Deleted)
	f := Fields{"pattern": pattern, "matched": pe.Matched, "deleted": pe.Deleted}
	if len(pe.Errs) > 0 {
		f["errors"] = len(pe.Errs)
		cl.log.Warn("cache remove by pattern incomplete", f)
		return pe.Deleted, pe
	}
	cl.log.Debug("cache remove by pattern", f)
	return pe.Deleted, nil
}

// Touch resets the expiry of an existing key. ttl <= 0 removes the expiry.
func (cl *Client) Touch(ctx context.Context, key string, ttl time.Duration) (ok bool, err error) {
	if !cl.enabled {
		return false, nil
	}
	ctx, span := cl.startSpan(ctx, "touch", key)
	defer func() { endSpan(span, err) }()

	s, err := cl.conn.Get(ctx)
	if err != nil {
		return false, err
	}
	sk := keys.Storage(cl.ns, key)
	ok, err = s.Expire(ctx, sk, ttl)
	if err != nil {
		return false, &OperationError{Op: "expire", Key: key, Err: err}
	}
	if cl.near != nil {
		// the near copy may now outlive or undercut the new expiry
		cl.near.Del(sk)
	}
	return ok, nil
}

// TTL reports the remaining lifetime of key. ok is false if the key is
// absent; a key without expiry reports (0, true, nil).
func (cl *Client) TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error) {
	if !cl.enabled {
		return 0, false, nil
	}
	ctx, span := cl.startSpan(ctx, "ttl", key)
	defer func() { endSpan(span, err) }()

	s, err := cl.conn.Get(ctx)
	if err != nil {
		return 0, false, err
	}
	ttl, ok, err = s.TTL(ctx, keys.Storage(cl.ns, key))
	if err != nil {
		return 0, false, &OperationError{Op: "ttl", Key: key, Err: err}
	}
	return ttl, ok, nil
}

// Ping connects if needed and checks the handle.
func (cl *Client) Ping(ctx context.Context) (err error) {
	ctx, span := cl.startSpan(ctx, "ping", "")
	defer func() { endSpan(span, err) }()

	s, err := cl.conn.Get(ctx)
	if err != nil {
		return err
	}
	if err := s.Ping(ctx); err != nil {
		return &OperationError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the near cache and, unless it was shared through
// Options.Conn, the connection manager.
func (cl *Client) Close(ctx context.Context) error {
	var errs []error
	if cl.near != nil {
		errs = append(errs, cl.near.Close())
	}
	if cl.ownsConn {
		errs = append(errs, cl.conn.Close(ctx))
	}
	return errors.Join(errs...)
}

func (cl *Client) nearEntryTTL(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < cl.nearTTL {
		return ttl
	}
	return cl.nearTTL
}

func (cl *Client) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.backend", "redis"),
		attribute.String("cache.op", op),
		attribute.String("cache.namespace", cl.ns),
	}
	if key != "" {
		attrs = append(attrs, attribute.String("cache.key", key))
	}
	return cl.tracer.Start(ctx, "nscache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type typed[V any] struct {
	cl    *Client
	codec c.Codec[V]
}

func (t *typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, ok, err := t.cl.GetBytes(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := t.codec.Decode(raw)
	if err != nil {
		t.cl.hooks.DecodeFailed(keys.Storage(t.cl.ns, key), err)
		t.cl.log.Warn("cache value decode failed", Fields{"key": key, "err": err})
		return zero, false, &SerializationError{Op: "decode", Key: key, Err: err}
	}
	return v, true, nil
}

func (t *typed[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	raw, err := t.codec.Encode(value)
	if err != nil {
		return &SerializationError{Op: "encode", Key: key, Err: err}
	}
	return t.cl.SetBytes(ctx, key, raw, ttl)
}

func (t *typed[V]) Remove(ctx context.Context, key string) error {
	return t.cl.Remove(ctx, key)
}

func (t *typed[V]) RemoveByPattern(ctx context.Context, pattern string) (int, error) {
	return t.cl.RemoveByPattern(ctx, pattern)
}

func (t *typed[V]) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return t.cl.Touch(ctx, key, ttl)
}
