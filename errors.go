package nscache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCache matches every error produced by the cache layer.
	ErrCache = errors.New("nscache: cache error")

	// ErrConnection matches failures to obtain a live store handle.
	ErrConnection = errors.New("nscache: store unreachable")

	// ErrSerialization matches values that could not be encoded or decoded.
	ErrSerialization = errors.New("nscache: serialization failed")

	// ErrOperation matches store requests that failed on an established handle.
	ErrOperation = errors.New("nscache: store operation failed")

	// ErrClosed is wrapped by ConnectionError once the manager is closed.
	ErrClosed = errors.New("nscache: connection manager closed")
)

// ConnectionError reports that no handle could be established.
// Attempts is zero when the caller gave up (cancelled) before the
// initialization finished.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("nscache: store unreachable after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("nscache: store unreachable: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection || target == ErrCache
}

// SerializationError reports a value that could not be converted to or from
// its stored form. On Get it means the cached data is corrupt or was written
// with an incompatible schema.
type SerializationError struct {
	Op  string // "encode" or "decode"
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("nscache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization || target == ErrCache
}

// OperationError reports a store request that failed after a handle was
// obtained. It is surfaced as is; operations are never retried here.
type OperationError struct {
	Op  string
	Key string
	Err error
}

func (e *OperationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("nscache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("nscache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool {
	return target == ErrOperation || target == ErrCache
}

// PatternError aggregates the failures of a RemoveByPattern call.
// Deletion continues past individual failures, so Deleted may be non-zero.
type PatternError struct {
	Pattern string
	Matched int
	Deleted int
	Errs    []error
}

func (e *PatternError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "nscache: remove by pattern %q: %d of %d matched key(s) deleted, %d error(s)",
		e.Pattern, e.Deleted, e.Matched, len(e.Errs))
	if len(e.Errs) > 0 {
		b.WriteString(": ")
		b.WriteString(e.Errs[0].Error())
		if len(e.Errs) > 1 {
			fmt.Fprintf(&b, " (and %d more)", len(e.Errs)-1)
		}
	}
	return b.String()
}

func (e *PatternError) Unwrap() []error { return e.Errs }

func (e *PatternError) Is(target error) bool { return target == ErrCache }

// IsUnavailable reports whether err means the cache could not serve the
// request (store down or request failed), as opposed to bad cached data.
// Callers typically fall back to the authoritative source on true.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrOperation)
}
