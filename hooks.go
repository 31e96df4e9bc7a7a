package nscache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; wrap slow ones with
// hooks/async.
type Hooks interface {
	// A connect attempt failed; the manager will wait delay before retrying.
	// delay is 0 for the final attempt.
	ConnectAttemptFailed(attempt int, delay time.Duration, err error)

	// A handle was established after the given number of attempts.
	Connected(attempts int, elapsed time.Duration)

	// Initialization gave up after exhausting the retry budget.
	ConnectFailed(attempts int, err error)

	// A stored value could not be decoded into the requested type.
	DecodeFailed(storageKey string, err error)

	// RemoveByPattern finished. failed counts per-key delete errors only;
	// a scan failure or cancellation is reported through the returned error.
	PatternRemoved(pattern string, matched, deleted, failed int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ConnectAttemptFailed(int, time.Duration, error) {}
func (NopHooks) Connected(int, time.Duration)                   {}
func (NopHooks) ConnectFailed(int, error)                       {}
func (NopHooks) DecodeFailed(string, error)                     {}
func (NopHooks) PatternRemoved(string, int, int, int)           {}
