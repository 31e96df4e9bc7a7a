// Package sloghooks reports nscache events to a log/slog logger.
package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/nscache"
)

type Options struct {
	// Sampling to avoid floods while the store is flapping; 0/1 = log all.
	AttemptEvery uint64
	DecodeEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	attemptCtr atomic.Uint64
	decodeCtr  atomic.Uint64
}

var _ nscache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ConnectAttemptFailed(attempt int, delay time.Duration, err error) {
	if h.l == nil || !sample(h.opts.AttemptEvery, &h.attemptCtr) {
		return
	}
	h.l.Warn("nscache.connect_attempt_failed",
		"attempt", attempt,
		"retry_in", delay,
		"err", err)
}

func (h *Hooks) Connected(attempts int, elapsed time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("nscache.connected",
		"attempts", attempts,
		"elapsed", elapsed)
}

func (h *Hooks) ConnectFailed(attempts int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("nscache.connect_failed",
		"attempts", attempts,
		"err", err)
}

func (h *Hooks) DecodeFailed(storageKey string, err error) {
	if h.l == nil || !sample(h.opts.DecodeEvery, &h.decodeCtr) {
		return
	}
	h.l.Warn("nscache.decode_failed",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) PatternRemoved(pattern string, matched, deleted, failed int) {
	if h.l == nil {
		return
	}
	lvl := slog.LevelDebug
	if failed > 0 {
		lvl = slog.LevelWarn
	}
	h.l.Log(context.Background(), lvl, "nscache.pattern_removed",
		"pattern", pattern,
		"matched", matched,
		"deleted", deleted,
		"failed", failed)
}
