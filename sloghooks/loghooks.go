// Package sloghooks reports cachegate events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/cachegate"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FireFailedEvery   uint64
	SafeTimedOutEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fireFailedCtr atomic.Uint64
	timedOutCtr   atomic.Uint64
}

var _ cachegate.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if k == "" {
		return ""
	}
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

func (h *Hooks) FireFailed(op cachegate.Op, key string, err error) {
	if h.l == nil || !sample(h.opts.FireFailedEvery, &h.fireFailedCtr) {
		return
	}
	h.l.Error("cachegate.fire_failed",
		"op", string(op),
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) SafeTimedOut(op cachegate.Op, key string) {
	if h.l == nil || !sample(h.opts.SafeTimedOutEvery, &h.timedOutCtr) {
		return
	}
	h.l.Warn("cachegate.safe_timed_out",
		"op", string(op),
		"key", h.redact(key))
}

func (h *Hooks) SafeFailed(op cachegate.Op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachegate.safe_failed",
		"op", string(op),
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) DecodeFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachegate.decode_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) Reinitialized(generation uint64) {
	if h.l == nil {
		return
	}
	h.l.Info("cachegate.reinitialized", "generation", generation)
}

func (h *Hooks) Stopped() {
	if h.l == nil {
		return
	}
	h.l.Info("cachegate.stopped")
}
