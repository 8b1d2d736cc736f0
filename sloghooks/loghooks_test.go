package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/cachegate"
)

func newBuffered(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestKeysAreRedacted(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.FireFailed(cachegate.OpSet, "user:42:email", errors.New("refused"))

	out := buf.String()
	assert.Contains(t, out, "cachegate.fire_failed")
	assert.Contains(t, out, "op=set")
	assert.Contains(t, out, "err=refused")
	assert.NotContains(t, out, "user:42:email")
}

func TestCustomRedactor(t *testing.T) {
	h, buf := newBuffered(Options{Redact: strings.ToUpper})
	h.DecodeFailed("abc", errors.New("bad json"))
	assert.Contains(t, buf.String(), "key=ABC")
}

func TestSampling(t *testing.T) {
	h, buf := newBuffered(Options{SafeTimedOutEvery: 5})
	for i := 0; i < 10; i++ {
		h.SafeTimedOut(cachegate.OpGet, "k")
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "cachegate.safe_timed_out"))
}

func TestLifecycleEvents(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.Reinitialized(7)
	h.Stopped()
	out := buf.String()
	assert.Contains(t, out, "generation=7")
	assert.Contains(t, out, "cachegate.stopped")
}

func TestNilLoggerIsSilent(t *testing.T) {
	h := New(nil, Options{})
	assert.NotPanics(t, func() {
		h.FireFailed(cachegate.OpAdd, "k", nil)
		h.SafeFailed(cachegate.OpAdd, "k", nil)
		h.Stopped()
	})
}
