package prom

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/cachegate"
)

func TestCounters(t *testing.T) {
	h := New("test")

	h.FireFailed(cachegate.OpSet, "k", errors.New("x"))
	h.FireFailed(cachegate.OpSet, "k2", errors.New("x"))
	h.FireFailed(cachegate.OpDelete, "k", errors.New("x"))
	h.SafeTimedOut(cachegate.OpGet, "k")
	h.SafeFailed(cachegate.OpIncr, "k", errors.New("x"))
	h.DecodeFailed("k", errors.New("x"))
	h.Reinitialized(4)
	h.Stopped()

	assert.Equal(t, 2.0, testutil.ToFloat64(h.fireFailed.WithLabelValues("set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.fireFailed.WithLabelValues("delete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.safeTimedOut.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.safeFailed.WithLabelValues("incr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.decodeFailed))
	assert.Equal(t, 4.0, testutil.ToFloat64(h.generation))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.stopped))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := Register(reg, "app")
	require.NoError(t, err)

	h.SafeTimedOut(cachegate.OpGet, "k")
	expected := `
# HELP app_cachegate_safe_timeouts_total Safe operations abandoned at the timeout.
# TYPE app_cachegate_safe_timeouts_total counter
app_cachegate_safe_timeouts_total{op="get"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "app_cachegate_safe_timeouts_total"))

	_, err = Register(reg, "app")
	assert.Error(t, err, "registering twice must fail")
}
