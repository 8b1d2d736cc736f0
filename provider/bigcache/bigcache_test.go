package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/cachegate/provider"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{LifeWindow: time.Minute, MaxEntriesInWindow: 1024, MaxEntrySize: 256})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestNewRequiresLifeWindow(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestConditionalWrites(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	ok, err := p.Replace(ctx, "k", []byte("r"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Add(ctx, "k", []byte("a"), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Add(ctx, "k", []byte("b"), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Replace(ctx, "k", []byte("c"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := p.GetMulti(ctx, []string{"k", "nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"k": []byte("c")}, got)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	n, err := p.Decr(ctx, "n", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	n, err = p.Incr(ctx, "n", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)

	n, err = p.Decr(ctx, "n", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)

	_, err = p.Set(ctx, "blob", []byte{0xff}, 0)
	require.NoError(t, err)
	_, err = p.Decr(ctx, "blob", 1)
	assert.ErrorIs(t, err, pr.ErrNotNumeric)
}

func TestDeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	require.NoError(t, p.Del(ctx, "absent"))

	_, err := p.Set(ctx, "a", []byte("1"), 0)
	require.NoError(t, err)
	_, err = p.Set(ctx, "b", []byte("2"), 0)
	require.NoError(t, err)

	require.NoError(t, p.Del(ctx, "a"))
	_, hit, err := p.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, p.Flush(ctx))
	_, hit, err = p.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, hit)
}
