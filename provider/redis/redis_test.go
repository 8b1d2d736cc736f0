package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/cachegate/provider"
)

func newTestProvider(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	p, err := Dial(context.Background(), DialConfig{Addrs: []string{mr.Addr()}, Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p, mr
}

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestAddSetReplaceSemantics(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	ok, err := p.Replace(ctx, "k", []byte("r"), 0)
	require.NoError(t, err)
	assert.False(t, ok, "replace on absent key must not store")

	ok, err = p.Add(ctx, "k", []byte("v1"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Add(ctx, "k", []byte("v2"), 0)
	require.NoError(t, err)
	assert.False(t, ok, "second add must not store")

	b, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v1", string(b))

	ok, err = p.Replace(ctx, "k", []byte("v3"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Set(ctx, "k", []byte("v4"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	b, _, _ = p.Get(ctx, "k")
	assert.Equal(t, "v4", string(b))
}

func TestSetAppliesTTL(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t)

	_, err := p.Set(ctx, "ttl", []byte("x"), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, mr.TTL("ttl"))

	_, err = p.Set(ctx, "forever", []byte("x"), 0)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), mr.TTL("forever"))

	mr.FastForward(11 * time.Second)
	_, hit, err := p.Get(ctx, "ttl")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetMultiOmitsMissing(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t)
	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("c", "3"))

	got, err := p.GetMulti(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "c": []byte("3")}, got)

	got, err = p.GetMulti(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t)

	n, err := p.Incr(ctx, "c", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n, "missing counter is seeded with 0")

	n, err = p.Incr(ctx, "c", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	n, err = p.Decr(ctx, "c", 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	n, err = p.Decr(ctx, "c", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n, "decr floors at 0")

	v, err := mr.Get("c")
	require.NoError(t, err)
	assert.Equal(t, "0", v)

	n, err = p.Decr(ctx, "fresh", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestCounterOnNonNumeric(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t)
	require.NoError(t, mr.Set("s", "hello"))

	_, err := p.Incr(ctx, "s", 1)
	assert.ErrorIs(t, err, pr.ErrNotNumeric)
}

func TestDelAndFlush(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t)
	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("b", "2"))

	require.NoError(t, p.Del(ctx, "a"))
	require.NoError(t, p.Del(ctx, "a"), "deleting an absent key is not an error")
	assert.False(t, mr.Exists("a"))

	require.NoError(t, p.Flush(ctx))
	assert.False(t, mr.Exists("b"))
}

func TestDialUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Dial(context.Background(), DialConfig{Addrs: []string{addr}, Timeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, pr.ErrUnavailable)
}

func TestClosedClientIsUnavailable(t *testing.T) {
	p, _ := newTestProvider(t)
	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()), "close is idempotent")

	_, _, err := p.Get(context.Background(), "k")
	assert.ErrorIs(t, err, pr.ErrUnavailable)
}

func TestCloseLeavesBorrowedClientOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p, err := New(Config{Client: rdb})
	require.NoError(t, err)
	require.NoError(t, p.Close(context.Background()))

	assert.NoError(t, rdb.Ping(context.Background()).Err())
}

func TestClassifyPassesContextErrors(t *testing.T) {
	assert.Equal(t, context.DeadlineExceeded, classify(context.DeadlineExceeded))
	assert.True(t, errors.Is(classify(goredis.ErrClosed), pr.ErrUnavailable))
	assert.Nil(t, classify(nil))
}
