// Package memcache adapts github.com/bradfitz/gomemcache to provider.Provider.
//
// gomemcache has no context support: cancellation is bounded by the client's
// socket Timeout, which Dial sets from the gateway timeout. A cancelled ctx is
// still checked before each request is issued.
package memcache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"

	pr "github.com/unkn0wn-root/cachegate/provider"
)

// maxRelative is the largest expiration memcached reads as "seconds from
// now"; larger values are taken as absolute unix timestamps.
const maxRelative = 30 * 24 * time.Hour

type Memcache struct {
	c      *mc.Client
	closed atomic.Bool
}

var _ pr.Provider = (*Memcache)(nil)

type Config struct {
	Addrs        []string
	Timeout      time.Duration // socket read/write timeout; 0 keeps gomemcache's default
	MaxIdleConns int           // 0 keeps gomemcache's default
}

// New builds a client without touching the network.
func New(cfg Config) (*Memcache, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("memcache provider: no servers")
	}
	c := mc.New(cfg.Addrs...)
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	return &Memcache{c: c}, nil
}

// Dial is New followed by a ping of every server.
func Dial(ctx context.Context, cfg Config) (*Memcache, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.c.Ping(); err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func (p *Memcache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := p.ready(ctx); err != nil {
		return nil, false, err
	}
	it, err := p.c.Get(key)
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err)
	}
	return it.Value, true, nil
}

func (p *Memcache) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	if err := p.ready(ctx); err != nil {
		return nil, err
	}
	items, err := p.c.GetMulti(keys)
	if err != nil {
		return nil, classify(err)
	}
	for k, it := range items {
		out[k] = it.Value
	}
	return out, nil
}

func (p *Memcache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := p.ready(ctx); err != nil {
		return false, err
	}
	if err := p.c.Set(item(key, value, ttl)); err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (p *Memcache) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := p.ready(ctx); err != nil {
		return false, err
	}
	return stored(p.c.Add(item(key, value, ttl)))
}

func (p *Memcache) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := p.ready(ctx); err != nil {
		return false, err
	}
	return stored(p.c.Replace(item(key, value, ttl)))
}

func (p *Memcache) Incr(ctx context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, key, delta, p.c.Increment)
}

func (p *Memcache) Decr(ctx context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, key, delta, p.c.Decrement)
}

// counter seeds a missing key with "0" via add. If another client wins the
// add race the operation is retried once against the now-present counter.
func (p *Memcache) counter(ctx context.Context, key string, delta uint64, op func(string, uint64) (uint64, error)) (uint64, error) {
	if err := p.ready(ctx); err != nil {
		return 0, err
	}
	for attempt := 0; ; attempt++ {
		n, err := op(key, delta)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, mc.ErrCacheMiss) {
			return 0, classify(err)
		}
		err = p.c.Add(&mc.Item{Key: key, Value: []byte("0")})
		if err == nil {
			return 0, nil
		}
		if !errors.Is(err, mc.ErrNotStored) || attempt > 0 {
			return 0, classify(err)
		}
	}
}

func (p *Memcache) Del(ctx context.Context, key string) error {
	if err := p.ready(ctx); err != nil {
		return err
	}
	err := p.c.Delete(key)
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil
	}
	return classify(err)
}

func (p *Memcache) Flush(ctx context.Context) error {
	if err := p.ready(ctx); err != nil {
		return err
	}
	return classify(p.c.FlushAll())
}

// Close marks the provider closed. Idle connections are dropped by the
// server's idle timeout; the pinned gomemcache has no Close.
func (p *Memcache) Close(context.Context) error {
	p.closed.Store(true)
	return nil
}

func (p *Memcache) ready(ctx context.Context) error {
	if p.closed.Load() {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, pr.ErrClosed)
	}
	return ctx.Err()
}

func item(key string, value []byte, ttl time.Duration) *mc.Item {
	return &mc.Item{Key: key, Value: value, Expiration: expiration(ttl)}
}

// expiration converts ttl to memcached seconds. Sub-second TTLs round up so
// they do not collapse into 0 ("never"); anything past the relative window
// is clamped to it rather than being misread as a timestamp in 1970.
func expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelative {
		ttl = maxRelative
	}
	secs := int32(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return secs
}

func stored(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mc.ErrNotStored) {
		return false, nil
	}
	return false, classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mc.ErrNoServers) {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	var cte *mc.ConnectTimeoutError
	if errors.As(err, &cte) {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	if strings.Contains(err.Error(), "non-numeric") {
		return fmt.Errorf("%w: %w", pr.ErrNotNumeric, err)
	}
	return err
}
