package ristretto

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cachegate/internal/wire"
	pr "github.com/unkn0wn-root/cachegate/provider"
)

// Provider is a process-local backend. Writes are made visible before the
// call returns (Wait after every Set), trading ristretto's write batching for
// read-your-writes, which add/replace/incr need.
//
// Conditional writes (Add, Replace, Incr, Decr) are serialized by mu; plain
// Get/Set are not.
type Provider struct {
	c  *rc.Cache
	mu sync.Mutex
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Every entry costs 1, so MaxCost is an item count.
}

// DefaultConfig sizes the cache for roughly maxItems entries.
func DefaultConfig(maxItems int64) Config {
	if maxItems <= 0 {
		maxItems = 100_000
	}
	return Config{NumCounters: maxItems * 10, MaxCost: maxItems, BufferItems: 64}
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
		// cost is an item count, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	return p.get(key)
}

func (p *Provider) get(key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if b, ok, _ := p.get(k); ok {
			out[k] = b
		}
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return p.set(key, value, ttl), nil
}

func (p *Provider) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok, _ := p.get(key); ok {
		return false, nil
	}
	return p.set(key, value, ttl), nil
}

func (p *Provider) Replace(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok, _ := p.get(key); !ok {
		return false, nil
	}
	return p.set(key, value, ttl), nil
}

func (p *Provider) Incr(_ context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(key, delta, wire.AddCounter)
}

func (p *Provider) Decr(_ context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(key, delta, wire.SubCounter)
}

// counter keeps the entry's remaining TTL across updates.
func (p *Provider) counter(key string, delta uint64, apply func(cur, delta uint64) uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok, _ := p.get(key)
	if !ok {
		p.set(key, wire.EncodeCounter(0), 0)
		return 0, nil
	}
	cur, err := wire.DecodeCounter(b)
	if err != nil {
		return 0, pr.ErrNotNumeric
	}
	ttl, _ := p.c.GetTTL(key)
	n := apply(cur, delta)
	p.set(key, wire.EncodeCounter(n), ttl)
	return n, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Flush(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.c.Clear()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Helper to expose metrics if desired by the application (not part of provider.Provider).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

func (p *Provider) set(key string, value []byte, ttl time.Duration) bool {
	if ttl < 0 {
		ttl = 0
	}
	ok := p.c.SetWithTTL(key, value, 1, ttl)
	p.c.Wait()
	return ok
}
