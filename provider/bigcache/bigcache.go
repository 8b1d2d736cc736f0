package bigcache

import (
	"context"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/cachegate/internal/wire"
	pr "github.com/unkn0wn-root/cachegate/provider"
)

// Provider is a process-local backend. BigCache has no per-entry TTL: every
// entry lives for the configured LifeWindow and the ttl arguments are
// ignored.
type Provider struct {
	c  *bc.BigCache
	mu sync.Mutex // serializes Add/Replace/Incr/Decr
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: LifeWindow is required")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	return p.get(key)
}

func (p *Provider) get(key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (p *Provider) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		b, ok, err := p.get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = b
		}
	}
	return out, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	return true, p.c.Set(key, value)
}

func (p *Provider) Add(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok, err := p.get(key)
	if err != nil || ok {
		return false, err
	}
	return true, p.c.Set(key, value)
}

func (p *Provider) Replace(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok, err := p.get(key)
	if err != nil || !ok {
		return false, err
	}
	return true, p.c.Set(key, value)
}

func (p *Provider) Incr(_ context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(key, delta, wire.AddCounter)
}

func (p *Provider) Decr(_ context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(key, delta, wire.SubCounter)
}

func (p *Provider) counter(key string, delta uint64, apply func(cur, delta uint64) uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok, err := p.get(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, p.c.Set(key, wire.EncodeCounter(0))
	}
	cur, err := wire.DecodeCounter(b)
	if err != nil {
		return 0, pr.ErrNotNumeric
	}
	n := apply(cur, delta)
	return n, p.c.Set(key, wire.EncodeCounter(n))
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Flush(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.Reset()
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
