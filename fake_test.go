package cachegate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/cachegate/codec"
	"github.com/unkn0wn-root/cachegate/config"
	"github.com/unkn0wn-root/cachegate/internal/wire"
	pr "github.com/unkn0wn-root/cachegate/provider"
)

// memStore is shared between providers so data survives a Reinit.
type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore { return &memStore{m: make(map[string][]byte)} }

// memProvider is an in-memory Provider with knobs for latency and failures.
// The knobs must be set before the provider is handed to a gateway.
type memProvider struct {
	s *memStore

	delay time.Duration
	hang  bool  // block until ctx is done
	fail  error // returned by every call

	calls     atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64
	cancelled atomic.Int64
	closed    atomic.Bool
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{s: newMemStore()} }

func (p *memProvider) enter(ctx context.Context) (func(), error) {
	p.calls.Add(1)
	n := p.active.Add(1)
	for {
		m := p.maxActive.Load()
		if n <= m || p.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	done := func() { p.active.Add(-1) }
	if p.closed.Load() {
		return done, pr.ErrClosed
	}
	if p.fail != nil {
		return done, p.fail
	}
	if p.hang {
		<-ctx.Done()
		p.cancelled.Add(1)
		return done, ctx.Err()
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			p.cancelled.Add(1)
			return done, ctx.Err()
		}
	}
	return done, nil
}

func (p *memProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	done, err := p.enter(ctx)
	defer done()
	if err != nil {
		return nil, false, err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	v, ok := p.s.m[key]
	return v, ok, nil
}

func (p *memProvider) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	done, err := p.enter(ctx)
	defer done()
	if err != nil {
		return nil, err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := p.s.m[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (p *memProvider) store(ctx context.Context, key string, value []byte, cond func(present bool) bool) (bool, error) {
	done, err := p.enter(ctx)
	defer done()
	if err != nil {
		return false, err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	_, present := p.s.m[key]
	if !cond(present) {
		return false, nil
	}
	p.s.m[key] = value
	return true, nil
}

func (p *memProvider) Set(ctx context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	return p.store(ctx, key, value, func(bool) bool { return true })
}

func (p *memProvider) Add(ctx context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	return p.store(ctx, key, value, func(present bool) bool { return !present })
}

func (p *memProvider) Replace(ctx context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	return p.store(ctx, key, value, func(present bool) bool { return present })
}

func (p *memProvider) counter(ctx context.Context, key string, delta uint64, apply func(cur, delta uint64) uint64) (uint64, error) {
	done, err := p.enter(ctx)
	defer done()
	if err != nil {
		return 0, err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	raw, ok := p.s.m[key]
	if !ok {
		p.s.m[key] = wire.EncodeCounter(0)
		return 0, nil
	}
	cur, err := wire.DecodeCounter(raw)
	if err != nil {
		return 0, pr.ErrNotNumeric
	}
	n := apply(cur, delta)
	p.s.m[key] = wire.EncodeCounter(n)
	return n, nil
}

func (p *memProvider) Incr(ctx context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, key, delta, wire.AddCounter)
}

func (p *memProvider) Decr(ctx context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, key, delta, wire.SubCounter)
}

func (p *memProvider) Del(ctx context.Context, key string) error {
	done, err := p.enter(ctx)
	defer done()
	if err != nil {
		return err
	}
	p.s.mu.Lock()
	delete(p.s.m, key)
	p.s.mu.Unlock()
	return nil
}

func (p *memProvider) Flush(ctx context.Context) error {
	done, err := p.enter(ctx)
	defer done()
	if err != nil {
		return err
	}
	p.s.mu.Lock()
	p.s.m = make(map[string][]byte)
	p.s.mu.Unlock()
	return nil
}

func (p *memProvider) Close(context.Context) error {
	p.closed.Store(true)
	return nil
}

func (p *memProvider) raw(key string) ([]byte, bool) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	v, ok := p.s.m[key]
	return v, ok
}

// recLogger keeps every entry for inspection.
type recLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	f     Fields
}

func (l *recLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level, msg, f})
	l.mu.Unlock()
}

func (l *recLogger) Debug(msg string, f Fields) { l.add("debug", msg, f) }
func (l *recLogger) Info(msg string, f Fields)  { l.add("info", msg, f) }
func (l *recLogger) Warn(msg string, f Fields)  { l.add("warn", msg, f) }
func (l *recLogger) Error(msg string, f Fields) { l.add("error", msg, f) }

func (l *recLogger) find(level, substr string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && strings.Contains(e.msg, substr) {
			return e, true
		}
	}
	return logEntry{}, false
}

// recHooks forwards the interesting events to channels.
type recHooks struct {
	NopHooks
	fireFailed   chan error
	decodeFailed chan string
	generations  chan uint64
}

func newRecHooks() *recHooks {
	return &recHooks{
		fireFailed:   make(chan error, 64),
		decodeFailed: make(chan string, 64),
		generations:  make(chan uint64, 64),
	}
}

func (h *recHooks) FireFailed(_ Op, _ string, err error) { h.fireFailed <- err }
func (h *recHooks) DecodeFailed(key string, _ error)     { h.decodeFailed <- key }
func (h *recHooks) Reinitialized(gen uint64)             { h.generations <- gen }

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func testConfig(timeout time.Duration) config.Config {
	return config.Config{
		Type:    config.TypeMemcached,
		Hosts:   []string{"127.0.0.1:11211"},
		Timeout: timeout,
	}
}

func fixedDialer(p pr.Provider) Dialer {
	return func(context.Context, config.Config) (pr.Provider, error) { return p, nil }
}

func newTestCache[V any](t *testing.T, codec c.Codec[V], mp *memProvider, mut func(*Options[V])) *Cache[V] {
	t.Helper()
	opts := Options[V]{
		Config: testConfig(time.Second),
		Codec:  codec,
		Dialer: fixedDialer(mp),
	}
	if mut != nil {
		mut(&opts)
	}
	cc, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = cc.Stop(context.Background()) })
	return cc
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
