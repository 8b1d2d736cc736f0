package cachegate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	c "github.com/unkn0wn-root/cachegate/codec"
	"github.com/unkn0wn-root/cachegate/config"
	"github.com/unkn0wn-root/cachegate/duration"
)

// Cache is the typed facade over one backend connection. Values are encoded
// with the Codec before dispatch; the Gateway underneath only sees bytes.
//
// The zero Cache is not usable; build one with New or Open.
type Cache[V any] struct {
	cfg   config.Config
	codec c.Codec[V]
	log   Logger
	hooks Hooks
	dial  Dialer

	life sync.Mutex // serializes Init, Reinit and Stop

	mu    sync.RWMutex // guards the fields below
	state State
	gen   uint64
	gw    *Gateway
}

// Lifecycle

// Init validates the configuration, dials the backend and makes the cache
// Ready. It is a no-op on a Ready cache and reopens a Stopped one. On error
// the state is left unchanged; there is no fallback backend.
func (cc *Cache[V]) Init(ctx context.Context) error {
	cc.life.Lock()
	defer cc.life.Unlock()
	return cc.init(ctx)
}

func (cc *Cache[V]) init(ctx context.Context) error {
	cc.mu.RLock()
	st := cc.state
	cc.mu.RUnlock()
	if st == Ready {
		return nil
	}

	gw, err := cc.connect(ctx)
	if err != nil {
		cc.log.Error("cache init failed", Fields{"type": cc.cfg.Type, "err": err})
		return err
	}

	cc.mu.Lock()
	cc.gw = gw
	cc.gen++
	gen := cc.gen
	cc.state = Ready
	cc.mu.Unlock()

	cc.log.Info("cache initialized", Fields{"type": cc.cfg.Type, "hosts": cc.cfg.Hosts, "generation": gen})
	cc.hooks.Reinitialized(gen)
	return nil
}

// Reinit replaces the backend connection. A fresh provider and gateway are
// built first; only once they are up does the swap happen, after which the
// previous gateway is drained and closed. Operations racing the swap either
// finish on the old gateway or are retried once on the new one.
//
// If dialing fails the current connection stays in service and the error is
// returned. On an Uninitialized or Stopped cache Reinit behaves like Init.
func (cc *Cache[V]) Reinit(ctx context.Context) error {
	cc.life.Lock()
	defer cc.life.Unlock()

	cc.mu.Lock()
	prev := cc.state
	if prev != Ready {
		cc.mu.Unlock()
		return cc.init(ctx)
	}
	cc.state = Reinitializing
	cc.mu.Unlock()

	gw, err := cc.connect(ctx)
	if err != nil {
		cc.mu.Lock()
		cc.state = prev
		cc.mu.Unlock()
		cc.log.Error("cache reinit failed, keeping current connection", Fields{"type": cc.cfg.Type, "err": err})
		return err
	}

	cc.mu.Lock()
	old := cc.gw
	cc.gw = gw
	cc.gen++
	gen := cc.gen
	cc.state = Ready
	cc.mu.Unlock()

	cc.log.Info("cache reinitialized", Fields{"type": cc.cfg.Type, "generation": gen})
	cc.hooks.Reinitialized(gen)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), old.Timeout())
	defer cancel()
	if err := old.Close(cctx); err != nil {
		cc.log.Warn("closing previous connection", Fields{"generation": gen - 1, "err": err})
	}
	return nil
}

// Stop drains and closes the connection. Every operation afterwards fails
// with ErrStopped until Init or Reinit is called again.
func (cc *Cache[V]) Stop(ctx context.Context) error {
	cc.life.Lock()
	defer cc.life.Unlock()

	cc.mu.Lock()
	gw := cc.gw
	cc.gw = nil
	cc.state = Stopped
	cc.mu.Unlock()

	var err error
	if gw != nil {
		err = gw.Close(ctx)
	}
	cc.log.Info("cache stopped", Fields{"type": cc.cfg.Type})
	cc.hooks.Stopped()
	return err
}

func (cc *Cache[V]) State() State {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.state
}

// Generation counts successful Init/Reinit calls; 0 means never connected.
func (cc *Cache[V]) Generation() uint64 {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.gen
}

// Stats reports the counters of the current gateway, zero when there is none.
func (cc *Cache[V]) Stats() GatewayStats {
	cc.mu.RLock()
	gw := cc.gw
	cc.mu.RUnlock()
	if gw == nil {
		return GatewayStats{}
	}
	return gw.Stats()
}

// Writes. The plain forms expire after duration.Default; the For forms take
// an expiration string such as "1d12h" or "30mn".

func (cc *Cache[V]) Add(ctx context.Context, key string, v V) error {
	return cc.fireWrite(ctx, OpAdd, key, v, duration.Default)
}

func (cc *Cache[V]) AddFor(ctx context.Context, key string, v V, exp string) error {
	secs, err := parseExp(OpAdd, key, exp)
	if err != nil {
		return err
	}
	return cc.fireWrite(ctx, OpAdd, key, v, secs)
}

// SafeAdd reports whether v was stored; false means key already existed.
func (cc *Cache[V]) SafeAdd(ctx context.Context, key string, v V) (bool, error) {
	return cc.safeWrite(ctx, OpAdd, key, v, duration.Default)
}

func (cc *Cache[V]) SafeAddFor(ctx context.Context, key string, v V, exp string) (bool, error) {
	secs, err := parseExp(OpAdd, key, exp)
	if err != nil {
		return false, err
	}
	return cc.safeWrite(ctx, OpAdd, key, v, secs)
}

func (cc *Cache[V]) Set(ctx context.Context, key string, v V) error {
	return cc.fireWrite(ctx, OpSet, key, v, duration.Default)
}

func (cc *Cache[V]) SetFor(ctx context.Context, key string, v V, exp string) error {
	secs, err := parseExp(OpSet, key, exp)
	if err != nil {
		return err
	}
	return cc.fireWrite(ctx, OpSet, key, v, secs)
}

func (cc *Cache[V]) SafeSet(ctx context.Context, key string, v V) (bool, error) {
	return cc.safeWrite(ctx, OpSet, key, v, duration.Default)
}

func (cc *Cache[V]) SafeSetFor(ctx context.Context, key string, v V, exp string) (bool, error) {
	secs, err := parseExp(OpSet, key, exp)
	if err != nil {
		return false, err
	}
	return cc.safeWrite(ctx, OpSet, key, v, secs)
}

func (cc *Cache[V]) Replace(ctx context.Context, key string, v V) error {
	return cc.fireWrite(ctx, OpReplace, key, v, duration.Default)
}

func (cc *Cache[V]) ReplaceFor(ctx context.Context, key string, v V, exp string) error {
	secs, err := parseExp(OpReplace, key, exp)
	if err != nil {
		return err
	}
	return cc.fireWrite(ctx, OpReplace, key, v, secs)
}

// SafeReplace reports whether v was stored; false means key was absent.
func (cc *Cache[V]) SafeReplace(ctx context.Context, key string, v V) (bool, error) {
	return cc.safeWrite(ctx, OpReplace, key, v, duration.Default)
}

func (cc *Cache[V]) SafeReplaceFor(ctx context.Context, key string, v V, exp string) (bool, error) {
	secs, err := parseExp(OpReplace, key, exp)
	if err != nil {
		return false, err
	}
	return cc.safeWrite(ctx, OpReplace, key, v, secs)
}

// Counters

func (cc *Cache[V]) Incr(ctx context.Context, key string) (uint64, error) {
	return cc.IncrBy(ctx, key, 1)
}

// IncrBy adds by to the counter at key and returns the new value. A missing
// counter is created at 0 and 0 is returned.
func (cc *Cache[V]) IncrBy(ctx context.Context, key string, by uint64) (uint64, error) {
	return call(ctx, cc, OpIncr, key, func(gw *Gateway) (uint64, error) {
		return gw.Incr(ctx, key, by)
	})
}

func (cc *Cache[V]) Decr(ctx context.Context, key string) (uint64, error) {
	return cc.DecrBy(ctx, key, 1)
}

// DecrBy subtracts by from the counter at key, never going below 0.
func (cc *Cache[V]) DecrBy(ctx context.Context, key string, by uint64) (uint64, error) {
	return call(ctx, cc, OpDecr, key, func(gw *Gateway) (uint64, error) {
		return gw.Decr(ctx, key, by)
	})
}

// Reads

func (cc *Cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	h, err := call(ctx, cc, OpGet, key, func(gw *Gateway) (lookup, error) {
		b, ok, err := gw.Get(ctx, key)
		return lookup{b, ok}, err
	})
	if err != nil || !h.ok {
		return zero, false, err
	}
	v, err := cc.codec.Decode(h.v)
	if err != nil {
		cc.decodeFailed(key, err)
		return zero, false, opErr(OpGet, key, nil, err)
	}
	return v, true, nil
}

// GetMulti returns the values present for keys. Absent keys, and entries
// the codec cannot decode, are left out of the result.
func (cc *Cache[V]) GetMulti(ctx context.Context, keys []string) (map[string]V, error) {
	raw, err := call(ctx, cc, OpGetMulti, "", func(gw *Gateway) (map[string][]byte, error) {
		return gw.GetMulti(ctx, keys)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]V, len(raw))
	for k, b := range raw {
		v, err := cc.codec.Decode(b)
		if err != nil {
			cc.decodeFailed(k, err)
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Removal

func (cc *Cache[V]) Delete(ctx context.Context, key string) error {
	_, err := call(ctx, cc, OpDelete, key, func(gw *Gateway) (struct{}, error) {
		return struct{}{}, gw.Delete(key)
	})
	return err
}

func (cc *Cache[V]) SafeDelete(ctx context.Context, key string) error {
	_, err := call(ctx, cc, OpDelete, key, func(gw *Gateway) (struct{}, error) {
		return struct{}{}, gw.SafeDelete(ctx, key)
	})
	return err
}

// Clear removes every entry on the backend, not only those written through
// this Cache.
func (cc *Cache[V]) Clear(ctx context.Context) error {
	_, err := call(ctx, cc, OpClear, "", func(gw *Gateway) (struct{}, error) {
		return struct{}{}, gw.Clear()
	})
	return err
}

func (cc *Cache[V]) SafeClear(ctx context.Context) error {
	_, err := call(ctx, cc, OpClear, "", func(gw *Gateway) (struct{}, error) {
		return struct{}{}, gw.SafeClear(ctx)
	})
	return err
}

// internals

func (cc *Cache[V]) connect(ctx context.Context) (*Gateway, error) {
	cfg := cc.cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := cc.dial(ctx, cfg)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %v: %w", ErrBackendUnavailable, cfg.Type, cfg.Hosts, err)
	}
	gw, err := NewGateway(p, GatewayOptions{
		Timeout: cfg.Timeout,
		Workers: cfg.Workers,
		Logger:  cc.log,
		Hooks:   cc.hooks,
	})
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	return gw, nil
}

// current returns the gateway to dispatch on, initializing lazily the first
// time it is needed.
func (cc *Cache[V]) current(ctx context.Context) (*Gateway, uint64, error) {
	for {
		cc.mu.RLock()
		st, gw, gen := cc.state, cc.gw, cc.gen
		cc.mu.RUnlock()

		switch st {
		case Ready, Reinitializing:
			return gw, gen, nil
		case Stopped:
			return nil, gen, ErrStopped
		}
		if err := cc.lazyInit(ctx); err != nil {
			return nil, 0, err
		}
	}
}

func (cc *Cache[V]) lazyInit(ctx context.Context) error {
	cc.life.Lock()
	defer cc.life.Unlock()
	cc.mu.RLock()
	st := cc.state
	cc.mu.RUnlock()
	if st != Uninitialized {
		return nil
	}
	return cc.init(ctx)
}

// call runs fn on the current gateway. A gateway retired by a concurrent
// Reinit answers ErrStopped; in that case fn is retried once on its
// replacement.
func call[V, T any](ctx context.Context, cc *Cache[V], op Op, key string, fn func(*Gateway) (T, error)) (T, error) {
	var zero T
	gw, gen, err := cc.current(ctx)
	if err != nil {
		if errors.Is(err, ErrStopped) {
			return zero, opErr(op, key, ErrStopped, nil)
		}
		return zero, err
	}
	v, err := fn(gw)
	if err != nil && errors.Is(err, ErrStopped) {
		if next, ngen, cerr := cc.current(ctx); cerr == nil && ngen != gen {
			return fn(next)
		}
	}
	return v, err
}

func (cc *Cache[V]) encode(op Op, key string, v V) ([]byte, error) {
	b, err := cc.codec.Encode(v)
	if err != nil {
		return nil, opErr(op, key, ErrNotSerializable, err)
	}
	return b, nil
}

func (cc *Cache[V]) fireWrite(ctx context.Context, op Op, key string, v V, exp int) error {
	b, err := cc.encode(op, key, v)
	if err != nil {
		return err
	}
	_, err = call(ctx, cc, op, key, func(gw *Gateway) (struct{}, error) {
		return struct{}{}, gw.fireWrite(op, key, b, exp)
	})
	return err
}

func (cc *Cache[V]) safeWrite(ctx context.Context, op Op, key string, v V, exp int) (bool, error) {
	b, err := cc.encode(op, key, v)
	if err != nil {
		return false, err
	}
	return call(ctx, cc, op, key, func(gw *Gateway) (bool, error) {
		return gw.safeWrite(ctx, op, key, b, exp)
	})
}

func (cc *Cache[V]) decodeFailed(key string, err error) {
	cc.log.Warn("cached value could not be decoded", Fields{"key": key, "err": err})
	cc.hooks.DecodeFailed(key, err)
}

func parseExp(op Op, key, exp string) (int, error) {
	secs, err := duration.Parse(exp)
	if err != nil {
		return 0, opErr(op, key, nil, err)
	}
	return secs, nil
}
