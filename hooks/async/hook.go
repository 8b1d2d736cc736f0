// Package asynchook moves hook delivery off the calling goroutine.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    FireFailedEvery: 10, // log ~every 10th background failure
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := cachegate.Open[User](ctx, cachegate.Options[User]{
//	    Config: cfg,
//	    Codec:  codec.JSON[User]{},
//	    Hooks:  hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped, not queued without bound, when the queue is full;
// Dropped reports how many.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cachegate"
)

type Hooks struct {
	inner   cachegate.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Uint64
}

var _ cachegate.Hooks = (*Hooks)(nil)

func New(inner cachegate.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close delivers the queued events and stops the workers. Events arriving
// after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FireFailed(op cachegate.Op, key string, err error) {
	h.try(func() { h.inner.FireFailed(op, key, err) })
}
func (h *Hooks) SafeTimedOut(op cachegate.Op, key string) {
	h.try(func() { h.inner.SafeTimedOut(op, key) })
}
func (h *Hooks) SafeFailed(op cachegate.Op, key string, err error) {
	h.try(func() { h.inner.SafeFailed(op, key, err) })
}
func (h *Hooks) DecodeFailed(key string, err error) { h.try(func() { h.inner.DecodeFailed(key, err) }) }
func (h *Hooks) Reinitialized(gen uint64)           { h.try(func() { h.inner.Reinitialized(gen) }) }
func (h *Hooks) Stopped()                           { h.try(h.inner.Stopped) }
