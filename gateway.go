package cachegate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/unkn0wn-root/cachegate/duration"
	"github.com/unkn0wn-root/cachegate/internal/wire"
	pr "github.com/unkn0wn-root/cachegate/provider"
)

// GatewayOptions tune a Gateway. Zero values take the defaults.
type GatewayOptions struct {
	Timeout time.Duration // safe-mode wait and fire-mode execution bound; 0 => 1s
	Workers int           // concurrently executing operations; 0 => 64
	Logger  Logger        // nil => NopLogger
	Hooks   Hooks         // nil => NopHooks
}

// GatewayStats is a point-in-time snapshot of the gateway counters.
type GatewayStats struct {
	Dispatched int64 // operations handed to a worker
	Failed     int64 // operations that ended with a backend error
	TimedOut   int64 // safe operations that hit the timeout
	InFlight   int64 // operations dispatched and not yet finished
}

// Gateway dispatches byte-level operations to a Provider on background
// goroutines. Fire operations return as soon as the work is queued; safe
// operations wait for the result, at most Timeout, and cancel the request
// when the wait is abandoned.
//
// A Gateway serves one provider connection for its whole life. Close drains
// in-flight work and closes the provider; replacing the connection means
// building a new Gateway.
type Gateway struct {
	p       pr.Provider
	timeout time.Duration
	sem     *semaphore.Weighted
	log     Logger
	hooks   Hooks

	// base parents every fire-mode context; Close cancels it once draining
	// is over (or abandoned).
	base context.Context
	stop context.CancelFunc

	mu     sync.RWMutex // admission; held for write only by Close
	closed bool
	wg     sync.WaitGroup

	dispatched atomic.Int64
	failed     atomic.Int64
	timedOut   atomic.Int64
	inFlight   atomic.Int64
}

const defaultWorkers = 64

func NewGateway(p pr.Provider, opts GatewayOptions) (*Gateway, error) {
	if p == nil {
		return nil, errors.New("cachegate: provider is required")
	}
	if opts.Timeout < 0 || opts.Workers < 0 {
		return nil, fmt.Errorf("%w: negative timeout or worker count", ErrConfiguration)
	}
	base, stop := context.WithCancel(context.Background())
	g := &Gateway{
		p:       p,
		timeout: coalesce[time.Duration](opts.Timeout, time.Second),
		sem:     semaphore.NewWeighted(int64(coalesce(opts.Workers, defaultWorkers))),
		log:     coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:   coalesce[Hooks](opts.Hooks, NopHooks{}),
		base:    base,
		stop:    stop,
	}
	return g, nil
}

// Timeout reports the configured safe-mode wait.
func (g *Gateway) Timeout() time.Duration { return g.timeout }

func (g *Gateway) Stats() GatewayStats {
	return GatewayStats{
		Dispatched: g.dispatched.Load(),
		Failed:     g.failed.Load(),
		TimedOut:   g.timedOut.Load(),
		InFlight:   g.inFlight.Load(),
	}
}

// Fire-and-forget

// Add stores value under key if the key is absent. exp is in seconds; 0
// means no expiry. Only ErrStopped and ErrInvalidKey are returned; backend
// failures are logged and reported to Hooks.FireFailed.
func (g *Gateway) Add(key string, value []byte, exp int) error {
	return g.fireWrite(OpAdd, key, value, exp)
}

func (g *Gateway) Set(key string, value []byte, exp int) error {
	return g.fireWrite(OpSet, key, value, exp)
}

func (g *Gateway) Replace(key string, value []byte, exp int) error {
	return g.fireWrite(OpReplace, key, value, exp)
}

func (g *Gateway) Delete(key string) error {
	if err := checkKey(OpDelete, key); err != nil {
		return err
	}
	return g.fire(OpDelete, key, func(ctx context.Context) error {
		return g.p.Del(ctx, key)
	})
}

func (g *Gateway) Clear() error {
	return g.fire(OpClear, "", g.p.Flush)
}

// Safe

// SafeAdd reports whether value was stored; false means the key existed.
func (g *Gateway) SafeAdd(ctx context.Context, key string, value []byte, exp int) (bool, error) {
	return g.safeWrite(ctx, OpAdd, key, value, exp)
}

// SafeSet reports false only when a local store dropped the write.
func (g *Gateway) SafeSet(ctx context.Context, key string, value []byte, exp int) (bool, error) {
	return g.safeWrite(ctx, OpSet, key, value, exp)
}

// SafeReplace reports whether value was stored; false means the key was absent.
func (g *Gateway) SafeReplace(ctx context.Context, key string, value []byte, exp int) (bool, error) {
	return g.safeWrite(ctx, OpReplace, key, value, exp)
}

func (g *Gateway) SafeDelete(ctx context.Context, key string) error {
	if err := checkKey(OpDelete, key); err != nil {
		return err
	}
	_, err := await(ctx, g, OpDelete, key, func(c context.Context) (struct{}, error) {
		return struct{}{}, g.p.Del(c, key)
	})
	return err
}

func (g *Gateway) SafeClear(ctx context.Context) error {
	_, err := await(ctx, g, OpClear, "", func(c context.Context) (struct{}, error) {
		return struct{}{}, g.p.Flush(c)
	})
	return err
}

// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
func (g *Gateway) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := checkKey(OpGet, key); err != nil {
		return nil, false, err
	}
	r, err := await(ctx, g, OpGet, key, func(c context.Context) (lookup, error) {
		v, ok, err := g.p.Get(c, key)
		return lookup{v, ok}, err
	})
	return r.v, r.ok, err
}

// GetMulti returns the present keys only.
func (g *Gateway) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	for _, k := range keys {
		if err := checkKey(OpGetMulti, k); err != nil {
			return nil, err
		}
	}
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	return await(ctx, g, OpGetMulti, "", func(c context.Context) (map[string][]byte, error) {
		return g.p.GetMulti(c, keys)
	})
}

// Incr adds delta to the counter at key. A missing counter starts at 0 and
// 0 is returned.
func (g *Gateway) Incr(ctx context.Context, key string, delta uint64) (uint64, error) {
	if err := checkKey(OpIncr, key); err != nil {
		return 0, err
	}
	return await(ctx, g, OpIncr, key, func(c context.Context) (uint64, error) {
		return g.p.Incr(c, key, delta)
	})
}

// Decr subtracts delta from the counter at key, flooring at 0.
func (g *Gateway) Decr(ctx context.Context, key string, delta uint64) (uint64, error) {
	if err := checkKey(OpDecr, key); err != nil {
		return 0, err
	}
	return await(ctx, g, OpDecr, key, func(c context.Context) (uint64, error) {
		return g.p.Decr(c, key, delta)
	})
}

// Close stops admission, waits for in-flight operations (bounded by ctx) and
// closes the provider. Operations still running when ctx expires have their
// contexts cancelled. Calling Close again is a no-op.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(drained)
	}()

	var drainErr error
	select {
	case <-drained:
	case <-ctx.Done():
		drainErr = fmt.Errorf("cachegate: drain: %w", ctx.Err())
		g.log.Warn("gateway closed before in-flight operations drained", Fields{"in_flight": g.inFlight.Load()})
	}
	g.stop()

	if err := g.p.Close(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(drainErr, err)
	}
	return drainErr
}

func (g *Gateway) write(ctx context.Context, op Op, key string, value []byte, exp int) (bool, error) {
	ttl := duration.Seconds(exp)
	switch op {
	case OpAdd:
		return g.p.Add(ctx, key, value, ttl)
	case OpReplace:
		return g.p.Replace(ctx, key, value, ttl)
	default:
		return g.p.Set(ctx, key, value, ttl)
	}
}

func (g *Gateway) fireWrite(op Op, key string, value []byte, exp int) error {
	if err := checkKey(op, key); err != nil {
		return err
	}
	return g.fire(op, key, func(ctx context.Context) error {
		ok, err := g.write(ctx, op, key, value, exp)
		if err == nil && !ok {
			g.log.Debug("write not stored", Fields{"op": op, "key": key})
		}
		return err
	})
}

func (g *Gateway) safeWrite(ctx context.Context, op Op, key string, value []byte, exp int) (bool, error) {
	if err := checkKey(op, key); err != nil {
		return false, err
	}
	return await(ctx, g, op, key, func(c context.Context) (bool, error) {
		return g.write(c, op, key, value, exp)
	})
}

// fire queues fn. The worker runs it under its own context bounded by the
// timeout; the caller's context plays no part once fire returns.
func (g *Gateway) fire(op Op, key string, fn func(context.Context) error) error {
	report := func(err error) {
		g.failed.Add(1)
		err = opErr(op, key, kindOf(err), err)
		g.log.Error("fire-and-forget operation failed", Fields{"op": op, "key": key, "err": err})
		g.hooks.FireFailed(op, key, err)
	}
	err := g.spawn(g.base, func() {
		ctx, cancel := context.WithTimeout(g.base, g.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			report(err)
		}
	}, report)
	if err != nil {
		return opErr(op, key, err, nil)
	}
	return nil
}

type lookup struct {
	v  []byte
	ok bool
}

type result[T any] struct {
	v   T
	err error
}

// await dispatches fn and blocks until it reports, the timeout elapses or
// ctx is cancelled. Exactly one of those outcomes is returned; the buffered
// result channel lets a worker that loses the race finish without blocking.
func await[T any](ctx context.Context, g *Gateway, op Op, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	opCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan result[T], 1)
	err := g.spawn(opCtx, func() {
		v, err := fn(opCtx)
		done <- result[T]{v: v, err: err}
	}, nil)
	if err != nil {
		return zero, opErr(op, key, err, nil)
	}

	select {
	case r := <-done:
		if r.err == nil {
			return r.v, nil
		}
		if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, g.timedOutErr(op, key)
		}
		cancel()
		g.failed.Add(1)
		err := opErr(op, key, kindOf(r.err), r.err)
		g.hooks.SafeFailed(op, key, err)
		return zero, err
	case <-opCtx.Done():
		cancel()
		if cerr := ctx.Err(); cerr != nil {
			err := opErr(op, key, nil, cerr)
			g.hooks.SafeFailed(op, key, err)
			return zero, err
		}
		return zero, g.timedOutErr(op, key)
	}
}

func (g *Gateway) timedOutErr(op Op, key string) error {
	g.timedOut.Add(1)
	g.log.Warn("safe operation timed out", Fields{"op": op, "key": key, "timeout": g.timeout})
	g.hooks.SafeTimedOut(op, key)
	return opErr(op, key, ErrTimeout, context.DeadlineExceeded)
}

// spawn admits one operation and runs it on a new goroutine once a worker
// slot is free. dropped, when set, is called if ctx ends before a slot does.
func (g *Gateway) spawn(ctx context.Context, run func(), dropped func(error)) error {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		g.log.Debug("dispatch rejected, gateway closed", nil)
		return ErrStopped
	}
	g.wg.Add(1)
	g.mu.RUnlock()

	g.dispatched.Add(1)
	g.inFlight.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.inFlight.Add(-1)
		if err := g.sem.Acquire(ctx, 1); err != nil {
			if dropped != nil {
				dropped(err)
			}
			return
		}
		defer g.sem.Release(1)
		run()
	}()
	return nil
}

func checkKey(op Op, key string) error {
	if err := wire.ValidateKey(key); err != nil {
		return opErr(op, key, ErrInvalidKey, err)
	}
	return nil
}

// kindOf maps a provider error to the sentinel callers match on.
func kindOf(err error) error {
	if errors.Is(err, pr.ErrUnavailable) || errors.Is(err, pr.ErrClosed) {
		return ErrBackendUnavailable
	}
	return nil
}
