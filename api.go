package cachegate

import (
	"context"
	"errors"
	"fmt"

	c "github.com/unkn0wn-root/cachegate/codec"
	"github.com/unkn0wn-root/cachegate/config"
)

// Options configure a Cache. Config and Codec are required.
type Options[V any] struct {
	Config config.Config
	Codec  c.Codec[V]

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
	Dialer Dialer // nil => the backend registered for Config.Type
}

// New returns an Uninitialized cache. The backend is dialed by Init, or
// lazily by the first operation.
func New[V any](opts Options[V]) (*Cache[V], error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("%w: codec is required", ErrConfiguration)
	}
	return &Cache[V]{
		cfg:   opts.Config,
		codec: opts.Codec,
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
		dial:  coalesceDialer(opts.Dialer),
	}, nil
}

// Open is New followed by Init.
func Open[V any](ctx context.Context, opts Options[V]) (*Cache[V], error) {
	cc, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := cc.Init(ctx); err != nil {
		return nil, err
	}
	return cc, nil
}

// GetAs reads key from an untyped cache and asserts the value to T.
// A value of another type yields ErrTypeMismatch.
func GetAs[T any](ctx context.Context, cc *Cache[any], key string) (T, bool, error) {
	var zero T
	v, ok, err := cc.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	t, isT := v.(T)
	if !isT {
		return zero, false, opErr(OpGet, key, ErrTypeMismatch, fmt.Errorf("have %T, want %T", v, zero))
	}
	return t, true, nil
}

// IsTimeout reports whether err is a safe-mode timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

func coalesceDialer(d Dialer) Dialer {
	if d == nil {
		return dialBackend
	}
	return d
}
