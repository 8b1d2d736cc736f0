package codec

import (
	"errors"
	"fmt"
)

// MemcachedItemSize is memcached's default maximum item size (-I 1m).
const MemcachedItemSize = 1 << 20

var ErrTooLarge = errors.New("codec: payload too large")

// LimitCodec wraps another codec with size limits on both directions.
//
// MaxEncode rejects values whose encoding would exceed what the backend
// accepts, so the failure surfaces at the call boundary instead of as a
// server error inside a fire-and-forget write. MaxDecode protects against
// oversized payloads coming from a shared cache. A limit <= 0 is disabled.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxEncode int
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("%w: encoded %d > %d", ErrTooLarge, len(b), c.MaxEncode)
	}
	return b, nil
}

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
