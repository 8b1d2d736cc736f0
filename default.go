package cachegate

import (
	"context"
	"sync/atomic"

	c "github.com/unkn0wn-root/cachegate/codec"
	"github.com/unkn0wn-root/cachegate/config"
)

var std atomic.Pointer[Cache[any]]

// Default returns the process-wide cache installed by SetDefault or
// InitDefault, or nil.
func Default() *Cache[any] { return std.Load() }

// SetDefault installs cc as the process-wide cache and returns the previous
// one. The previous cache is not stopped.
func SetDefault(cc *Cache[any]) *Cache[any] { return std.Swap(cc) }

// InitDefault opens a JSON-encoded cache for cfg and installs it as the
// process-wide cache. An already installed cache is stopped first.
func InitDefault(ctx context.Context, cfg config.Config, opts ...func(*Options[any])) (*Cache[any], error) {
	o := Options[any]{Config: cfg, Codec: c.JSON[any]{}}
	for _, fn := range opts {
		fn(&o)
	}
	cc, err := Open(ctx, o)
	if err != nil {
		return nil, err
	}
	if prev := std.Swap(cc); prev != nil && prev != cc {
		if err := prev.Stop(ctx); err != nil {
			cc.log.Warn("stopping previous default cache", Fields{"err": err})
		}
	}
	return cc, nil
}
