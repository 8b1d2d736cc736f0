package cachegate

import (
	"context"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/cachegate/config"
	pr "github.com/unkn0wn-root/cachegate/provider"
	bcp "github.com/unkn0wn-root/cachegate/provider/bigcache"
	mcp "github.com/unkn0wn-root/cachegate/provider/memcache"
	rdp "github.com/unkn0wn-root/cachegate/provider/redis"
	rsp "github.com/unkn0wn-root/cachegate/provider/ristretto"
)

// Dialer opens a provider for an already validated Config.
type Dialer func(ctx context.Context, cfg config.Config) (pr.Provider, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Dialer{
		config.TypeRedis:     dialRedis,
		config.TypeMemcached: dialMemcache,
		config.TypeRistretto: dialRistretto,
		config.TypeBigCache:  dialBigCache,
	}
)

// RegisterBackend installs (or replaces) the Dialer used for a backend type.
// Config validation still limits Type to the built-in names.
func RegisterBackend(typ string, d Dialer) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[typ] = d
}

func dialBackend(ctx context.Context, cfg config.Config) (pr.Provider, error) {
	backendsMu.RLock()
	d, ok := backends[cfg.Type]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown cache type %q", ErrConfiguration, cfg.Type)
	}
	return d(ctx, cfg)
}

func dialRedis(ctx context.Context, cfg config.Config) (pr.Provider, error) {
	return provide(rdp.Dial(ctx, rdp.DialConfig{
		Addrs:    cfg.Hosts,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	}))
}

func dialMemcache(ctx context.Context, cfg config.Config) (pr.Provider, error) {
	return provide(mcp.Dial(ctx, mcp.Config{
		Addrs:        cfg.Hosts,
		Timeout:      cfg.Timeout,
		MaxIdleConns: cfg.Workers,
	}))
}

func dialRistretto(_ context.Context, cfg config.Config) (pr.Provider, error) {
	return provide(rsp.New(rsp.DefaultConfig(cfg.Local.MaxItems)))
}

func dialBigCache(_ context.Context, cfg config.Config) (pr.Provider, error) {
	return provide(bcp.New(bcp.Config{LifeWindow: cfg.Local.LifeWindow}))
}

// provide keeps a failed constructor's typed nil out of the interface.
func provide[P pr.Provider](p P, err error) (pr.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
