package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/cachegate/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// incrScript seeds a missing counter with 0 (returning 0) and otherwise
// applies INCRBY, which keeps the key's TTL.
var incrScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('SET', KEYS[1], '0')
	return 0
end
return redis.call('INCRBY', KEYS[1], ARGV[1])
`)

// decrScript is incrScript's mirror with memcached's floor at 0. The TTL is
// carried over by hand when the floor rewrites the value.
var decrScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('SET', KEYS[1], '0')
	return 0
end
local n = redis.call('DECRBY', KEYS[1], ARGV[1])
if n < 0 then
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl > 0 then
		redis.call('SET', KEYS[1], '0', 'PX', ttl)
	else
		redis.call('SET', KEYS[1], '0')
	end
	return 0
end
return n
`)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// DialConfig describes a connection this package creates and owns.
type DialConfig struct {
	Addrs    []string
	Username string
	Password string
	// Timeout bounds dial/read/write on every connection; 0 keeps go-redis defaults.
	Timeout time.Duration
}

// Dial connects to one node (len(Addrs)==1) or a cluster and verifies the
// connection with PING before returning.
func Dial(ctx context.Context, cfg DialConfig) (*Redis, error) {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, classify(err)
	}
	return &Redis{rdb: rdb, closeClient: true}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, classify(err) // transport/server error
	}
	return b, true, nil
}

// GetMulti pipelines one GET per key instead of MGET so it also works
// against a cluster, where MGET across slots fails with CROSSSLOT.
func (p *Redis) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	cmds := make([]*goredis.StringCmd, len(keys))
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.Get(ctx, k)
		}
		return nil
	})
	if err != nil && err != goredis.Nil {
		return nil, classify(err)
	}
	for i, cmd := range cmds {
		b, err := cmd.Bytes()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return nil, classify(err)
		}
		out[keys[i]] = b
	}
	return out, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := p.rdb.Set(ctx, key, value, expiry(ttl)).Err(); err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (p *Redis) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := p.rdb.SetNX(ctx, key, value, expiry(ttl)).Result()
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (p *Redis) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := p.rdb.SetXX(ctx, key, value, expiry(ttl)).Result()
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (p *Redis) Incr(ctx context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, incrScript, key, delta)
}

func (p *Redis) Decr(ctx context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, decrScript, key, delta)
}

func (p *Redis) counter(ctx context.Context, s *goredis.Script, key string, delta uint64) (uint64, error) {
	n, err := s.Run(ctx, p.rdb, []string{key}, delta).Int64()
	if err != nil {
		return 0, classify(err)
	}
	if n < 0 {
		// INCRBY past int64 range is refused by redis; a negative here means
		// the counter was written by another client.
		return 0, pr.ErrNotNumeric
	}
	return uint64(n), nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return classify(p.rdb.Del(ctx, key).Err())
}

// Flush runs FLUSHDB on every master when the client is a cluster client,
// since a plain FLUSHDB only reaches the node it lands on.
func (p *Redis) Flush(ctx context.Context) error {
	if cc, ok := p.rdb.(*goredis.ClusterClient); ok {
		return classify(cc.ForEachMaster(ctx, func(ctx context.Context, c *goredis.Client) error {
			return c.FlushDB(ctx).Err()
		}))
	}
	return classify(p.rdb.FlushDB(ctx).Err())
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// expiry maps the provider contract (ttl<=0 => no expiry) onto go-redis,
// where a zero expiration stores the key without a TTL.
func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}

// classify tags connection-level failures with pr.ErrUnavailable and
// counter type errors with pr.ErrNotNumeric. Context errors pass through
// untouched so callers can tell a timeout from an outage.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, goredis.ErrClosed) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "not an integer") || strings.Contains(msg, "overflow") {
		return fmt.Errorf("%w: %w", pr.ErrNotNumeric, err)
	}
	if strings.Contains(msg, "connection refused") {
		return fmt.Errorf("%w: %w", pr.ErrUnavailable, err)
	}
	return err
}
