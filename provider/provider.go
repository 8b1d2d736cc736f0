// Package provider defines the client contract cachegate dispatches to.
//
// A Provider owns the connection(s) to one cache backend and exposes the
// low-level request primitives. Implementations MUST be safe for concurrent
// use: the gateway shares one Provider across every outstanding operation.
//
// Values are opaque bytes; the caller's codec owns the format. Counters are
// the exception: Incr/Decr operate on the ASCII decimal representation, the
// same one memcached and redis use, so a counter written by one client can
// be read by another.
//
// Implementations should honour ctx cancellation where the underlying
// client allows it. Where it does not (gomemcache), the client's own I/O
// timeout bounds the call.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable marks connection-level failures: no servers, refused
	// connections, closed clients.
	ErrUnavailable = errors.New("provider: backend unavailable")

	// ErrNotNumeric is returned by Incr/Decr when the stored value is not a
	// decimal counter.
	ErrNotNumeric = errors.New("provider: value is not numeric")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("provider: closed")
)

// Provider is the underlying cache client.
// ttl <= 0 means "no expiry" for every write method.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetMulti returns the present keys only; absent keys are omitted.
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores value unconditionally.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Add stores value only if key is absent; ok=false means not stored.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Replace stores value only if key is present; ok=false means not stored.
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Incr adds delta to the counter at key and returns the new value.
	// A missing key is seeded with 0 and 0 is returned.
	Incr(ctx context.Context, key string, delta uint64) (uint64, error)

	// Decr subtracts delta, flooring at 0. A missing key is seeded with 0.
	Decr(ctx context.Context, key string, delta uint64) (uint64, error)

	// Del removes a key. Removing an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Flush removes every entry the backend holds.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}
