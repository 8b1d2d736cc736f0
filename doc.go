// Package cachegate is an asynchronous gateway in front of a key-value cache
// (redis, memcached, or an in-process ristretto/bigcache store).
//
// Every operation runs on a background goroutine drawn from a bounded pool.
// Writes come in two flavours:
//
//   - fire-and-forget (Add, Set, Replace, Delete, Clear): the call returns once
//     the work is queued. Backend failures are logged and reported to Hooks,
//     never returned.
//   - safe (SafeAdd, SafeSet, SafeReplace, SafeDelete, SafeClear): the call
//     waits for the backend, at most Config.Timeout (1s by default). On timeout
//     the request is cancelled and ErrTimeout is returned.
//
// Reads and counters (Get, GetMulti, Incr, Decr) only exist in safe form.
//
// Components:
//   - Provider: byte store with add/set/replace, counters and flush.
//   - Codec[V]: (de)serializes V <-> []byte; a value the codec rejects fails
//     with ErrNotSerializable before any network call.
//   - Gateway: pool, timeouts and cancellation over one Provider.
//   - Cache[V]: typed facade with Init/Reinit/Stop over a Gateway.
//
// Expirations are given in seconds or as a compact string parsed by the
// duration package:
//
//	cache.SetFor(ctx, "session:42", s, "1d12h") // 36 hours
//	cache.AddFor(ctx, "lock:job", token, "30mn")
//
// Errors are *OpError values wrapping one of the package sentinels; test them
// with errors.Is.
package cachegate
