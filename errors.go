package cachegate

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/cachegate/config"
	"github.com/unkn0wn-root/cachegate/duration"
)

var (
	// ErrConfiguration: malformed or incomplete configuration (init time).
	ErrConfiguration = config.ErrConfiguration
	// ErrInvalidDuration: an expiration string outside the duration grammar.
	ErrInvalidDuration = duration.ErrInvalidDuration

	ErrNotSerializable    = errors.New("cachegate: value is not serializable")
	ErrTimeout            = errors.New("cachegate: operation timed out")
	ErrBackendUnavailable = errors.New("cachegate: backend unavailable")
	ErrStopped            = errors.New("cachegate: cache stopped")
	ErrInvalidKey         = errors.New("cachegate: invalid key")
	ErrTypeMismatch       = errors.New("cachegate: cached value has a different type")
)

// OpError describes a failed operation. Err wraps one of the sentinels above
// (when one applies) followed by the underlying cause.
type OpError struct {
	Op  Op
	Key string // empty for clear and multi-key reads
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cachegate %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cachegate %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// opErr wraps cause with kind so both match errors.Is; either may be nil.
func opErr(op Op, key string, kind, cause error) error {
	err := cause
	switch {
	case kind != nil && cause != nil:
		err = fmt.Errorf("%w: %w", kind, cause)
	case kind != nil:
		err = kind
	}
	return &OpError{Op: op, Key: key, Err: err}
}
