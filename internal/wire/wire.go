// Package wire holds the byte-level conventions shared by the providers:
// key validation and the decimal counter representation.
package wire

import (
	"errors"
	"strconv"
)

// MaxKeyLen is memcached's key limit. It is applied to every backend so a
// deployment can switch backends without its keys becoming invalid.
const MaxKeyLen = 250

var (
	ErrEmptyKey   = errors.New("empty key")
	ErrKeyTooLong = errors.New("key exceeds 250 bytes")
	ErrKeyChars   = errors.New("key contains whitespace or control characters")

	ErrNotCounter = errors.New("value is not a decimal counter")
)

// ValidateKey rejects keys memcached would refuse on the wire.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(key) > MaxKeyLen {
		return ErrKeyTooLong
	}
	for i := 0; i < len(key); i++ {
		if b := key[i]; b <= ' ' || b == 0x7f {
			return ErrKeyChars
		}
	}
	return nil
}

// EncodeCounter renders n the way memcached stores counters.
func EncodeCounter(n uint64) []byte {
	return strconv.AppendUint(make([]byte, 0, 20), n, 10)
}

// DecodeCounter parses a stored counter. memcached pads decremented values
// with trailing spaces, so those are tolerated.
func DecodeCounter(b []byte) (uint64, error) {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	if end == 0 {
		return 0, ErrNotCounter
	}
	for _, c := range b[:end] {
		if c < '0' || c > '9' {
			return 0, ErrNotCounter
		}
	}
	n, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		return 0, ErrNotCounter
	}
	return n, nil
}

// AddCounter applies delta to cur, wrapping on overflow like memcached incr.
func AddCounter(cur, delta uint64) uint64 { return cur + delta }

// SubCounter applies -delta to cur, flooring at 0 like memcached decr.
func SubCounter(cur, delta uint64) uint64 {
	if delta >= cur {
		return 0
	}
	return cur - delta
}
