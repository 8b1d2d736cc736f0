// Package duration parses the compact expiration grammar used by cachegate.
//
// A duration is one or more <positive integer><unit> tokens written back to
// back, with no separators:
//
//	3h        three hours
//	2mn       two minutes (also "2mi", "2min")
//	1d2h10s   one day, two hours and ten seconds
//
// Units are d (86400s), h (3600s), mi|min|mn (60s) and s (1s). Tokens are
// summed, so repeating a unit adds to it: "1h1h" is two hours.
package duration

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	Second = 1
	Minute = 60 * Second
	Hour   = 60 * Minute
	Day    = 24 * Hour

	// Default is the expiration applied when the caller gives none.
	// 30 days is the largest relative expiration memcached accepts; anything
	// above it is read as a unix timestamp by the server.
	Default = 30 * Day
)

var ErrInvalidDuration = errors.New("invalid duration")

// Error reports the rejected input.
type Error struct {
	Input  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid duration pattern %q: %s", e.Input, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalidDuration }

// Parse converts s into a number of seconds.
// The whole input must decompose into tokens; partial matches are rejected.
func Parse(s string) (int, error) {
	if s == "" {
		return 0, &Error{Input: s, Reason: "empty"}
	}

	total := 0
	for i := 0; i < len(s); {
		// magnitude
		start := i
		n := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			d := int(s[i] - '0')
			if n > (math.MaxInt32-d)/10 {
				return 0, &Error{Input: s, Reason: "magnitude overflows"}
			}
			n = n*10 + d
			i++
		}
		if i == start {
			return 0, &Error{Input: s, Reason: fmt.Sprintf("expected digits at offset %d", start)}
		}
		if n == 0 {
			return 0, &Error{Input: s, Reason: fmt.Sprintf("zero magnitude at offset %d", start)}
		}

		// unit
		unit, width := unitAt(s[i:])
		if width == 0 {
			if i == len(s) {
				return 0, &Error{Input: s, Reason: "missing unit"}
			}
			return 0, &Error{Input: s, Reason: fmt.Sprintf("unknown unit at offset %d", i)}
		}
		i += width

		if n > (math.MaxInt32-total)/unit {
			return 0, &Error{Input: s, Reason: "total overflows"}
		}
		total += n * unit
	}
	return total, nil
}

// ParseOptional is Parse with a nil sentinel: nil means "no explicit
// expiration" and yields Default.
func ParseOptional(s *string) (int, error) {
	if s == nil {
		return Default, nil
	}
	return Parse(*s)
}

// MustParse is like Parse but panics on error. Meant for constants.
func MustParse(s string) int {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Seconds converts a parsed value into a time.Duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// unitAt matches the longest unit at the head of s and returns its size in
// seconds and the number of bytes consumed; width 0 means no unit matched.
func unitAt(s string) (seconds, width int) {
	switch {
	case len(s) >= 3 && s[:3] == "min":
		return Minute, 3
	case len(s) >= 2 && (s[:2] == "mi" || s[:2] == "mn"):
		return Minute, 2
	case len(s) >= 1 && s[0] == 'd':
		return Day, 1
	case len(s) >= 1 && s[0] == 'h':
		return Hour, 1
	case len(s) >= 1 && s[0] == 's':
		return Second, 1
	}
	return 0, 0
}
