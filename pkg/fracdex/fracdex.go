// Package fracdex implements fractional index keys: variable-length strings
// over a base-36 alphabet that order lexicographically and always admit a new
// key strictly between any two existing keys. Keys never end in the lowest
// digit, so a key is implicitly padded with '0' on the right when compared
// against a longer key.
package fracdex

import (
	"errors"
	"fmt"
	"strings"
)

// digits is the key alphabet. It must be ASCII-ordered so that plain byte
// comparison matches digit order.
const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// DefaultMaxDepth caps key length when a caller passes maxDepth <= 0. Past
// the cap, midpoint generation reports ErrExhaustedKeyspace and the caller
// is expected to rebalance the neighborhood instead of retrying.
const DefaultMaxDepth = 32

// ErrExhaustedKeyspace is returned when the only key between two neighbors
// would exceed the depth cap.
var ErrExhaustedKeyspace = errors.New("fracdex: keyspace exhausted at max depth")

// In the generation functions an empty string is a boundary sentinel: ""
// as the lower argument means "below every key", "" as the upper argument
// means "above every key". Stored keys are never empty.

// Compare returns -1, 0 or 1 ordering a against b. Because keys carry no
// trailing zero digit, byte-wise comparison is the total order.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Validate reports whether k is a well-formed stored key.
func Validate(k string) error {
	if k == "" {
		return errors.New("fracdex: empty key")
	}
	for i := 0; i < len(k); i++ {
		if digitIndex(k[i]) < 0 {
			return fmt.Errorf("fracdex: invalid digit %q in key %q", k[i], k)
		}
	}
	if k[len(k)-1] == digits[0] {
		return fmt.Errorf("fracdex: key %q has trailing zero digit", k)
	}
	return nil
}

// Midpoint returns a key strictly between a and b. The sentinels described
// above apply: Midpoint("", "") yields the canonical first key. Returns
// ErrExhaustedKeyspace when the result would be deeper than maxDepth.
func Midpoint(a, b string, maxDepth int) (string, error) {
	if a != "" {
		if err := Validate(a); err != nil {
			return "", err
		}
	}
	if b != "" {
		if err := Validate(b); err != nil {
			return "", err
		}
		if Compare(a, b) >= 0 {
			return "", fmt.Errorf("fracdex: midpoint bounds out of order: %q >= %q", a, b)
		}
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	m := midpoint(a, b)
	if len(m) > maxDepth {
		return "", ErrExhaustedKeyspace
	}
	return m, nil
}

// First returns the key used for the first item of an empty collection.
func First() string {
	return midpoint("", "")
}

// Before returns a key ordered before k, for inserting at the head of a
// list without a left neighbor.
func Before(k string, maxDepth int) (string, error) {
	return Midpoint("", k, maxDepth)
}

// After returns a key ordered after k, for appending at the tail of a list
// without a right neighbor.
func After(k string, maxDepth int) (string, error) {
	return Midpoint(k, "", maxDepth)
}

// Spread returns n strictly increasing keys between lo (exclusive) and hi
// (exclusive), distributed by recursive bisection so the keys stay short.
// The boundary sentinels apply to lo and hi. Spread is the rebalance
// primitive: redistributing a crowded neighborhood across the span of its
// outer neighbors reclaims gap room without touching the rest of the
// collection.
func Spread(lo, hi string, n, maxDepth int) ([]string, error) {
	if n < 0 {
		return nil, fmt.Errorf("fracdex: negative spread count %d", n)
	}
	out := make([]string, n)
	if err := spread(lo, hi, out, maxDepth); err != nil {
		return nil, err
	}
	return out, nil
}

func spread(lo, hi string, out []string, maxDepth int) error {
	if len(out) == 0 {
		return nil
	}
	mid := len(out) / 2
	m, err := Midpoint(lo, hi, maxDepth)
	if err != nil {
		return err
	}
	out[mid] = m
	if err := spread(lo, m, out[:mid], maxDepth); err != nil {
		return err
	}
	return spread(m, hi, out[mid+1:], maxDepth)
}

func digitIndex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return 10 + int(c-'a')
	}
	return -1
}

// midpoint computes the shortest key strictly between a and b, treating ""
// as the lower/upper boundary per argument position. a is implicitly padded
// with '0' when shorter than b.
func midpoint(a, b string) string {
	if b != "" {
		// strip the longest common prefix, padding a with the lowest digit
		n := 0
		for n < len(b) {
			ca := digits[0]
			if n < len(a) {
				ca = a[n]
			}
			if ca != b[n] {
				break
			}
			n++
		}
		if n > 0 {
			var rest string
			if n < len(a) {
				rest = a[n:]
			}
			return b[:n] + midpoint(rest, b[n:])
		}
	}
	da := 0
	if a != "" {
		da = digitIndex(a[0])
	}
	db := len(digits)
	if b != "" {
		db = digitIndex(b[0])
	}
	if db-da > 1 {
		return string(digits[(da+db+1)/2])
	}
	// leading digits are consecutive
	if len(b) > 1 {
		return b[:1]
	}
	var rest string
	if len(a) > 1 {
		rest = a[1:]
	}
	return string(digits[da]) + midpoint(rest, "")
}
