// Package cache stores query results per (key, mode) slot so switching
// between the local and cloud source never blocks on a refetch. Each slot is
// replaced atomically by its single logical writer; slots are isolated, so no
// cross-slot lock exists.
package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// Key is a structured composite cache key built from an ordered sequence of
// scalar tokens. Tokens are length-delimited when encoded, so differently
// shaped token lists can never collide ("ab" vs "a","b"). Nil tokens are
// stripped before encoding.
type Key struct {
	enc string
}

// NewKey builds a Key from scalar tokens (strings, numbers, bools). Nil
// tokens are dropped; everything else is formatted with %v.
func NewKey(tokens ...any) Key {
	var b strings.Builder
	for _, tok := range tokens {
		if tok == nil {
			continue
		}
		s := fmt.Sprintf("%v", tok)
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
		b.WriteByte(';')
	}
	return Key{enc: b.String()}
}

// String returns the canonical encoding, usable as a map key or log field.
func (k Key) String() string { return k.enc }

// IsZero reports whether the key was built from no tokens.
func (k Key) IsZero() bool { return k.enc == "" }

// Mode names which replica a cache slot belongs to.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// Opposite returns the other mode.
func (m Mode) Opposite() Mode {
	if m == ModeLocal {
		return ModeCloud
	}
	return ModeLocal
}

// slot is the internal map key: one cache entry per (query key, mode).
type slot struct {
	key  string
	mode Mode
}
