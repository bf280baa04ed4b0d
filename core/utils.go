package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NowFunc is mockable.
var NowFunc = func() time.Time { return time.Now().UTC() }

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NewID returns a new random entity ID.
func NewID() string {
	return uuid.New().String()
}

// AppendUnique appends the values of `add` missing from `set`, keeping the order of both.
func AppendUnique(set []string, add ...string) []string {
	seen := make(map[string]struct{}, len(set)+len(add))
	out := make([]string, 0, len(set)+len(add))
	for _, v := range append(append([]string{}, set...), add...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Contains reports whether `s` holds `v`.
func Contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
