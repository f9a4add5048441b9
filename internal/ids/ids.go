package ids

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier suitable for storage keys.
// ulid.Make draws from a process-wide monotonic entropy source and is safe for
// concurrent use.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether s is a well-formed identifier produced by New.
func Valid(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}
