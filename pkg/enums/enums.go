// Package enums holds the string enumerations stored in the database and on
// the wire.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is an ordered list of the known values of a string enum.
type set[T ~string] []T

func (s set[T]) has(v T) bool { return slices.Contains(s, v) }

// parse matches raw against the known values, ignoring case and surrounding
// space.
func (s set[T]) parse(kind, raw string) (T, error) {
	trimmed := strings.TrimSpace(raw)
	for _, v := range s {
		if strings.EqualFold(string(v), trimmed) {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
