// Package pagination implements keyset cursors over (created_at, id),
// newest first.
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

const cursorLen = 8 + 16

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is a page request. A blank Cursor asks for the first page.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type Page struct {
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Fetch is the row count to query for a page of limit: one extra row tells
// whether another page follows.
func Fetch(limit int) int { return limit + 1 }

// Trim cuts rows fetched with Fetch(limit) to the page and returns the cursor
// of the next page, or "" on the last one.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(key(rows[limit-1]))
}

// EncodeCursor packs the timestamp in nanoseconds and the id into a URL safe
// token.
func EncodeCursor(c Cursor) string {
	buf := make([]byte, cursorLen)
	binary.BigEndian.PutUint64(buf, uint64(c.CreatedAt.UTC().UnixNano()))
	copy(buf[8:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) != cursorLen {
		return nil, ErrInvalidCursor
	}
	id, err := uuid.FromBytes(raw[8:])
	if err != nil || id == uuid.Nil {
		return nil, ErrInvalidCursor
	}
	nanos := int64(binary.BigEndian.Uint64(raw[:8]))
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}
