// Package pagination provides opaque cursor pagination over ID-ordered
// transfer history.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// Cursor marks a position in a descending ID-ordered result set. The next
// page contains entries with IDs strictly below LastID.
type Cursor struct {
	LastID uint64
}

// Encode returns an opaque cursor string for the given transfer ID.
func Encode(lastID uint64) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatUint(lastID, 10)))
}

// Decode parses an opaque cursor string. Returns nil for empty input.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}
	return &Cursor{LastID: id}, nil
}

// ComputePage takes a slice of items (fetched with limit+1), the requested
// limit, and a function to extract the ID from an item. Returns the trimmed
// items, next cursor, and has_more flag.
func ComputePage[T any](items []T, limit int, id func(T) uint64) ([]T, string, bool) {
	if len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	last := items[len(items)-1]
	return items, Encode(id(last)), true
}
