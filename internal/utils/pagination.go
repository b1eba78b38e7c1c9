// Package utils holds small helpers shared by the HTTP layer: query parsing,
// page windows over in-memory lists, and short content hashes.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Window is one page of a list of Total items.
type Window struct {
	Lo, Hi     int // slice bounds into the list
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	HasNext    bool
}

// PageWindow bounds page to [1,∞) and size to [1,maxSize] and returns the
// slice bounds for that page of a list with total items. A page past the end
// yields an empty window (Lo == Hi == total).
func PageWindow(total, page, size, maxSize int) Window {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	if total < 0 {
		total = 0
	}
	pages := (total + size - 1) / size
	lo := min((page-1)*size, total)
	return Window{
		Lo:         lo,
		Hi:         min(lo+size, total),
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}
