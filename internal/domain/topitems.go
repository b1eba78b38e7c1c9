package domain

import (
	"errors"
	"strings"
)

// MaxTopItems caps a lifetime vendor's top item list.
const MaxTopItems = 5

// ErrNotInInventory is returned when a top item is not a known inventory name.
var ErrNotInInventory = errors.New("please select an item from inventory")

// NameSet is a set of normalized inventory names.
type NameSet map[string]struct{}

// NewNameSet builds the normalized name set of the given items.
func NewNameSet(items []InventoryItem) NameSet {
	s := make(NameSet, len(items))
	for _, it := range items {
		s[Normalize(it.Item)] = struct{}{}
	}
	return s
}

// Has reports whether name normalizes to a member of the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[Normalize(name)]
	return ok
}

// AddTopItem appends candidate to items as the lifetime vendor form does:
// the candidate must be an inventory name, entries already present (by
// normalized value) are not repeated, and only the first MaxTopItems entries
// in insertion order are kept.
func AddTopItem(items []string, candidate string, inventory NameSet) ([]string, error) {
	if !inventory.Has(candidate) {
		return items, ErrNotInInventory
	}
	return DedupeTopItems(append(append([]string(nil), items...), candidate), MaxTopItems), nil
}

// RemoveTopItem drops every entry equal to name after normalization.
func RemoveTopItem(items []string, name string) []string {
	key := Normalize(name)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if Normalize(it) != key {
			out = append(out, it)
		}
	}
	return out
}

// DedupeTopItems trims entries, drops empties and later duplicates, and keeps
// at most limit entries (limit <= 0 keeps all).
func DedupeTopItems(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		key := Normalize(it)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(it))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
