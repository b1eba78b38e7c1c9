// Package search filters the live collections for display. It is pure: no
// I/O, no logging, no shared state. Every call recomputes its result from the
// full list it is given, so applying the same filters twice yields the same
// output and the input slices are never modified.
//
// Text search is a case-insensitive substring match over a fixed set of
// fields per record type. Structured filters only apply to the record type
// they name, and all active filters compose with AND.
package search

import (
	"strings"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Inventory keeps items whose name or id contains the search query.
func Inventory(items []domain.InventoryItem, f domain.VendorFilters) []domain.InventoryItem {
	q := query(f)
	out := make([]domain.InventoryItem, 0, len(items))
	for _, it := range items {
		if q == "" || contains(it.Item, q) || contains(it.ID, q) {
			out = append(out, it)
		}
	}
	return out
}

// Lifetime keeps lifetime vendors matching the query on name, contact, any
// top item or address, rated at least RatingFilter, and with exactly
// PaymentTimeFilter.
func Lifetime(vendors []domain.LifetimeVendor, f domain.VendorFilters) []domain.LifetimeVendor {
	q := query(f)
	out := make([]domain.LifetimeVendor, 0, len(vendors))
	for _, v := range vendors {
		if q != "" && !matchLifetime(v, q) {
			continue
		}
		if f.RatingFilter != nil && v.VendorRating < *f.RatingFilter {
			continue
		}
		if f.PaymentTimeFilter != "" && v.PaymentTime != f.PaymentTimeFilter {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Daily keeps daily vendors matching the query on name, item name or contact,
// with exactly UnitFilter, and whose last deal date equals
// PaymentDate formatted as YYYY-MM-DD.
func Daily(vendors []domain.DailyVendor, f domain.VendorFilters) []domain.DailyVendor {
	q := query(f)
	var day string
	if f.PaymentDate != nil {
		day = f.PaymentDate.Format(domain.DateLayout)
	}
	out := make([]domain.DailyVendor, 0, len(vendors))
	for _, v := range vendors {
		if q != "" && !matchDaily(v, q) {
			continue
		}
		if f.UnitFilter != "" && v.UnitOfMeasurement != f.UnitFilter {
			continue
		}
		if day != "" && v.LastDealDate != day {
			continue
		}
		out = append(out, v)
	}
	return out
}

func matchLifetime(v domain.LifetimeVendor, q string) bool {
	if contains(v.Name, q) || contains(v.Contact, q) || contains(v.Address, q) {
		return true
	}
	for _, it := range v.Top5Items {
		if contains(it, q) {
			return true
		}
	}
	return false
}

func matchDaily(v domain.DailyVendor, q string) bool {
	return contains(v.Name, q) || contains(v.Contact, q) || contains(v.ItemName, q)
}

// query returns the trimmed, lower-cased search query.
func query(f domain.VendorFilters) string {
	return strings.ToLower(strings.TrimSpace(f.SearchQuery))
}

func contains(field, q string) bool {
	return strings.Contains(strings.ToLower(field), q)
}
