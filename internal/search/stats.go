package search

import (
	"fmt"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Summary holds the dashboard counters for the filtered lists.
type Summary struct {
	TotalInventory int    `json:"totalInventory"`
	TotalLifetime  int    `json:"totalLifetime"`
	TotalDaily     int    `json:"totalDaily"`
	AvgRating      string `json:"avgRating"`
}

// Summarize counts the already filtered lists and averages the lifetime
// vendor ratings to one decimal ("0.0" when there are none).
func Summarize(inv []domain.InventoryItem, lifetime []domain.LifetimeVendor, daily []domain.DailyVendor) Summary {
	s := Summary{
		TotalInventory: len(inv),
		TotalLifetime:  len(lifetime),
		TotalDaily:     len(daily),
		AvgRating:      "0.0",
	}
	if len(lifetime) > 0 {
		var sum float64
		for _, v := range lifetime {
			sum += v.VendorRating
		}
		s.AvgRating = fmt.Sprintf("%.1f", sum/float64(len(lifetime)))
	}
	return s
}
