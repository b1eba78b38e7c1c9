package domain

import "time"

// VendorFilters is the transient filter state applied to the live lists.
// Nil or empty members are inactive; active members compose with AND.
type VendorFilters struct {
	// SearchQuery is matched as a case-insensitive substring.
	SearchQuery string
	// RatingFilter keeps lifetime vendors rated at least this value.
	RatingFilter *float64
	// PaymentTimeFilter keeps lifetime vendors with exactly this payment time.
	PaymentTimeFilter string
	// UnitFilter keeps daily vendors with exactly this unit.
	UnitFilter Unit
	// PaymentDate keeps daily vendors whose last deal date is this calendar day.
	PaymentDate *time.Time
}

// DateLayout is the calendar-day layout compared against LastDealDate.
const DateLayout = "2006-01-02"
