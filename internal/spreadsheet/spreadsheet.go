// Package spreadsheet converts vendor records to and from .xlsx workbooks.
//
// A workbook has one worksheet per vendor type, named LifetimeVendors and
// DailyVendors, whose first row holds the column titles below. Export writes
// dates and other free text as text cells and quantities as numbers. Import
// reads columns by title, so column order does not matter and unknown
// columns are ignored.
package spreadsheet

import (
	"errors"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Worksheet names.
const (
	SheetLifetime = "LifetimeVendors"
	SheetDaily    = "DailyVendors"
)

// ContentType is the MIME type of an .xlsx workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column titles shared by lifetime and daily sheets.
const (
	colName         = "Name"
	colContact      = "Contact"
	colLastDealDate = "Last Deal Date"
	colPaymentTime  = "Payment Time"
	colDeliveryTime = "Delivery Time"
)

// Lifetime sheet columns.
const (
	colTopItems     = "Top Items"
	colMOQ          = "MOQ"
	colAddress      = "Address"
	colVendorRating = "Vendor Rating"
	colRelationship = "Relationship"
)

// Daily sheet columns.
const (
	colParty     = "Party"
	colItem      = "Item"
	colRate      = "Rate"
	colQuantity  = "Quantity"
	colQuality   = "Quality"
	colUnit      = "Unit"
	colOfferTime = "Offer Time"
	colTrust     = "Trust"
)

// LifetimeHeaders is the header row of the LifetimeVendors sheet.
var LifetimeHeaders = []string{
	colName, colContact, colTopItems, colMOQ, colAddress, colPaymentTime,
	colLastDealDate, colDeliveryTime, colVendorRating, colRelationship,
}

// DailyHeaders is the header row of the DailyVendors sheet.
var DailyHeaders = []string{
	colName, colParty, colContact, colItem, colRate, colQuantity, colQuality,
	colUnit, colLastDealDate, colPaymentTime, colOfferTime, colDeliveryTime, colTrust,
}

// ErrNothingToExport is returned when every list passed to Write is empty.
var ErrNothingToExport = errors.New("no vendors to export")

// Workbook is the decoded content of an imported file.
type Workbook struct {
	Lifetime []domain.LifetimeVendor
	Daily    []domain.DailyVendor
}

// Scope selects which vendor types an export contains.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeLifetime Scope = "lifetime"
	ScopeDaily    Scope = "daily"
)

// ParseScope maps a query value to a Scope; empty means ScopeAll.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case "", ScopeAll:
		return ScopeAll, true
	case ScopeLifetime, ScopeDaily:
		return Scope(s), true
	}
	return "", false
}

// Filename is the download name for an export of this scope.
func (s Scope) Filename() string {
	switch s {
	case ScopeLifetime:
		return "lifetime_vendors.xlsx"
	case ScopeDaily:
		return "daily_vendors.xlsx"
	}
	return "all_vendors.xlsx"
}
