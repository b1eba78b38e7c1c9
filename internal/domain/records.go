// Package domain defines the persisted records of the vendor ledger: the
// inventory list, lifetime vendors, and daily vendors. These types are mapped
// with GORM and serialized to clients with the camelCase field names used by
// the web front end and the spreadsheet bridge.
//
// Every record lives in exactly one Collection and is addressed by an opaque
// string id. The id is the primary key of the row and is never reused.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Collection names a logical document set.
type Collection string

const (
	CollectionInventory Collection = "inventory"
	CollectionLifetime  Collection = "lifetime"
	CollectionDaily     Collection = "daily"
)

// Collections lists every collection in a stable order.
var Collections = []Collection{CollectionInventory, CollectionLifetime, CollectionDaily}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	switch c {
	case CollectionInventory, CollectionLifetime, CollectionDaily:
		return true
	}
	return false
}

// Record is implemented by every persisted document type.
type Record interface {
	GetID() string
	SetID(id string)
	Collection() Collection
}

// NewRecord returns an empty record of the collection's concrete type, or nil
// for an unknown collection.
func NewRecord(c Collection) Record {
	switch c {
	case CollectionInventory:
		return &InventoryItem{}
	case CollectionLifetime:
		return &LifetimeVendor{}
	case CollectionDaily:
		return &DailyVendor{}
	}
	return nil
}

// Normalize returns the comparison form of a free-text name: surrounding
// whitespace removed and lower-cased. Inventory uniqueness and top-item
// membership are both decided on this form.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// InventoryItem is a named stock item. Item is unique across the inventory
// after normalization; ItemKey stores that normalized form so the database
// enforces the rule as well.
type InventoryItem struct {
	ID        string    `json:"id"   gorm:"type:varchar(96);primaryKey"`
	Item      string    `json:"item" gorm:"type:varchar(255);not null"`
	ItemKey   string    `json:"-"    gorm:"type:varchar(255);not null;uniqueIndex:ux_inventory_item_key"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for InventoryItem.
func (InventoryItem) TableName() string { return "inventory" }

func (i *InventoryItem) GetID() string          { return i.ID }
func (i *InventoryItem) SetID(id string)        { i.ID = id }
func (i *InventoryItem) Collection() Collection { return CollectionInventory }

// BeforeSave keeps ItemKey in step with Item on every create and update.
func (i *InventoryItem) BeforeSave(*gorm.DB) error {
	i.ItemKey = Normalize(i.Item)
	return nil
}

// LifetimeVendor is a long-term supplier relationship.
//
// Top5Items holds at most five distinct inventory names; it is stored as a
// JSON array column. PaymentTime is a day count where "0" means paid in
// advance.
type LifetimeVendor struct {
	ID           string       `json:"id"           gorm:"type:varchar(96);primaryKey"`
	Name         string       `json:"name"         gorm:"type:varchar(255);not null;index:idx_lifetime_name_contact,priority:1" validate:"required"`
	Contact      string       `json:"contact"      gorm:"type:varchar(64);not null;index:idx_lifetime_name_contact,priority:2" validate:"required"`
	Top5Items    []string     `json:"top5Items"    gorm:"type:text;serializer:json" validate:"max=5"`
	MOQ          int          `json:"moq"          validate:"gte=0"`
	Address      string       `json:"address"`
	PaymentTime  string       `json:"paymentTime"  gorm:"type:varchar(16)"`
	LastDealDate string       `json:"lastDealDate" gorm:"type:varchar(32)"`
	DeliveryTime string       `json:"deliveryTime"`
	VendorRating float64      `json:"vendorRating" validate:"gte=0,lte=5"`
	Relationship Relationship `json:"relationship" gorm:"type:varchar(16)" validate:"relationship"`
	CreatedAt    time.Time    `json:"-"`
	UpdatedAt    time.Time    `json:"-"`
}

// TableName returns the database table name for LifetimeVendor.
func (LifetimeVendor) TableName() string { return "lifetime_vendors" }

func (v *LifetimeVendor) GetID() string          { return v.ID }
func (v *LifetimeVendor) SetID(id string)        { v.ID = id }
func (v *LifetimeVendor) Collection() Collection { return CollectionLifetime }

// BeforeSave stores a missing top-items list as an empty array, never null.
func (v *LifetimeVendor) BeforeSave(*gorm.DB) error {
	if v.Top5Items == nil {
		v.Top5Items = []string{}
	}
	return nil
}

// DailyVendor is a per-transaction supplier record for a single item.
type DailyVendor struct {
	ID                string    `json:"id"                gorm:"type:varchar(96);primaryKey"`
	Name              string    `json:"name"              gorm:"type:varchar(255);not null;index:idx_daily_name_contact,priority:1" validate:"required"`
	Party             string    `json:"party"`
	Contact           string    `json:"contact"           gorm:"type:varchar(64);index:idx_daily_name_contact,priority:2"`
	ItemName          string    `json:"itemName"          gorm:"type:varchar(255)" validate:"required"`
	ItemRate          float64   `json:"itemRate"          validate:"gt=0"`
	ItemQuantity      int       `json:"itemQuantity"      validate:"gte=0"`
	UnitOfMeasurement Unit      `json:"unitOfMeasurement" gorm:"type:varchar(16)" validate:"unit"`
	LastDealDate      string    `json:"lastDealDate"      gorm:"type:varchar(32)"`
	PaymentTime       string    `json:"paymentTime"       gorm:"type:varchar(16)"`
	ItemQuality       string    `json:"itemQuality"`
	OfferTime         string    `json:"offerTime"`
	DeliveryTime      string    `json:"deliveryTime"`
	TrustLevel        int       `json:"trustLevel"        validate:"gte=0,lte=5"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

// TableName returns the database table name for DailyVendor.
func (DailyVendor) TableName() string { return "daily_vendors" }

func (v *DailyVendor) GetID() string          { return v.ID }
func (v *DailyVendor) SetID(id string)        { v.ID = id }
func (v *DailyVendor) Collection() Collection { return CollectionDaily }

// Relationship grades a lifetime vendor.
type Relationship string

const (
	RelationshipExcellent Relationship = "Excellent"
	RelationshipGood      Relationship = "Good"
	RelationshipAverage   Relationship = "Average"
	RelationshipBad       Relationship = "Bad"
	RelationshipVeryBad   Relationship = "Very Bad"
)

// Relationships lists the accepted grades in display order.
var Relationships = []Relationship{
	RelationshipExcellent, RelationshipGood, RelationshipAverage, RelationshipBad, RelationshipVeryBad,
}

// Valid reports whether r is one of the accepted grades. The empty value is
// accepted as "not graded yet".
func (r Relationship) Valid() bool {
	if r == "" {
		return true
	}
	for _, v := range Relationships {
		if r == v {
			return true
		}
	}
	return false
}

// Unit is a daily vendor's unit of measurement.
type Unit string

const (
	UnitKg     Unit = "Kg"
	UnitLitre  Unit = "Litre"
	UnitPiece  Unit = "Piece"
	UnitPacket Unit = "Packet"
	UnitBag    Unit = "Bag"
)

// Units lists the accepted units in display order.
var Units = []Unit{UnitKg, UnitLitre, UnitPiece, UnitPacket, UnitBag}

// DefaultUnit is preselected for new daily vendors.
const DefaultUnit = UnitBag

// Valid reports whether u is one of the accepted units.
func (u Unit) Valid() bool {
	for _, v := range Units {
		if u == v {
			return true
		}
	}
	return false
}

// PaymentTimeLabel renders a payment time for display: "0" is "Advance",
// anything else is a number of days.
func PaymentTimeLabel(p string) string {
	p = strings.TrimSpace(p)
	switch p {
	case "":
		return ""
	case "0":
		return "Advance"
	}
	return p + " days"
}
