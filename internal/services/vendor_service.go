// Package services – VendorService
//
// VendorService is the single path for saving lifetime and daily vendors.
// A save runs these steps and stops at the first failure:
//
//  1. Trim every text field; trim and de-duplicate top items.
//  2. Check required fields and the range/enum rules on the record types.
//  3. Check inventory references: a daily vendor's item name, and every top
//     item of a lifetime vendor, must match an inventory name after
//     trim+lowercase. All missing top items are reported together.
//  4. Update when the record's id is already known, otherwise create it
//     under a fresh id.
//
// Nothing is written when a step fails.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Save outcomes.
const (
	ActionAdded   = "added"
	ActionUpdated = "updated"
)

// SaveResult describes a successful vendor save.
type SaveResult struct {
	Action  string            `json:"action"`
	Type    domain.Collection `json:"type"`
	ID      string            `json:"id"`
	Message string            `json:"message"`
}

// VendorService saves and deletes vendor records.
type VendorService struct {
	Store    Store
	Validate *validator.Validate
	Log      zerolog.Logger

	// Lifetime and Daily, when set, are consulted before the store to decide
	// whether a record id is already known.
	Lifetime KnownIDs
	Daily    KnownIDs
}

// NewVendorService constructs a VendorService with the domain validator.
func NewVendorService(s Store, log zerolog.Logger) *VendorService {
	return &VendorService{Store: s, Validate: domain.NewValidator(), Log: log}
}

// SaveLifetime validates and stores a lifetime vendor.
func (s *VendorService) SaveLifetime(ctx context.Context, v domain.LifetimeVendor) (*SaveResult, error) {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "SaveLifetime", trace.WithAttributes(attribute.String("vendor.id", v.ID)))
	defer span.End()

	normalizeLifetime(&v)
	if err := s.check(&v, domain.CollectionLifetime); err != nil {
		return nil, err
	}
	inv, err := s.inventory(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, it := range v.Top5Items {
		if !inv.Has(it) {
			missing = append(missing, it)
		}
	}
	if len(missing) > 0 {
		rejections.WithLabelValues(string(domain.CollectionLifetime), "inventory").Inc()
		return nil, &ValidationError{
			Field:  "top5Items",
			Values: missing,
			Msg:    "These items are not in Inventory: " + strings.Join(missing, ", "),
		}
	}
	return s.save(ctx, &v, s.Lifetime)
}

// SaveDaily validates and stores a daily vendor.
func (s *VendorService) SaveDaily(ctx context.Context, v domain.DailyVendor) (*SaveResult, error) {
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "SaveDaily", trace.WithAttributes(attribute.String("vendor.id", v.ID)))
	defer span.End()

	normalizeDaily(&v)
	if err := s.check(&v, domain.CollectionDaily); err != nil {
		return nil, err
	}
	inv, err := s.inventory(ctx)
	if err != nil {
		return nil, err
	}
	if !inv.Has(v.ItemName) {
		rejections.WithLabelValues(string(domain.CollectionDaily), "inventory").Inc()
		return nil, &ValidationError{
			Field:  "itemName",
			Values: []string{v.ItemName},
			Msg:    fmt.Sprintf("Select an item from Inventory for Daily Vendor: %q is not in Inventory", v.ItemName),
		}
	}
	return s.save(ctx, &v, s.Daily)
}

// Delete removes vendor id from c. Deleting a missing vendor is not an error.
func (s *VendorService) Delete(ctx context.Context, c domain.Collection, id string) error {
	if c != domain.CollectionLifetime && c != domain.CollectionDaily {
		return &ValidationError{Field: "type", Values: []string{string(c)}}
	}
	tr := otel.Tracer("services/VendorService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("vendor.type", string(c)),
		attribute.String("vendor.id", id),
	))
	defer span.End()

	return storeErr(s.Store.Delete(ctx, c, id))
}

// FailureMessage renders err as the notification shown for a failed save.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	return "Failed to save vendor: " + err.Error()
}

// check runs the required-field and tag rules.
func (s *VendorService) check(rec domain.Record, c domain.Collection) error {
	if err := requiredFields(rec); err != nil {
		rejections.WithLabelValues(string(c), "required").Inc()
		return err
	}
	v := s.Validate
	if v == nil {
		v = defaultValidator()
	}
	if err := v.Struct(rec); err != nil {
		rejections.WithLabelValues(string(c), "invalid").Inc()
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fieldError(ve[0])
		}
		return &ValidationError{Field: "record", Msg: err.Error()}
	}
	return nil
}

func (s *VendorService) inventory(ctx context.Context) (domain.NameSet, error) {
	items, err := loadInventory(ctx, s.Store)
	if err != nil {
		return nil, storeErr(err)
	}
	return domain.NewNameSet(items), nil
}

// save issues the update or create for a validated record.
func (s *VendorService) save(ctx context.Context, rec domain.Record, known KnownIDs) (*SaveResult, error) {
	c := rec.Collection()
	action := ActionAdded

	id := rec.GetID()
	exists := false
	if id != "" {
		if known != nil && known.Has(id) {
			exists = true
		} else {
			ok, err := s.Store.Exists(ctx, c, id)
			if err != nil {
				return nil, storeErr(err)
			}
			exists = ok
		}
	}

	if exists {
		patch, err := fullPatch(rec)
		if err != nil {
			return nil, err
		}
		if err := s.Store.Update(ctx, c, id, patch); err != nil {
			return nil, storeErr(err)
		}
		action = ActionUpdated
	} else {
		rec.SetID("")
		stored, err := s.Store.Create(ctx, rec)
		if err != nil {
			return nil, storeErr(err)
		}
		id = stored.GetID()
	}

	vendorSaves.WithLabelValues(string(c), action).Inc()
	s.Log.Info().Str("type", string(c)).Str("id", id).Str("action", action).Msg("vendor saved")
	return &SaveResult{
		Action:  action,
		Type:    c,
		ID:      id,
		Message: fmt.Sprintf("%s vendor %s successfully!", typeLabel(c), action),
	}, nil
}

// defaultValidator serves services built without NewVendorService.
var defaultValidator = sync.OnceValue(domain.NewValidator)

var titleCaser = cases.Title(language.English)

// typeLabel is "Lifetime" or "Daily".
func typeLabel(c domain.Collection) string {
	return titleCaser.String(string(c))
}

func normalizeLifetime(v *domain.LifetimeVendor) {
	v.ID = strings.TrimSpace(v.ID)
	v.Name = strings.TrimSpace(v.Name)
	v.Contact = strings.TrimSpace(v.Contact)
	v.Address = strings.TrimSpace(v.Address)
	v.PaymentTime = strings.TrimSpace(v.PaymentTime)
	v.LastDealDate = strings.TrimSpace(v.LastDealDate)
	v.DeliveryTime = strings.TrimSpace(v.DeliveryTime)
	v.Relationship = domain.Relationship(strings.TrimSpace(string(v.Relationship)))
	v.Top5Items = domain.DedupeTopItems(v.Top5Items, 0)
}

func normalizeDaily(v *domain.DailyVendor) {
	v.ID = strings.TrimSpace(v.ID)
	v.Name = strings.TrimSpace(v.Name)
	v.Party = strings.TrimSpace(v.Party)
	v.Contact = strings.TrimSpace(v.Contact)
	v.ItemName = strings.TrimSpace(v.ItemName)
	v.ItemQuality = strings.TrimSpace(v.ItemQuality)
	v.LastDealDate = strings.TrimSpace(v.LastDealDate)
	v.PaymentTime = strings.TrimSpace(v.PaymentTime)
	v.OfferTime = strings.TrimSpace(v.OfferTime)
	v.DeliveryTime = strings.TrimSpace(v.DeliveryTime)
	v.UnitOfMeasurement = domain.Unit(strings.TrimSpace(string(v.UnitOfMeasurement)))
	if v.UnitOfMeasurement == "" {
		v.UnitOfMeasurement = domain.DefaultUnit
	}
}

// requiredFields reports the first missing required field with the message
// the vendor form shows for it.
func requiredFields(rec domain.Record) error {
	switch v := rec.(type) {
	case *domain.LifetimeVendor:
		if v.Name == "" {
			return &ValidationError{Field: "name", Msg: "Name is required"}
		}
		if v.Contact == "" {
			return &ValidationError{Field: "contact", Msg: "Contact is required"}
		}
	case *domain.DailyVendor:
		if v.Name == "" {
			return &ValidationError{Field: "name", Msg: "Name is required"}
		}
		if v.ItemName == "" || v.ItemRate == 0 {
			return &ValidationError{Field: "itemName", Msg: "Item name and rate are required"}
		}
	}
	return nil
}

// jsonNames maps struct field names to their JSON names for error reports.
var jsonNames = map[string]string{
	"Top5Items":         "top5Items",
	"MOQ":               "moq",
	"VendorRating":      "vendorRating",
	"Relationship":      "relationship",
	"ItemRate":          "itemRate",
	"ItemQuantity":      "itemQuantity",
	"UnitOfMeasurement": "unitOfMeasurement",
	"TrustLevel":        "trustLevel",
	"Name":              "name",
	"Contact":           "contact",
	"ItemName":          "itemName",
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := jsonNames[fe.StructField()]
	if field == "" {
		field = fe.StructField()
	}
	val := fmt.Sprint(fe.Value())
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "max":
		msg = fmt.Sprintf("%s allows at most %s entries", field, fe.Param())
	case "gte":
		msg = fmt.Sprintf("%s must be at least %s, got %s", field, fe.Param(), val)
	case "gt":
		msg = fmt.Sprintf("%s must be greater than %s, got %s", field, fe.Param(), val)
	case "lte":
		msg = fmt.Sprintf("%s must be at most %s, got %s", field, fe.Param(), val)
	default:
		msg = fmt.Sprintf("%s has an invalid value %q", field, val)
	}
	return &ValidationError{Field: field, Values: []string{val}, Msg: msg}
}
