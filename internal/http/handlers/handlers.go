// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the service contracts the handlers consume, the Handlers
// wiring, and the helpers shared by every endpoint: identity lookup, filter
// and pagination parsing, and translation of service errors to the error
// envelope.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/vendor-ledger/internal/auth"
	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/http/middleware"
	"github.com/tbourn/vendor-ledger/internal/services"
	"github.com/tbourn/vendor-ledger/internal/spreadsheet"
	"github.com/tbourn/vendor-ledger/internal/utils"
)

//
// Service contracts (context-aware)
//

// InventoryService manages the inventory list.
type InventoryService interface {
	Add(ctx context.Context, name string) (*domain.InventoryItem, error)
	Rename(ctx context.Context, id, name string) error
	Remove(ctx context.Context, id string) error
}

// VendorService saves and deletes vendor records.
type VendorService interface {
	SaveLifetime(ctx context.Context, v domain.LifetimeVendor) (*services.SaveResult, error)
	SaveDaily(ctx context.Context, v domain.DailyVendor) (*services.SaveResult, error)
	Delete(ctx context.Context, c domain.Collection, id string) error
}

// SpreadsheetService exports and imports workbooks.
type SpreadsheetService interface {
	Export(ctx context.Context, scope spreadsheet.Scope) (*services.Export, error)
	Import(ctx context.Context, r io.Reader) (*services.ImportResult, error)
}

// ListView is a live, read-only collection mirror.
type ListView[T any] interface {
	Items() []T
	Version() uint64
	Changed() <-chan struct{}
}

//
// Handler wiring
//

// Deps are the collaborators Handlers needs. DB backs idempotent replays
// and may be nil to disable them.
type Deps struct {
	Inventory   InventoryService
	Vendors     VendorService
	Spreadsheet SpreadsheetService
	Auth        auth.Provider

	InventoryView ListView[domain.InventoryItem]
	LifetimeView  ListView[domain.LifetimeVendor]
	DailyView     ListView[domain.DailyVendor]

	DB             *gorm.DB
	IdempotencyTTL time.Duration
}

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	d Deps
}

// New constructs a Handlers bound to d.
func New(d Deps) *Handlers {
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = 24 * time.Hour
	}
	return &Handlers{d: d}
}

// userID returns the authenticated user id set by middleware.Authenticate.
func userID(c *gin.Context) string {
	if v, ok := c.Get(middleware.CtxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// ListResponse wraps a page of records and pagination information.
type ListResponse[T any] struct {
	Items      []T        `json:"items"`
	Version    uint64     `json:"version"`
	Pagination Pagination `json:"pagination"`
}

//
// Helpers
//

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// paginate slices items for the page and page_size query params.
func paginate[T any](c *gin.Context, items []T, version uint64) ListResponse[T] {
	w := utils.PageWindow(len(items),
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), defaultPageSize),
		maxPageSize)
	return ListResponse[T]{
		Items:   items[w.Lo:w.Hi],
		Version: version,
		Pagination: Pagination{
			Page:       w.Page,
			PageSize:   w.PageSize,
			Total:      w.Total,
			TotalPages: w.TotalPages,
			HasNext:    w.HasNext,
		},
	}
}

// notModified sets a weak ETag for a list derived from a view version and
// the request query, and reports whether If-None-Match already matches it.
func notModified(c *gin.Context, kind string, version uint64) bool {
	etag := fmt.Sprintf(`W/"%s:%d:%s"`, kind, version, utils.ShortHash(c.Request.URL.RawQuery))
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// filtersFrom builds VendorFilters from the query string:
// q, rating, paymentTime, unit, paymentDate (YYYY-MM-DD).
func filtersFrom(c *gin.Context) (domain.VendorFilters, error) {
	f := domain.VendorFilters{
		SearchQuery:       c.Query("q"),
		PaymentTimeFilter: strings.TrimSpace(c.Query("paymentTime")),
	}
	if s := strings.TrimSpace(c.Query("rating")); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return f, fmt.Errorf("rating must be a number")
		}
		f.RatingFilter = &r
	}
	if s := strings.TrimSpace(c.Query("unit")); s != "" {
		u := domain.Unit(s)
		if !u.Valid() {
			return f, fmt.Errorf("unknown unit %q", s)
		}
		f.UnitFilter = u
	}
	if s := strings.TrimSpace(c.Query("paymentDate")); s != "" {
		d, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return f, fmt.Errorf("paymentDate must be YYYY-MM-DD")
		}
		f.PaymentDate = &d
	}
	return f, nil
}

// failErr maps a service error onto the error envelope. A non-empty
// backendMsg replaces the message of backend failures.
func failErr(c *gin.Context, err error, backendMsg string) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrEmptyItemName),
		errors.Is(err, domain.ErrNotInInventory):
		failValidation(c, err)
	case errors.Is(err, services.ErrDuplicateItem):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrNothingToExport):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrUnknownScope):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrBackend),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		if backendMsg == "" {
			backendMsg = err.Error()
		}
		fail(c, http.StatusServiceUnavailable, ErrCodeBackend, backendMsg)
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unmapped service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
