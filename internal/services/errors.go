// Package services implements the reconciliation layer of the vendor ledger:
// every inventory and vendor write passes through here, is normalized and
// validated, and only then reaches the persistence gateway.
//
// This file centralizes the service-level errors. Handlers translate them to
// HTTP results; the messages are short enough to show to a user as is.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/vendor-ledger/internal/repo"
	"github.com/tbourn/vendor-ledger/internal/spreadsheet"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that the addressed record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBackend wraps a storage failure that is neither NotFound nor a
	// duplicate. The caller may retry by resubmitting.
	ErrBackend = errors.New("backend unavailable")

	// ErrEmptyItemName is returned when an inventory name is blank after
	// trimming.
	ErrEmptyItemName = errors.New("item name cannot be empty")

	// ErrDuplicateItem matches every *DuplicateItemError.
	ErrDuplicateItem = errors.New("item already exists in inventory")

	// ErrNothingToExport is returned when an export scope has no vendors.
	ErrNothingToExport = spreadsheet.ErrNothingToExport

	// ErrUnknownScope is returned for an export scope other than
	// all, lifetime or daily.
	ErrUnknownScope = errors.New("unknown export scope")
)

// ValidationError rejects a record before it is written. Field is the JSON
// name of the offending field and Values lists every offending value.
type ValidationError struct {
	Field  string
	Values []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if len(e.Values) > 0 {
		return fmt.Sprintf("invalid %s: %s", e.Field, strings.Join(e.Values, ", "))
	}
	return "invalid " + e.Field
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateItemError names the existing inventory value a new name collides
// with.
type DuplicateItemError struct {
	Item string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("%q already exists in Inventory", e.Item)
}

func (e *DuplicateItemError) Unwrap() error { return ErrDuplicateItem }

// storeErr maps gateway errors onto service errors.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicateItem):
		return err
	case errors.Is(err, repo.ErrUnknownField), errors.Is(err, repo.ErrInvalidPatch):
		return &ValidationError{Field: "record", Msg: err.Error()}
	}
	return fmt.Errorf("%w: %w", ErrBackend, err)
}
