// Package repo implements the persistence layer, backed by GORM.
//
// This file provides the Gateway: the single path through which inventory
// items and vendor records are created, updated, deleted, and listed. Every
// committed write is followed by a change signal so live views reload.
//
// Error semantics:
//   - Missing documents yield ErrNotFound (gorm.ErrRecordNotFound).
//   - Unique-key violations yield ErrDuplicate.
//   - Patches naming fields the collection does not have yield ErrUnknownField;
//     values of the wrong type yield ErrInvalidPatch.
//   - Anything else is a backend/connectivity failure and is returned as is.
//
// Writes are detached from the caller's cancellation: once issued, a write
// completes and its change signal is sent even if the request is abandoned.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/feed"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

var (
	// ErrDuplicate indicates a unique index rejected the write.
	ErrDuplicate = errors.New("duplicate")
	// ErrUnknownCollection is returned for a collection name with no table.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrUnknownField is returned when a patch names a field the record lacks.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidPatch is returned when a patch value has the wrong type.
	ErrInvalidPatch = errors.New("invalid patch value")
)

// Patch is a partial update keyed by JSON field name. A nil value resets the
// field to its empty value ("" / 0 / []).
type Patch map[string]any

// IDFunc synthesizes a document id for a collection.
type IDFunc func(domain.Collection) string

// NewID returns "<collection>_<random uuid>".
func NewID(c domain.Collection) string {
	return string(c) + "_" + uuid.NewString()
}

// Gateway mediates all document reads and writes.
type Gateway struct {
	DB       *gorm.DB
	Notifier feed.Notifier
	NewID    IDFunc
	Log      zerolog.Logger
}

// NewGateway returns a Gateway using random ids.
func NewGateway(db *gorm.DB, n feed.Notifier, log zerolog.Logger) *Gateway {
	return &Gateway{DB: db, Notifier: n, NewID: NewID, Log: log}
}

// Create stores rec under its id, synthesizing one when the id is empty, and
// returns the stored record. An existing document with the same id is
// overwritten.
func (g *Gateway) Create(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec == nil || !rec.Collection().Valid() {
		return nil, ErrUnknownCollection
	}
	if rec.GetID() == "" {
		rec.SetID(g.newID(rec.Collection()))
	}
	wctx := context.WithoutCancel(ctx)
	err := g.DB.WithContext(wctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	g.notify(wctx, rec.Collection())
	return rec, nil
}

// Update merges patch into the document c/id. The document must exist; the
// check and the write run in one transaction.
func (g *Gateway) Update(ctx context.Context, c domain.Collection, id string, patch Patch) error {
	rec := domain.NewRecord(c)
	if rec == nil {
		return ErrUnknownCollection
	}
	wctx := context.WithoutCancel(ctx)
	err := g.DB.WithContext(wctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(rec).Error; err != nil {
			return err
		}
		if err := applyPatch(rec, patch); err != nil {
			return err
		}
		rec.SetID(id)
		return tx.Save(rec).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	g.notify(wctx, c)
	return nil
}

// Delete removes c/id. Deleting a missing document is not an error.
func (g *Gateway) Delete(ctx context.Context, c domain.Collection, id string) error {
	rec := domain.NewRecord(c)
	if rec == nil {
		return ErrUnknownCollection
	}
	wctx := context.WithoutCancel(ctx)
	res := g.DB.WithContext(wctx).Where("id = ?", id).Delete(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		g.notify(wctx, c)
	}
	return nil
}

// Get fetches c/id or returns ErrNotFound.
func (g *Gateway) Get(ctx context.Context, c domain.Collection, id string) (domain.Record, error) {
	rec := domain.NewRecord(c)
	if rec == nil {
		return nil, ErrUnknownCollection
	}
	if err := g.DB.WithContext(ctx).Where("id = ?", id).First(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// Exists reports whether c/id is stored.
func (g *Gateway) Exists(ctx context.Context, c domain.Collection, id string) (bool, error) {
	rec := domain.NewRecord(c)
	if rec == nil {
		return false, ErrUnknownCollection
	}
	var n int64
	err := g.DB.WithContext(ctx).Model(rec).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// ExistsByNameContact reports whether a vendor with exactly this name and
// contact is stored in c.
func (g *Gateway) ExistsByNameContact(ctx context.Context, c domain.Collection, name, contact string) (bool, error) {
	if c != domain.CollectionLifetime && c != domain.CollectionDaily {
		return false, ErrUnknownCollection
	}
	var n int64
	err := g.DB.WithContext(ctx).
		Model(domain.NewRecord(c)).
		Where("name = ? AND contact = ?", name, contact).
		Count(&n).Error
	return n > 0, err
}

// List yields every document of c ordered by id. Each range over the returned
// sequence opens a new cursor, so the sequence can be consumed repeatedly.
func (g *Gateway) List(ctx context.Context, c domain.Collection) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		model := domain.NewRecord(c)
		if model == nil {
			yield(nil, ErrUnknownCollection)
			return
		}
		db := g.DB.WithContext(ctx)
		rows, err := db.Model(model).Order("id").Rows()
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec := domain.NewRecord(c)
			if err := db.ScanRows(rows, rec); err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// ListAll drains List into a slice of concrete values.
func ListAll[T any, P interface {
	*T
	domain.Record
}](ctx context.Context, g *Gateway, c domain.Collection) ([]T, error) {
	out := []T{}
	for rec, err := range g.List(ctx, c) {
		if err != nil {
			return nil, err
		}
		p, ok := rec.(P)
		if !ok {
			return nil, fmt.Errorf("list %s: unexpected record type %T", c, rec)
		}
		out = append(out, *p)
	}
	return out, nil
}

func (g *Gateway) newID(c domain.Collection) string {
	if g.NewID != nil {
		return g.NewID(c)
	}
	return NewID(c)
}

// notify signals a change; a failed signal is logged but does not fail the
// already committed write.
func (g *Gateway) notify(ctx context.Context, c domain.Collection) {
	if g.Notifier == nil {
		return
	}
	if err := g.Notifier.Notify(ctx, c); err != nil {
		g.Log.Warn().Err(err).Str("collection", string(c)).Msg("change notification failed")
	}
}

// applyPatch overlays patch onto rec through its JSON form, so field names
// and types follow the record's JSON tags.
func applyPatch(rec domain.Record, patch Patch) error {
	cur, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(cur, &doc); err != nil {
		return err
	}

	merged := make(map[string]any, len(patch))
	for k, v := range patch {
		if k == "id" {
			continue
		}
		old, known := doc[k]
		if !known {
			return fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
		if v == nil {
			v = emptyLike(old)
		}
		if v == nil {
			v = emptyField(rec, k)
		}
		merged[k] = v
	}

	b, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := json.Unmarshal(b, rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return nil
}

// emptyLike returns the empty value of the same JSON kind as v.
func emptyLike(v any) any {
	switch v.(type) {
	case string:
		return ""
	case float64:
		return 0
	case bool:
		return false
	case []any:
		return []any{}
	case map[string]any:
		return map[string]any{}
	}
	return nil
}

// emptyField returns the empty value of the field of rec whose JSON name is
// name. It covers fields whose stored value is itself null.
func emptyField(rec domain.Record, name string) any {
	t := reflect.TypeOf(rec)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != name {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Slice:
			return reflect.MakeSlice(f.Type, 0, 0).Interface()
		case reflect.Map:
			return reflect.MakeMap(f.Type).Interface()
		case reflect.Pointer:
			return nil
		}
		return reflect.Zero(f.Type).Interface()
	}
	return nil
}

// isUniqueViolation recognizes unique-index failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "duplicate entry")
}
