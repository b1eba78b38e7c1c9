// Package services – InventoryService
//
// InventoryService owns writes to the inventory list. Names are trimmed and
// must be non-empty and unique after trim+lowercase; rename applies the same
// duplicate check while ignoring the item's own current value.
//
// The duplicate check reads the stored inventory under a mutex, so two
// requests in this process cannot both pass it for the same name. Writers in
// other processes are serialized by Lock when one is configured (a Redis lock
// shared by all instances); the unique item_key index stays as the backstop
// and the gateway reports it as repo.ErrDuplicate.
//
// Removing an item does not look at vendor records that reference it by
// name; those references are left as they are.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/repo"
)

const inventoryLockName = "inventory"

// Locker serializes writers across processes.
type Locker interface {
	// Obtain blocks until name is held and returns its release func.
	Obtain(ctx context.Context, name string) (release func(), err error)
}

// InventoryService adds, renames and removes inventory items.
type InventoryService struct {
	Store Store
	Log   zerolog.Logger
	// Lock, when set, is held around the duplicate check and the write.
	Lock Locker

	mu sync.Mutex
}

// NewInventoryService constructs an InventoryService.
func NewInventoryService(s Store, log zerolog.Logger) *InventoryService {
	return &InventoryService{Store: s, Log: log}
}

// Add stores a new item named name.
func (s *InventoryService) Add(ctx context.Context, name string) (*domain.InventoryItem, error) {
	tr := otel.Tracer("services/InventoryService")
	ctx, span := tr.Start(ctx, "Add")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		rejections.WithLabelValues(string(domain.CollectionInventory), "empty").Inc()
		return nil, ErrEmptyItemName
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkUnique(ctx, "", name); err != nil {
		return nil, err
	}
	rec, err := s.Store.Create(ctx, &domain.InventoryItem{Item: name})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			rejections.WithLabelValues(string(domain.CollectionInventory), "duplicate").Inc()
			return nil, &DuplicateItemError{Item: name}
		}
		return nil, storeErr(err)
	}
	item := rec.(*domain.InventoryItem)
	span.SetAttributes(attribute.String("inventory.id", item.ID))
	return item, nil
}

// Rename changes the name of item id.
func (s *InventoryService) Rename(ctx context.Context, id, name string) error {
	tr := otel.Tracer("services/InventoryService")
	ctx, span := tr.Start(ctx, "Rename", trace.WithAttributes(attribute.String("inventory.id", id)))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		rejections.WithLabelValues(string(domain.CollectionInventory), "empty").Inc()
		return ErrEmptyItemName
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.checkUnique(ctx, id, name); err != nil {
		return err
	}
	err = s.Store.Update(ctx, domain.CollectionInventory, id, repo.Patch{"item": name})
	if errors.Is(err, repo.ErrDuplicate) {
		rejections.WithLabelValues(string(domain.CollectionInventory), "duplicate").Inc()
		return &DuplicateItemError{Item: name}
	}
	return storeErr(err)
}

// Remove deletes item id. Removing a missing item is not an error.
func (s *InventoryService) Remove(ctx context.Context, id string) error {
	tr := otel.Tracer("services/InventoryService")
	ctx, span := tr.Start(ctx, "Remove", trace.WithAttributes(attribute.String("inventory.id", id)))
	defer span.End()

	return storeErr(s.Store.Delete(ctx, domain.CollectionInventory, id))
}

// acquire takes s.mu and then Lock, if any.
func (s *InventoryService) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.Lock == nil {
		return s.mu.Unlock, nil
	}
	unlock, err := s.Lock.Obtain(ctx, inventoryLockName)
	if err != nil {
		s.mu.Unlock()
		s.Log.Warn().Err(err).Msg("inventory lock")
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return func() {
		unlock()
		s.mu.Unlock()
	}, nil
}

// checkUnique rejects name if another item (not selfID) has the same
// normalized value. Caller holds s.mu.
func (s *InventoryService) checkUnique(ctx context.Context, selfID, name string) error {
	items, err := loadInventory(ctx, s.Store)
	if err != nil {
		return storeErr(err)
	}
	key := domain.Normalize(name)
	for _, it := range items {
		if it.ID != selfID && domain.Normalize(it.Item) == key {
			rejections.WithLabelValues(string(domain.CollectionInventory), "duplicate").Inc()
			return &DuplicateItemError{Item: name}
		}
	}
	return nil
}
