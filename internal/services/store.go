package services

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/repo"
)

// Store is the persistence contract the services need. *repo.Gateway
// implements it.
type Store interface {
	Create(ctx context.Context, rec domain.Record) (domain.Record, error)
	Update(ctx context.Context, c domain.Collection, id string, patch repo.Patch) error
	Delete(ctx context.Context, c domain.Collection, id string) error
	Exists(ctx context.Context, c domain.Collection, id string) (bool, error)
	ExistsByNameContact(ctx context.Context, c domain.Collection, name, contact string) (bool, error)
	List(ctx context.Context, c domain.Collection) iter.Seq2[domain.Record, error]
}

var _ Store = (*repo.Gateway)(nil)

// KnownIDs reports whether an id is present in a live view.
type KnownIDs interface {
	Has(id string) bool
}

// loadAll drains a collection from the store.
func loadAll[T any, P interface {
	*T
	domain.Record
}](ctx context.Context, s Store, c domain.Collection) ([]T, error) {
	out := []T{}
	for rec, err := range s.List(ctx, c) {
		if err != nil {
			return nil, err
		}
		if p, ok := rec.(P); ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// loadInventory reads the current inventory straight from the store.
func loadInventory(ctx context.Context, s Store) ([]domain.InventoryItem, error) {
	return loadAll[domain.InventoryItem](ctx, s, domain.CollectionInventory)
}

// fullPatch turns rec into a patch that overwrites every field but the id.
func fullPatch(rec domain.Record) (repo.Patch, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var p repo.Patch
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	delete(p, "id")
	return p, nil
}
