package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/repo"
)

// newGateway returns a gateway over a fresh in-memory database.
func newGateway(t *testing.T) *repo.Gateway {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.NewGateway(db, nil, zerolog.Nop())
}

func seedInventory(t *testing.T, g *repo.Gateway, names ...string) {
	t.Helper()
	for _, n := range names {
		if _, err := g.Create(context.Background(), &domain.InventoryItem{Item: n}); err != nil {
			t.Fatalf("seed %q: %v", n, err)
		}
	}
}

var errBoom = errors.New("connection reset")

// flakyStore wraps a Store and fails selected calls.
type flakyStore struct {
	Store
	failList   bool
	failCreate int // fail the n-th Create (1-based); 0 never
	creates    int
}

func (f *flakyStore) List(ctx context.Context, c domain.Collection) iter.Seq2[domain.Record, error] {
	if f.failList {
		return func(yield func(domain.Record, error) bool) { yield(nil, errBoom) }
	}
	return f.Store.List(ctx, c)
}

func (f *flakyStore) Create(ctx context.Context, rec domain.Record) (domain.Record, error) {
	f.creates++
	if f.failCreate > 0 && f.creates == f.failCreate {
		return nil, errBoom
	}
	return f.Store.Create(ctx, rec)
}

type idSet map[string]bool

func (s idSet) Has(id string) bool { return s[id] }
