package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/repo"
	"github.com/tbourn/vendor-ledger/internal/spreadsheet"
)

func rowID(c domain.Collection, n int) string { return fmt.Sprintf("%s_row_%d", c, n) }

func TestExport_NothingAndUnknownScope(t *testing.T) {
	s := NewSpreadsheetService(newGateway(t), zerolog.Nop())
	ctx := context.Background()
	if _, err := s.Export(ctx, spreadsheet.ScopeAll); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.Export(ctx, "weekly"); !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("err = %v", err)
	}
}

func TestExportImport_RoundTripAndDuplicateGuard(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()
	for _, v := range []domain.Record{
		&domain.LifetimeVendor{Name: "Ali", Contact: "0300", Top5Items: []string{"Sugar"}, MOQ: 10, VendorRating: 4, Relationship: domain.RelationshipGood},
		&domain.DailyVendor{Name: "Karim", Contact: "0321", ItemName: "Oil", ItemRate: 55.5, UnitOfMeasurement: domain.UnitLitre},
	} {
		if _, err := g.Create(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	s := NewSpreadsheetService(g, zerolog.Nop())
	s.RowID = rowID

	only, err := s.Export(ctx, spreadsheet.ScopeDaily)
	if err != nil || only.Filename != "daily_vendors.xlsx" {
		t.Fatalf("daily export = %v, %v", only, err)
	}

	exp, err := s.Export(ctx, spreadsheet.ScopeAll)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Filename != "all_vendors.xlsx" || len(exp.Data) == 0 {
		t.Fatalf("export = %s (%d bytes)", exp.Filename, len(exp.Data))
	}

	// Every pair already exists: nothing is written but all rows come back.
	res, err := s.Import(ctx, bytes.NewReader(exp.Data))
	if err != nil {
		t.Fatal(err)
	}
	if res.Written != 0 || res.Skipped != 2 || len(res.Lifetime) != 1 || len(res.Daily) != 1 {
		t.Fatalf("result = %+v", res)
	}

	// Import into an empty store. Sugar is not in the inventory and is
	// accepted anyway.
	fresh := newGateway(t)
	s.Store = fresh
	res, err = s.Import(ctx, bytes.NewReader(exp.Data))
	if err != nil {
		t.Fatal(err)
	}
	if res.Written != 2 || res.Skipped != 0 {
		t.Fatalf("result = %+v", res)
	}
	lifetime, _ := repo.ListAll[domain.LifetimeVendor](ctx, fresh, domain.CollectionLifetime)
	if len(lifetime) != 1 || lifetime[0].ID != "lifetime_row_1" || lifetime[0].Top5Items[0] != "Sugar" || lifetime[0].MOQ != 10 {
		t.Fatalf("imported %+v", lifetime)
	}
}

func TestImport_StopsAtFirstFailedWrite(t *testing.T) {
	var buf bytes.Buffer
	err := spreadsheet.Write(&buf, []domain.LifetimeVendor{
		{Name: "A", Contact: "1"}, {Name: "B", Contact: "2"}, {Name: "C", Contact: "3"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	g := newGateway(t)
	s := NewSpreadsheetService(&flakyStore{Store: g, failCreate: 2}, zerolog.Nop())
	res, err := s.Import(context.Background(), &buf)
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("err = %v", err)
	}
	if res == nil || res.Written != 1 || len(res.Lifetime) != 3 {
		t.Fatalf("partial result = %+v", res)
	}
	stored, _ := repo.ListAll[domain.LifetimeVendor](context.Background(), g, domain.CollectionLifetime)
	if len(stored) != 1 || stored[0].Name != "A" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestImport_BadFile(t *testing.T) {
	s := NewSpreadsheetService(newGateway(t), zerolog.Nop())
	_, err := s.Import(context.Background(), bytes.NewReader([]byte("not a workbook")))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}
