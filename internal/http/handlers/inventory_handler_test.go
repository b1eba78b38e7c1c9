package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/services"
)

func TestListInventory_FilterPaginationETag(t *testing.T) {
	f := newFixture(t)
	f.invView.set(
		domain.InventoryItem{ID: "inventory_a", Item: "Rice"},
		domain.InventoryItem{ID: "inventory_b", Item: "Brinjal"},
		domain.InventoryItem{ID: "inventory_c", Item: "Wheat"},
	)

	w := f.do(http.MethodGet, "/inventory?q=RI&page_size=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[ListResponse[domain.InventoryItem]](t, w)
	if len(resp.Items) != 1 || resp.Items[0].Item != "Rice" {
		t.Fatalf("items=%+v", resp.Items)
	}
	p := resp.Pagination
	if p.Total != 2 || p.TotalPages != 2 || !p.HasNext || p.PageSize != 1 {
		t.Fatalf("pagination=%+v", p)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	w = f.do(http.MethodGet, "/inventory?q=RI&page_size=1", nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}

	// A different query has its own validator.
	w = f.do(http.MethodGet, "/inventory?q=wh", nil, "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200 for other query, got %d", w.Code)
	}

	f.invView.set(domain.InventoryItem{ID: "inventory_a", Item: "Rice"})
	w = f.do(http.MethodGet, "/inventory?q=RI&page_size=1", nil, "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200 after a new snapshot, got %d", w.Code)
	}
	if w.Header().Get("ETag") == etag {
		t.Fatal("ETag must change with the view version")
	}
}

func TestListInventory_RequiresSignIn(t *testing.T) {
	f := newFixture(t)
	f.token = ""
	w := f.do(http.MethodGet, "/inventory", nil)
	wantError(t, w, http.StatusUnauthorized, ErrCodeUnauthorized)
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("missing WWW-Authenticate")
	}
}

func TestAddInventoryItem_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"blank", services.ErrEmptyItemName, http.StatusUnprocessableEntity, ErrCodeValidation},
		{"duplicate", &services.DuplicateItemError{Item: "wheat"}, http.StatusConflict, ErrCodeConflict},
		{"backend", backendErr(), http.StatusServiceUnavailable, ErrCodeBackend},
		{"unmapped", errors.New("odd"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.inv.err = tc.err
			w := f.doJSON(http.MethodPost, "/inventory", InventoryItemRequest{Item: "Wheat"})
			e := wantError(t, w, tc.status, tc.code)
			if tc.name == "duplicate" && e.Message != `"wheat" already exists in Inventory` {
				t.Fatalf("message=%q", e.Message)
			}
		})
	}
}

func TestInventoryWrites(t *testing.T) {
	f := newFixture(t)

	w := f.doJSON(http.MethodPost, "/inventory", InventoryItemRequest{Item: "  Wheat "})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", w.Code, w.Body.String())
	}
	if it := decode[domain.InventoryItem](t, w); it.Item != "Wheat" || it.ID == "" {
		t.Fatalf("item=%+v", it)
	}

	w = f.doJSON(http.MethodPut, "/inventory/inventory_1", InventoryItemRequest{Item: "Durum"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("rename status=%d", w.Code)
	}
	if f.inv.renamed["inventory_1"] != "Durum" {
		t.Fatalf("renamed=%v", f.inv.renamed)
	}

	w = f.do(http.MethodDelete, "/inventory/inventory_1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("remove status=%d", w.Code)
	}

	w = f.do(http.MethodPost, "/inventory", nil)
	wantError(t, w, http.StatusBadRequest, ErrCodeBadRequest)

	f.inv.err = services.ErrNotFound
	w = f.doJSON(http.MethodPut, "/inventory/missing", InventoryItemRequest{Item: "x"})
	wantError(t, w, http.StatusNotFound, ErrCodeNotFound)
}
