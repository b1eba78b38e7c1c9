package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/services"
	"github.com/tbourn/vendor-ledger/internal/spreadsheet"
)

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.sheets.export = &services.Export{Filename: "daily_vendors.xlsx", Data: []byte("PK..")}

	w := f.do(http.MethodGet, "/export?scope=daily", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if f.sheets.scope != spreadsheet.ScopeDaily {
		t.Fatalf("scope=%q", f.sheets.scope)
	}
	if ct := w.Header().Get("Content-Type"); ct != spreadsheet.ContentType {
		t.Fatalf("content-type=%q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="daily_vendors.xlsx"` {
		t.Fatalf("content-disposition=%q", cd)
	}
	if w.Body.String() != "PK.." {
		t.Fatalf("body=%q", w.Body.String())
	}

	w = f.do(http.MethodGet, "/export?scope=weekly", nil)
	wantError(t, w, http.StatusBadRequest, ErrCodeBadRequest)

	f.sheets.err = services.ErrNothingToExport
	w = f.do(http.MethodGet, "/export", nil)
	wantError(t, w, http.StatusNotFound, ErrCodeNotFound)
	if f.sheets.scope != spreadsheet.ScopeAll {
		t.Fatalf("default scope=%q", f.sheets.scope)
	}
}

func (f *fixture) upload(hdr ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "vendors.xlsx")
	_, _ = fw.Write([]byte("workbook"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func TestImport_ReplaysWithIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.sheets.res = &services.ImportResult{
		Lifetime: []domain.LifetimeVendor{{ID: "lifetime_u_1", Name: "Acme", Contact: "1"}},
		Daily:    []domain.DailyVendor{},
		Written:  1,
	}

	first := f.upload("Idempotency-Key", "import-1")
	if first.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", first.Code, first.Body.String())
	}
	resp := decode[ImportResponse](t, first)
	if resp.Message != "Data imported successfully!" || resp.Written != 1 || len(resp.Lifetime) != 1 {
		t.Fatalf("resp=%+v", resp)
	}
	if first.Header().Get("Idempotency-Replayed") != "" {
		t.Fatal("first response must not be a replay")
	}

	second := f.upload("Idempotency-Key", "import-1")
	if second.Code != http.StatusOK || second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("status=%d replayed=%q", second.Code, second.Header().Get("Idempotency-Replayed"))
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body differs:\n%s\n%s", second.Body.String(), first.Body.String())
	}
	if f.sheets.imports != 1 {
		t.Fatalf("imports=%d want 1", f.sheets.imports)
	}

	// No key, no replay.
	f.upload()
	if f.sheets.imports != 2 {
		t.Fatalf("imports=%d want 2", f.sheets.imports)
	}
}

func TestImport_Failures(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/import", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	wantError(t, w, http.StatusBadRequest, ErrCodeBadRequest)

	f.sheets.err = &services.ValidationError{Field: "file", Msg: "Failed to import data. Please check the file format."}
	w = f.upload()
	e := wantError(t, w, http.StatusUnprocessableEntity, ErrCodeValidation)
	if e.Message != "Failed to import data. Please check the file format." {
		t.Fatalf("message=%q", e.Message)
	}

	f.sheets.err = backendErr()
	f.sheets.res = &services.ImportResult{Written: 2}
	w = f.upload("Idempotency-Key", "import-2")
	e = wantError(t, w, http.StatusServiceUnavailable, ErrCodeBackend)
	if !strings.Contains(e.Message, "after 2 records") {
		t.Fatalf("message=%q", e.Message)
	}

	// A failed import is not stored, so the retry runs again.
	before := f.sheets.imports
	f.sheets.err = nil
	if w = f.upload("Idempotency-Key", "import-2"); w.Code != http.StatusOK {
		t.Fatalf("retry status=%d", w.Code)
	}
	if f.sheets.imports != before+1 {
		t.Fatal("retry after failure must import again")
	}
}
