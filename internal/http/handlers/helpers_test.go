package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/vendor-ledger/internal/auth"
	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/http/middleware"
	"github.com/tbourn/vendor-ledger/internal/repo"
	"github.com/tbourn/vendor-ledger/internal/services"
	"github.com/tbourn/vendor-ledger/internal/spreadsheet"
)

var errBoom = errors.New("boom")

// ---- views ----

type fakeView[T any] struct {
	mu      sync.Mutex
	items   []T
	version uint64
	changed chan struct{}
}

func newView[T any](items ...T) *fakeView[T] {
	return &fakeView[T]{items: items, version: 1, changed: make(chan struct{})}
}

func (v *fakeView[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]T(nil), v.items...)
}

func (v *fakeView[T]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

func (v *fakeView[T]) Changed() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.changed
}

func (v *fakeView[T]) set(items ...T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = items
	v.version++
	close(v.changed)
	v.changed = make(chan struct{})
}

// ---- services ----

type fakeInventory struct {
	err     error
	added   []string
	renamed map[string]string
	removed []string
}

func (f *fakeInventory) Add(_ context.Context, name string) (*domain.InventoryItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.added = append(f.added, name)
	return &domain.InventoryItem{ID: fmt.Sprintf("inventory_%d", len(f.added)), Item: strings.TrimSpace(name)}, nil
}

func (f *fakeInventory) Rename(_ context.Context, id, name string) error {
	if f.err != nil {
		return f.err
	}
	if f.renamed == nil {
		f.renamed = map[string]string{}
	}
	f.renamed[id] = name
	return nil
}

func (f *fakeInventory) Remove(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, id)
	return nil
}

type fakeVendors struct {
	res      *services.SaveResult
	err      error
	lifetime domain.LifetimeVendor
	daily    domain.DailyVendor
	deleted  []string
}

func (f *fakeVendors) SaveLifetime(_ context.Context, v domain.LifetimeVendor) (*services.SaveResult, error) {
	f.lifetime = v
	return f.res, f.err
}

func (f *fakeVendors) SaveDaily(_ context.Context, v domain.DailyVendor) (*services.SaveResult, error) {
	f.daily = v
	return f.res, f.err
}

func (f *fakeVendors) Delete(_ context.Context, c domain.Collection, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, string(c)+"/"+id)
	return nil
}

type fakeSheets struct {
	export  *services.Export
	res     *services.ImportResult
	err     error
	scope   spreadsheet.Scope
	imports int
}

func (f *fakeSheets) Export(_ context.Context, scope spreadsheet.Scope) (*services.Export, error) {
	f.scope = scope
	return f.export, f.err
}

func (f *fakeSheets) Import(_ context.Context, r io.Reader) (*services.ImportResult, error) {
	f.imports++
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	return f.res, f.err
}

// ---- fixture ----

type fixture struct {
	r        *gin.Engine
	db       *gorm.DB
	provider *auth.LocalProvider
	mailer   *captureMailer

	inv     *fakeInventory
	vendors *fakeVendors
	sheets  *fakeSheets

	invView   *fakeView[domain.InventoryItem]
	lifeView  *fakeView[domain.LifetimeVendor]
	dailyView *fakeView[domain.DailyVendor]

	token string
}

type captureMailer struct {
	mu    sync.Mutex
	token string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
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

	mailer := &captureMailer{}
	p, err := auth.NewLocalProvider(db, auth.Config{
		Secret:   []byte("test-secret"),
		TokenTTL: time.Hour,
	}, mailer, zerolog.Nop())
	if err != nil {
		t.Fatalf("provider: %v", err)
	}

	f := &fixture{
		db:        db,
		provider:  p,
		mailer:    mailer,
		inv:       &fakeInventory{},
		vendors:   &fakeVendors{},
		sheets:    &fakeSheets{},
		invView:   newView[domain.InventoryItem](),
		lifeView:  newView[domain.LifetimeVendor](),
		dailyView: newView[domain.DailyVendor](),
	}
	h := New(Deps{
		Inventory:     f.inv,
		Vendors:       f.vendors,
		Spreadsheet:   f.sheets,
		Auth:          p,
		InventoryView: f.invView,
		LifetimeView:  f.lifeView,
		DailyView:     f.dailyView,
		DB:            db,
	})

	r := gin.New()
	r.Use(middleware.Authenticate(p))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			return err == nil && rec != nil, nil
		}))

	r.POST("/auth/signin", h.SignIn)
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/federated", h.FederatedSignIn)
	r.POST("/auth/password-reset", h.RequestPasswordReset)
	r.POST("/auth/password-reset/confirm", h.ConfirmPasswordReset)

	api := r.Group("", middleware.RequireAuth())
	api.POST("/auth/signout", h.SignOut)
	api.GET("/auth/session", h.Session)
	api.GET("/inventory", h.ListInventory)
	api.POST("/inventory", h.AddInventoryItem)
	api.PUT("/inventory/:id", h.RenameInventoryItem)
	api.DELETE("/inventory/:id", h.RemoveInventoryItem)
	api.GET("/vendors/lifetime", h.ListLifetimeVendors)
	api.POST("/vendors/lifetime", h.SaveLifetimeVendor)
	api.POST("/vendors/lifetime/top-items", h.EditTopItems)
	api.DELETE("/vendors/lifetime/:id", h.DeleteLifetimeVendor)
	api.GET("/vendors/daily", h.ListDailyVendors)
	api.POST("/vendors/daily", h.SaveDailyVendor)
	api.DELETE("/vendors/daily/:id", h.DeleteDailyVendor)
	api.GET("/stats", h.Stats)
	api.GET("/export", h.Export)
	api.POST("/import", h.Import)
	api.GET("/events", h.Events)
	f.r = r

	id, err := p.SignUp(context.Background(), "owner@example.com", "secret1", "Owner")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	f.token = id.Token
	return f
}

// do sends a request with the fixture token unless a header list overrides
// Authorization. hdr is a flat list of name, value pairs.
func (f *fixture) do(method, path string, body io.Reader, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+f.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f *fixture) doJSON(method, path string, v any, hdr ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(v)
	return f.do(method, path, bytes.NewReader(b), hdr...)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d body=%s", w.Code, status, w.Body.String())
	}
	e := decode[ErrorResponse](t, w)
	if e.Code != code {
		t.Fatalf("code=%q want %q", e.Code, code)
	}
	return e
}

func backendErr() error { return fmt.Errorf("%w: %w", services.ErrBackend, errBoom) }
