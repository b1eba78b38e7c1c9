package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

func TestUsers_CreateAndLookup(t *testing.T) {
	db := newIdemDB(t, &domain.User{}, &domain.AuthSession{}, &domain.PasswordReset{})
	ctx := context.Background()

	u := &domain.User{ID: "11111111-1111-4111-8111-111111111111", Email: " Owner@Shop.PK ", DisplayName: "Owner", PasswordHash: "h"}
	if err := CreateUser(ctx, db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Email != "owner@shop.pk" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	dup := &domain.User{ID: "22222222-2222-4222-8222-222222222222", Email: "OWNER@shop.pk"}
	if err := CreateUser(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email: err = %v", err)
	}

	got, err := GetUserByEmail(ctx, db, "owner@SHOP.pk")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByEmail: %+v %v", got, err)
	}
	if _, err := GetUser(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser missing: %v", err)
	}

	if err := UpdatePasswordHash(ctx, db, u.ID, "h2"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	if err := UpdatePasswordHash(ctx, db, "missing", "h2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdatePasswordHash missing: %v", err)
	}
}

func TestSessions_Revoke(t *testing.T) {
	db := newIdemDB(t, &domain.User{}, &domain.AuthSession{})
	ctx := context.Background()
	now := time.Now().UTC()

	u := &domain.User{ID: "33333333-3333-4333-8333-333333333333", Email: "a@b.co"}
	_ = CreateUser(ctx, db, u)
	s := &domain.AuthSession{ID: "44444444-4444-4444-8444-444444444444", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := CreateSession(ctx, db, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := RevokeSession(ctx, db, s.ID, now); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if err := RevokeSession(ctx, db, s.ID, now); err != nil {
		t.Fatalf("second RevokeSession: %v", err)
	}
	got, _ := GetSession(ctx, db, s.ID)
	if got.Active(now) {
		t.Fatal("session still active after revoke")
	}
	if err := RevokeSession(ctx, db, "missing", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoke missing: %v", err)
	}
}

func TestPasswordReset_ConsumeOnce(t *testing.T) {
	db := newIdemDB(t, &domain.User{}, &domain.PasswordReset{})
	ctx := context.Background()
	now := time.Now().UTC()

	u := &domain.User{ID: "55555555-5555-4555-8555-555555555555", Email: "r@b.co"}
	_ = CreateUser(ctx, db, u)
	r := &domain.PasswordReset{TokenHash: "abc", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := CreatePasswordReset(ctx, db, r); err != nil {
		t.Fatalf("CreatePasswordReset: %v", err)
	}

	got, err := ConsumePasswordReset(ctx, db, "abc", now)
	if err != nil || got.UserID != u.ID || got.UsedAt == nil {
		t.Fatalf("Consume: %+v %v", got, err)
	}
	if _, err := ConsumePasswordReset(ctx, db, "abc", now); !errors.Is(err, ErrResetUnusable) {
		t.Fatalf("second consume: %v", err)
	}
	if _, err := ConsumePasswordReset(ctx, db, "nope", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token: %v", err)
	}

	late := &domain.PasswordReset{TokenHash: "late", UserID: u.ID, CreatedAt: now, ExpiresAt: now}
	_ = CreatePasswordReset(ctx, db, late)
	if _, err := ConsumePasswordReset(ctx, db, "late", now); !errors.Is(err, ErrResetUnusable) {
		t.Fatalf("expired token: %v", err)
	}
}
