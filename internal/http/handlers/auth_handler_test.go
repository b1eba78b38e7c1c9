package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/vendor-ledger/internal/auth"
)

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	w := f.doJSON(http.MethodPost, "/auth/signup", SignUpRequest{Email: "clerk@example.com", Password: "hunter22", DisplayName: "Clerk"})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status=%d body=%s", w.Code, w.Body.String())
	}
	if id := decode[auth.Identity](t, w); id.Token == "" || id.User.Email != "clerk@example.com" {
		t.Fatalf("identity=%+v", id)
	}

	w = f.doJSON(http.MethodPost, "/auth/signup", SignUpRequest{Email: "CLERK@example.com", Password: "hunter22"})
	wantError(t, w, http.StatusConflict, ErrCodeConflict)

	w = f.doJSON(http.MethodPost, "/auth/signup", SignUpRequest{Email: "new@example.com", Password: "123"})
	wantError(t, w, http.StatusUnprocessableEntity, ErrCodeValidation)

	w = f.doJSON(http.MethodPost, "/auth/signin", SignInRequest{Email: "clerk@example.com", Password: "wrong-one"})
	wantError(t, w, http.StatusUnauthorized, ErrCodeUnauthorized)

	w = f.doJSON(http.MethodPost, "/auth/signin", SignInRequest{Email: "clerk@example.com", Password: "hunter22"})
	if w.Code != http.StatusOK {
		t.Fatalf("signin status=%d", w.Code)
	}
	f.token = decode[auth.Identity](t, w).Token

	w = f.do(http.MethodGet, "/auth/session", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("session status=%d", w.Code)
	}
	if id := decode[auth.Identity](t, w); id.User.Email != "clerk@example.com" {
		t.Fatalf("session identity=%+v", id)
	}

	if w = f.do(http.MethodPost, "/auth/signout", nil); w.Code != http.StatusNoContent {
		t.Fatalf("signout status=%d", w.Code)
	}
	w = f.do(http.MethodGet, "/auth/session", nil)
	wantError(t, w, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)

	w := f.doJSON(http.MethodPost, "/auth/password-reset", PasswordResetRequest{Email: "owner@example.com"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	f.mailer.mu.Lock()
	token := f.mailer.token
	f.mailer.mu.Unlock()
	if token == "" {
		t.Fatal("no reset token mailed")
	}

	// Unknown emails look the same from outside.
	if w = f.doJSON(http.MethodPost, "/auth/password-reset", PasswordResetRequest{Email: "nobody@example.com"}); w.Code != http.StatusAccepted {
		t.Fatalf("unknown email status=%d", w.Code)
	}

	w = f.doJSON(http.MethodPost, "/auth/password-reset/confirm", ConfirmResetRequest{Token: "bogus", Password: "newpass1"})
	wantError(t, w, http.StatusUnprocessableEntity, ErrCodeValidation)

	if w = f.doJSON(http.MethodPost, "/auth/password-reset/confirm", ConfirmResetRequest{Token: token, Password: "newpass1"}); w.Code != http.StatusNoContent {
		t.Fatalf("confirm status=%d body=%s", w.Code, w.Body.String())
	}
	w = f.doJSON(http.MethodPost, "/auth/signin", SignInRequest{Email: "owner@example.com", Password: "newpass1"})
	if w.Code != http.StatusOK {
		t.Fatalf("signin with new password status=%d", w.Code)
	}
}

func TestFederatedSignIn_NotConfigured(t *testing.T) {
	f := newFixture(t)
	w := f.doJSON(http.MethodPost, "/auth/federated", FederatedRequest{Credential: "opaque"})
	wantError(t, w, http.StatusServiceUnavailable, ErrCodeBackend)

	w = f.doJSON(http.MethodPost, "/auth/federated", map[string]string{})
	wantError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
}
