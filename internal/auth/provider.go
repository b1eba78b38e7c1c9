// Package auth is the identity collaborator of the ledger: sign-up, sign-in,
// password reset and sign-out, plus a per-session change stream that tells a
// client when its user signs out or its session ends.
//
// Access tokens are HS256 JWTs. Every token's jti names an AuthSession row,
// so a token stops authenticating as soon as its session is revoked, even
// before it expires.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailTaken           = errors.New("email already in use")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrWeakPassword         = errors.New("password should be at least 6 characters")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrResetInvalid         = errors.New("reset link is invalid or has expired")
	ErrFederatedUnavailable = errors.New("federated sign-in is not configured")
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// Identity is an authenticated user and the session backing its token.
type Identity struct {
	User      domain.User `json:"user"`
	SessionID string      `json:"-"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Provider is the identity contract consumed by the HTTP layer.
//
// Subscribe delivers the current user for the session behind token right
// away, and nil once the session is signed out or expires; the channel is
// closed after nil or when ctx is done.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (*Identity, error)
	SignInWithFederatedProvider(ctx context.Context, credential string) (*Identity, error)
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*Identity, error)
	Subscribe(ctx context.Context, token string) (<-chan *domain.User, error)
}

// FederatedVerifier checks a credential issued by an external identity
// provider and returns the account it belongs to.
type FederatedVerifier interface {
	Verify(ctx context.Context, credential string) (email, displayName string, err error)
}
