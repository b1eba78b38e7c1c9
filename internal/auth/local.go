package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/vendor-ledger/internal/domain"
	"github.com/tbourn/vendor-ledger/internal/repo"
)

// Config holds LocalProvider settings.
type Config struct {
	Secret   []byte
	Issuer   string
	TokenTTL time.Duration
	ResetTTL time.Duration
}

// Claims are the access token claims. Subject is the user id and ID the
// session id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// LocalProvider keeps accounts in the application database.
type LocalProvider struct {
	DB        *gorm.DB
	Mailer    Mailer
	Federated FederatedVerifier
	Log       zerolog.Logger

	cfg        Config
	bcryptCost int
	now        func() time.Time

	mu       sync.Mutex
	watchers map[string]map[chan *domain.User]struct{}
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider validates cfg and returns a provider. A nil mailer logs
// reset tokens.
func NewLocalProvider(db *gorm.DB, cfg Config, mailer Mailer, log zerolog.Logger) (*LocalProvider, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %s", cfg.TokenTTL)
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "vendor-ledger"
	}
	if mailer == nil {
		mailer = LogMailer{Log: log}
	}
	return &LocalProvider{
		DB:         db,
		Mailer:     mailer,
		Log:        log,
		cfg:        cfg,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		watchers:   map[string]map[chan *domain.User]struct{}{},
	}, nil
}

// SignIn checks an email/password pair and issues a token.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	u, err := repo.GetUserByEmail(ctx, p.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issue(ctx, u)
}

// SignUp creates an account and signs it in.
func (p *LocalProvider) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	email, err := cleanEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		Provider:     "password",
	}
	if err := repo.CreateUser(ctx, p.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	p.Log.Info().Str("user_id", u.ID).Msg("user signed up")
	return p.issue(ctx, u)
}

// SignInWithFederatedProvider signs in the account a verified external
// credential belongs to, creating it on first use.
func (p *LocalProvider) SignInWithFederatedProvider(ctx context.Context, credential string) (*Identity, error) {
	if p.Federated == nil {
		return nil, ErrFederatedUnavailable
	}
	email, name, err := p.Federated.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if email, err = cleanEmail(email); err != nil {
		return nil, err
	}
	u, err := repo.GetUserByEmail(ctx, p.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		u = &domain.User{ID: uuid.NewString(), Email: email, DisplayName: name, Provider: "federated"}
		err = repo.CreateUser(ctx, p.DB, u)
	}
	if err != nil {
		return nil, err
	}
	return p.issue(ctx, u)
}

// SendPasswordReset mails a one-time reset token. An unknown email is not
// reported to the caller.
func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	u, err := repo.GetUserByEmail(ctx, p.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			p.Log.Debug().Msg("password reset for unknown email")
			return nil
		}
		return err
	}
	token, err := randomToken()
	if err != nil {
		return err
	}
	now := p.now().UTC()
	r := &domain.PasswordReset{
		TokenHash: hashToken(token),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.cfg.ResetTTL),
	}
	if err := repo.CreatePasswordReset(ctx, p.DB, r); err != nil {
		return err
	}
	return p.Mailer.SendPasswordReset(ctx, u.Email, token)
}

// ConfirmPasswordReset sets a new password using a token from
// SendPasswordReset. Each token works once.
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLen {
		return ErrWeakPassword
	}
	r, err := repo.ConsumePasswordReset(ctx, p.DB, hashToken(strings.TrimSpace(token)), p.now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrResetUnusable) {
			return ErrResetInvalid
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return repo.UpdatePasswordHash(ctx, p.DB, r.UserID, string(hash))
}

// SignOut revokes the session behind token and ends its subscriptions.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.parse(token)
	if err != nil {
		return err
	}
	if err := repo.RevokeSession(ctx, p.DB, claims.ID, p.now().UTC()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	p.publish(claims.ID, nil)
	return nil
}

// Authenticate resolves a token to its user. Expired, revoked or forged
// tokens yield ErrInvalidToken.
func (p *LocalProvider) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := p.parse(token)
	if err != nil {
		return nil, err
	}
	s, err := repo.GetSession(ctx, p.DB, claims.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !s.Active(p.now()) || s.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}
	u, err := repo.GetUser(ctx, p.DB, s.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &Identity{User: *u, SessionID: s.ID, ExpiresAt: s.ExpiresAt}, nil
}

// Subscribe implements Provider.
func (p *LocalProvider) Subscribe(ctx context.Context, token string) (<-chan *domain.User, error) {
	id, err := p.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	ch := make(chan *domain.User, 1)
	user := id.User
	ch <- &user

	p.mu.Lock()
	set := p.watchers[id.SessionID]
	if set == nil {
		set = map[chan *domain.User]struct{}{}
		p.watchers[id.SessionID] = set
	}
	set[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		timer := time.NewTimer(time.Until(id.ExpiresAt))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			p.unwatch(id.SessionID, ch, false)
		case <-timer.C:
			p.unwatch(id.SessionID, ch, true)
		}
	}()
	return ch, nil
}

// publish ends every subscription of session sid with u (nil = signed out).
func (p *LocalProvider) publish(sid string, u *domain.User) {
	p.mu.Lock()
	set := p.watchers[sid]
	delete(p.watchers, sid)
	p.mu.Unlock()
	for ch := range set {
		deliverAndClose(ch, u)
	}
}

// unwatch removes ch if it is still registered. With signal set it sends the
// final nil before closing.
func (p *LocalProvider) unwatch(sid string, ch chan *domain.User, signal bool) {
	p.mu.Lock()
	set := p.watchers[sid]
	_, ok := set[ch]
	if ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(p.watchers, sid)
		}
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	if signal {
		deliverAndClose(ch, nil)
		return
	}
	close(ch)
}

// deliverAndClose replaces any undelivered value with u and closes ch.
func deliverAndClose(ch chan *domain.User, u *domain.User) {
	select {
	case <-ch:
	default:
	}
	ch <- u
	close(ch)
}

func (p *LocalProvider) issue(ctx context.Context, u *domain.User) (*Identity, error) {
	now := p.now().UTC()
	s := &domain.AuthSession{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.cfg.TokenTTL),
	}
	if err := repo.CreateSession(ctx, p.DB, s); err != nil {
		return nil, err
	}
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			ID:        s.ID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Identity{User: *u, SessionID: s.ID, Token: signed, ExpiresAt: s.ExpiresAt}, nil
}

func (p *LocalProvider) parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return p.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func cleanEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	a, err := mail.ParseAddress(email)
	if err != nil || a.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
