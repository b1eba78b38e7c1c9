// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves bearer tokens to identities. Authenticate runs on every
// request and only annotates the context, so that the logger, idempotency
// lookup and rate limiter can key by user; RequireAuth is mounted on the
// protected route group and rejects requests without an identity.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vendor-ledger/internal/auth"
)

// CtxKeyUserID is the Gin context key holding the authenticated user id.
const CtxKeyUserID = "userID"

const (
	ctxKeyIdentity = "auth.identity"
	ctxKeyToken    = "auth.token"
)

// Authenticator resolves an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// Authenticate stores the identity behind a valid "Authorization: Bearer"
// token in the context. Missing or invalid tokens are not an error here.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c)
		if tok == "" || a == nil {
			c.Next()
			return
		}
		id, err := a.Authenticate(c.Request.Context(), tok)
		switch {
		case err == nil:
			c.Set(ctxKeyIdentity, id)
			c.Set(ctxKeyToken, tok)
			c.Set(CtxKeyUserID, id.User.ID)
		case !errors.Is(err, auth.ErrInvalidToken):
			LoggerFrom(c).Warn().Err(err).Msg("token lookup failed")
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 unless Authenticate found an identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); ok {
			c.Next()
			return
		}
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "unauthorized",
			"message":    "sign in required",
		})
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*auth.Identity)
	return id, ok && id != nil
}

// TokenFrom returns the access token Authenticate accepted.
func TokenFrom(c *gin.Context) string {
	s, _ := c.Get(ctxKeyToken)
	tok, _ := s.(string)
	return tok
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
