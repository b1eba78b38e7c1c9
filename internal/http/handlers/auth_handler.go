// Auth HTTP handlers.
//
// Sign-in, sign-up and federated sign-in return an Identity carrying a
// bearer token. Password reset is two steps: request (always 202, so the
// endpoint does not reveal which emails have accounts) and confirm.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vendor-ledger/internal/auth"
	"github.com/tbourn/vendor-ledger/internal/http/middleware"
)

// SignInRequest is the payload for POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email"    binding:"required" example:"owner@example.com"`
	Password string `json:"password" binding:"required"`
}

// SignUpRequest is the payload for POST /auth/signup.
type SignUpRequest struct {
	Email       string `json:"email"    binding:"required" example:"owner@example.com"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

// FederatedRequest carries a credential issued by the external provider.
type FederatedRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// PasswordResetRequest asks for a reset link.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// ConfirmResetRequest sets a new password with a reset token.
type ConfirmResetRequest struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// failAuth maps identity errors onto the error envelope.
func failAuth(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrResetInvalid):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, auth.ErrFederatedUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeBackend, err.Error())
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("identity provider failure")
		fail(c, http.StatusServiceUnavailable, ErrCodeBackend, "identity service unavailable")
	}
}

// SignIn godoc
// @ID          signIn
// @Summary     Sign in with email and password
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SignInRequest  true  "Credentials"
// @Success     200  {object} auth.Identity
// @Failure     401  {object} handlers.ErrorResponse "Invalid credentials"
// @Router      /auth/signin [post]
func (h *Handlers) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}
	id, err := h.d.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failAuth(c, err)
		return
	}
	ok(c, http.StatusOK, id)
}

// SignUp godoc
// @ID          signUp
// @Summary     Create an account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SignUpRequest  true  "Account"
// @Success     201  {object} auth.Identity
// @Failure     409  {object} handlers.ErrorResponse "Email taken"
// @Failure     422  {object} handlers.ErrorResponse "Invalid email or weak password"
// @Router      /auth/signup [post]
func (h *Handlers) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}
	id, err := h.d.Auth.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		failAuth(c, err)
		return
	}
	ok(c, http.StatusCreated, id)
}

// FederatedSignIn godoc
// @ID          federatedSignIn
// @Summary     Sign in with an external identity provider
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.FederatedRequest  true  "Credential"
// @Success     200  {object} auth.Identity
// @Failure     401  {object} handlers.ErrorResponse "Credential rejected"
// @Failure     503  {object} handlers.ErrorResponse "Not configured"
// @Router      /auth/federated [post]
func (h *Handlers) FederatedSignIn(c *gin.Context) {
	var req FederatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "credential is required")
		return
	}
	id, err := h.d.Auth.SignInWithFederatedProvider(c.Request.Context(), req.Credential)
	if err != nil {
		failAuth(c, err)
		return
	}
	ok(c, http.StatusOK, id)
}

// RequestPasswordReset godoc
// @ID          requestPasswordReset
// @Summary     Send a password reset link
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.PasswordResetRequest  true  "Email"
// @Success     202  {object} map[string]string
// @Failure     422  {object} handlers.ErrorResponse "Invalid email"
// @Router      /auth/password-reset [post]
func (h *Handlers) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email is required")
		return
	}
	if err := h.d.Auth.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		failAuth(c, err)
		return
	}
	ok(c, http.StatusAccepted, gin.H{"message": "Password reset email sent!"})
}

// ConfirmPasswordReset godoc
// @ID          confirmPasswordReset
// @Summary     Set a new password with a reset token
// @Tags        Auth
// @Accept      json
// @Param       body  body  handlers.ConfirmResetRequest  true  "Token and password"
// @Success     204  {string} string "No Content"
// @Failure     422  {object} handlers.ErrorResponse "Invalid token or weak password"
// @Router      /auth/password-reset/confirm [post]
func (h *Handlers) ConfirmPasswordReset(c *gin.Context) {
	var req ConfirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token and password are required")
		return
	}
	if err := h.d.Auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		failAuth(c, err)
		return
	}
	noContent(c)
}

// SignOut godoc
// @ID          signOut
// @Summary     End the current session
// @Tags        Auth
// @Security    BearerAuth
// @Success     204  {string} string "No Content"
// @Router      /auth/signout [post]
func (h *Handlers) SignOut(c *gin.Context) {
	if err := h.d.Auth.SignOut(c.Request.Context(), middleware.TokenFrom(c)); err != nil {
		failAuth(c, err)
		return
	}
	noContent(c)
}

// Session godoc
// @ID          session
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} auth.Identity
// @Failure     401  {object} handlers.ErrorResponse "Sign in required"
// @Router      /auth/session [get]
func (h *Handlers) Session(c *gin.Context) {
	id, found := middleware.IdentityFrom(c)
	if !found {
		failAuth(c, auth.ErrInvalidToken)
		return
	}
	ok(c, http.StatusOK, id)
}
