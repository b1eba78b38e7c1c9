// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers every endpoint goes through. Errors
// always use ErrorResponse with a stable code; validation failures also name
// the offending field and values so a form can highlight them.
//
// Example error response:
//
//	HTTP/1.1 422 Unprocessable Entity
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "validation_failed",
//	  "message": "invalid topItems: Saffron",
//	  "field": "topItems",
//	  "values": ["Saffron"]
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vendor-ledger/internal/http/middleware"
	"github.com/tbourn/vendor-ledger/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
	// Field is the JSON name of the rejected field, for validation errors.
	Field string `json:"field,omitempty" example:"topItems"`
	// Values lists the rejected values of Field.
	Values []string `json:"values,omitempty"`
}

// fail aborts with the error envelope. 5xx responses are also logged with
// the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	abortWith(c, status, ErrorResponse{Code: code, Message: msg})
}

// failValidation answers 422 and copies field details from a
// *services.ValidationError anywhere in err's chain.
func failValidation(c *gin.Context, err error) {
	resp := ErrorResponse{Code: ErrCodeValidation, Message: err.Error()}
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		resp.Field, resp.Values = ve.Field, ve.Values
	}
	abortWith(c, http.StatusUnprocessableEntity, resp)
}

func abortWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is fail for callers outside the package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes 204.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
