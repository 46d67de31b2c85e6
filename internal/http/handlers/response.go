// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response utilities shared by every endpoint: the
// structured error envelope, consistent JSON serialization, and helpers for
// the common success shapes. Guests, the back office, and the payment
// gateway's webhook client all consume the same envelope, so its shape and
// codes must stay stable.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`
//     (see errors.go for the full vocabulary, from `bad_request` to
//     `invalid_signature`).
//   - `fail()` centralizes error formatting and logs 5xx responses with
//     request context. Webhook processing failures go through it too, which
//     is how a redelivered notification stays correlatable in the logs.
//   - `ok()` and `noContent()` keep success responses uniform.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "gift not found"
//	}
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "id": "abc123", "title": "Lua de mel" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noivosapp/go-wedding-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: correlation ID echoed from the X-Request-ID header; for
//     webhook deliveries this is what support uses to match a gateway retry
//     against server logs.
//   - Code: a stable, machine-readable string (see errors.go constants).
//   - Message: a human-readable description, safe for display to guests.
//
// This struct is referenced by the Swagger annotations on every handler.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"gift not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
//
// It constructs an ErrorResponse, writes it as JSON with the given HTTP
// status, and calls gin.Context.AbortWithStatusJSON to stop further
// processing.
//
// Server errors (>=500) are logged with the request-scoped logger so a
// failed reconciliation or storage error carries its correlation ID.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// The router's NoRoute/NoMethod fallbacks call it so even unmatched requests
// answer with the standard envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response with the given status code.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response. Used by the operator
// status-change endpoint, which has nothing useful to echo back.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
