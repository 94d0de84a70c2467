package handlers

import "napdiary/internal/ctxstore"

const (
	userKey      = ctxstore.Key("user")
	childKey     = ctxstore.Key("child")
	requestIDKey = ctxstore.Key("requestId")
	loggerKey    = ctxstore.Key("logger")
)

const (
	ErrInvalidFormData     = "Invalid form data"
	ErrUnauthorized        = "Unauthorized"
	ErrForbidden           = "Forbidden"
	ErrNotFound            = "Not found"
	ErrInternalServerError = "Internal server error"
	ErrTooManyRequests     = "Too many attempts, please wait a minute and try again"
)

// RequestIDHeader carries the request id in and out
const RequestIDHeader = "X-Request-ID"
