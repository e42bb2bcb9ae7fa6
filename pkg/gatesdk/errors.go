package gatesdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Machine-readable error codes returned by the gateway. Clients branch on
// these to decide between "retry with a fresh token" and "log in again".
const (
	CodeInvalidRequest          = "invalid_request"
	CodeMissingToken            = "missing_token"
	CodeMalformedToken          = "malformed_token"
	CodeBadSignature            = "bad_signature"
	CodeTokenExpired            = "token_expired"
	CodeInvalidState            = "invalid_or_expired_state"
	CodeAuthenticationError     = "authentication_error"
	CodeRefreshFailed           = "token_refresh_failed"
	CodeExpiredNoRefresh        = "token_expired_no_refresh"
	CodeInsufficientPermissions = "insufficient_permissions"
	CodeRateLimitExceeded       = "rate_limit_exceeded"
	CodeProviderError           = "provider_error"
	CodeServerError             = "server_error"
)

// APIError is the gateway's wire-level error: an HTTP status, a stable code,
// and a description that deliberately says no more than the client needs.
// It implements the error interface so handlers and the SDK share one type.
type APIError struct {
	// StatusCode is the HTTP status for this error.
	StatusCode int `json:"-"`

	// Code is the machine-readable error code.
	Code string `json:"error"`

	// Description is a human-readable description.
	Description string `json:"error_description"`

	// RetryAfter is the whole seconds a rate-limited caller should wait.
	// Only set on 429 responses.
	RetryAfter int `json:"retryAfter,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", e.RetryAfter))
	}
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

var (
	// ErrInvalidRequest is returned when the request is malformed or missing
	// required parameters.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        CodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrMissingToken is returned when no bearer session token was presented.
	ErrMissingToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeMissingToken,
		Description: "authorization header with a bearer session token is required",
	}

	// ErrMalformedToken is returned when the session token is structurally
	// invalid.
	ErrMalformedToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeMalformedToken,
		Description: "the session token is malformed",
	}

	// ErrBadSignature is returned when the session token signature does not
	// verify; the token was tampered with or signed by another key.
	ErrBadSignature = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeBadSignature,
		Description: "the session token signature is invalid",
	}

	// ErrTokenExpired is returned when a well-signed session token has lapsed.
	ErrTokenExpired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeTokenExpired,
		Description: "the session token has expired",
	}

	// ErrInvalidState is returned when the callback state is unknown, already
	// used, or expired. The caller must start a fresh login.
	ErrInvalidState = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeInvalidState,
		Description: "the login flow is invalid or has expired, start a new login",
	}

	// ErrAuthentication is the generic 401 for failed code exchange. Detail
	// goes to the audit trail, never to the client.
	ErrAuthentication = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeAuthenticationError,
		Description: "authentication failed",
	}

	// ErrRefreshFailed is returned when the upstream refresh grant failed and
	// the caller must re-authenticate in full.
	ErrRefreshFailed = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeRefreshFailed,
		Description: "upstream token refresh failed, re-authentication required",
	}

	// ErrExpiredNoRefresh is returned when the cached upstream token is
	// expired and no refresh token is held.
	ErrExpiredNoRefresh = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        CodeExpiredNoRefresh,
		Description: "upstream access expired, re-authentication required",
	}

	// ErrInsufficientPermissions is the 403 for a failed role check. It never
	// names the missing role.
	ErrInsufficientPermissions = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        CodeInsufficientPermissions,
		Description: "insufficient permissions",
	}

	// ErrServerError covers internal failures; no partial authentication is
	// attempted.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        CodeServerError,
		Description: "internal server error",
	}
)

// NewRateLimitError builds the 429 response carrying the caller's remaining
// wait in whole seconds.
func NewRateLimitError(retryAfter int) *APIError {
	return &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        CodeRateLimitExceeded,
		Description: "too many requests, retry later",
		RetryAfter:  retryAfter,
	}
}

// NewProviderError surfaces an error the authorization server reported on the
// callback, without attempting an exchange.
func NewProviderError(description string) *APIError {
	if description == "" {
		description = "the authorization server rejected the login"
	}
	return &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        CodeProviderError,
		Description: description,
	}
}
