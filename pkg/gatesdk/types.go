package gatesdk

import "time"

// User is the principal payload returned by login, callback, and status.
type User struct {
	ID                string   `json:"id"`
	DisplayName       string   `json:"displayName"`
	UserPrincipalName string   `json:"userPrincipalName"`
	Roles             []string `json:"roles"`
}

// LoginResponse is returned by the login-initiation endpoint. The browser
// should redirect to AuthorizeURL; State correlates the eventual callback.
type LoginResponse struct {
	AuthorizeURL string `json:"authorizeUrl"`
	State        string `json:"state"`
}

// SessionResponse is returned after a successful code exchange or refresh.
type SessionResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresOn time.Time `json:"expiresOn"`
}

// TokenRequest is the body of the token-exchange endpoint. Either State
// (server-held verifier) or CodeVerifier (public client) accompanies the code.
type TokenRequest struct {
	Code         string `json:"code"`
	State        string `json:"state,omitempty"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
}

// RefreshRequest is the body of the session-refresh endpoint. RefreshToken is
// optional; when present it seeds the gateway's upstream token cache.
type RefreshRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// LogoutRequest is the body of the logout endpoint.
type LogoutRequest struct {
	UserID string `json:"userId"`
}

// StatusResponse reports the validity and decoded principal of a presented
// session token.
type StatusResponse struct {
	Valid bool `json:"valid"`
	User  User `json:"user"`
}

// ErrorResponse mirrors the gateway's JSON error body for client-side decoding.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retryAfter,omitempty"`
}

// AuditEvent is the admin-facing shape of one audit trail entry.
type AuditEvent struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	ActorID   string    `json:"actorId,omitempty"`
	SourceIP  string    `json:"sourceIp,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditListResponse is returned by the admin audit listing endpoint.
type AuditListResponse struct {
	Events []AuditEvent `json:"events"`
}

// HealthChecks itemizes dependency health for the readiness probe.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// HealthResponse is returned by the liveness and readiness endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
