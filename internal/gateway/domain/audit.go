package domain

import "time"

// Audit event categories. Stored as-is in the audit trail and matched by the
// admin listing filter.
const (
	AuditLogin          = "login"
	AuditLogout         = "logout"
	AuditAuthFailure    = "auth_failure"
	AuditRefreshFailure = "refresh_failure"
	AuditAccessDenied   = "access_denied"
	AuditRateLimited    = "rate_limited"
)

// AuditEvent is one security-relevant occurrence. Detail must never contain
// credentials, authorization codes, verifiers or tokens; fingerprints only.
type AuditEvent struct {
	ID        string
	Category  string
	ActorID   string // principal ID when known, empty for anonymous
	SourceIP  string
	Detail    string
	CreatedAt time.Time
}
