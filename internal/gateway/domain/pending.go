package domain

import "time"

// PendingAuthorization correlates an in-flight authorization redirect with
// the PKCE verifier minted for it. Keyed by the opaque state value; consumed
// exactly once when the provider redirects back.
type PendingAuthorization struct {
	State        string
	CodeVerifier string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the pending authorization is past its deadline.
func (p PendingAuthorization) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
