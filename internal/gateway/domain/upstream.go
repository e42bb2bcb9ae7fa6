package domain

import "time"

// UpstreamTokenRecord holds the cached provider tokens for one principal.
// The refresh token never leaves the process unencrypted; it is sealed at
// rest and opened only for the refresh call.
type UpstreamTokenRecord struct {
	PrincipalID        string
	AccessToken        string
	SealedRefreshToken []byte // nil when the provider issued no refresh token
	ExpiresAt          time.Time
	ObtainedAt         time.Time
}

// CanRefresh reports whether the record carries a refresh token.
func (r UpstreamTokenRecord) CanRefresh() bool {
	return len(r.SealedRefreshToken) > 0
}

// FreshFor reports whether the access token is still usable at now with the
// given safety buffer before the real expiry.
func (r UpstreamTokenRecord) FreshFor(now time.Time, buffer time.Duration) bool {
	return now.Add(buffer).Before(r.ExpiresAt)
}

// TokenResult is what a successful code exchange or refresh yields: the
// provider tokens plus the identity asserted by the verified ID token.
type TokenResult struct {
	AccessToken  string
	RefreshToken string // empty when the provider withheld one
	ExpiresAt    time.Time
	Identity     Principal
}
