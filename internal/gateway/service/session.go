package service

import (
	"fmt"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/domain"
	"github.com/adminbridge/authgate/pkg/idx"
	"github.com/adminbridge/authgate/pkg/jwtx"
)

// SessionService issues and verifies the gateway's own session tokens. The
// session token is what clients hold; it asserts the principal's identity and
// roles without exposing any provider token.
type SessionService struct {
	KeyManager *jwtx.KeyManager
	Issuer     string
	TTL        time.Duration
}

// Issue signs a session token for the principal. Each session gets a fresh
// SID that survives within the token only; re-login mints a new one.
func (s *SessionService) Issue(p domain.Principal) (token string, expiresOn time.Time, err error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	now := time.Now()
	claims := jwtx.NewSessionClaims(p.ID, idx.New().String(), p.DisplayName, p.UPN, p.Roles, ttl, s.Issuer, now)

	signer := s.KeyManager.GetSigner()
	if signer == nil {
		return "", time.Time{}, fmt.Errorf("no signing key available")
	}

	token, err = signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *SessionService) Verify(raw string) (jwtx.SessionClaims, error) {
	return s.KeyManager.Verifier.Verify(raw)
}

// PrincipalFromClaims rebuilds the Principal a verified token asserts.
func PrincipalFromClaims(claims jwtx.SessionClaims) domain.Principal {
	return domain.Principal{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
		UPN:         claims.UserPrincipalName,
		Roles:       claims.Roles,
	}
}
