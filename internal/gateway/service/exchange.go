package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/adminbridge/authgate/internal/gateway/domain"
	"github.com/adminbridge/authgate/pkg/cryptox"
	"github.com/adminbridge/authgate/pkg/slogx"
)

var (
	ErrInvalidState   = errors.New("invalid_or_expired_state")
	ErrExchangeFailed = errors.New("authentication_error")
)

// ExchangeService drives the authorization-code flow: it mints the redirect
// with a fresh state and PKCE pair, then redeems the returned code against
// the provider.
type ExchangeService struct {
	Provider Provider
	Pending  *PendingStore
	Audit    *AuditService
}

// minStateLength is 128 bits of entropy in unpadded base64url. Caller-chosen
// states below this are replaced with a generated one.
const minStateLength = 22

// BeginLogin mints a state and PKCE verifier, stores the correlation, and
// returns the authorization redirect URL with the state. A caller-supplied
// requestedState is honored when it carries enough entropy; otherwise a fresh
// state is generated.
func (s *ExchangeService) BeginLogin(ctx context.Context, requestedState string) (authorizeURL, state string, err error) {
	state = requestedState
	if len(state) < minStateLength {
		state, err = cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return "", "", fmt.Errorf("mint state: %w", err)
		}
	}

	verifier, err := GeneratePKCEVerifier()
	if err != nil {
		return "", "", fmt.Errorf("mint verifier: %w", err)
	}

	if err := s.Pending.Put(state, verifier); err != nil {
		return "", "", err
	}

	return s.Provider.AuthCodeURL(state, verifier), state, nil
}

// Exchange redeems the authorization code using the verifier that was stored
// for state. The state is consumed before talking to the provider, so a
// failed exchange still burns it.
func (s *ExchangeService) Exchange(ctx context.Context, code, state, sourceIP string) (domain.TokenResult, error) {
	l := slogx.FromContext(ctx)

	verifier, err := s.Pending.Take(state)
	if err != nil {
		s.Audit.AuthFailure(ctx, "", sourceIP, "unknown or expired state")
		return domain.TokenResult{}, ErrInvalidState
	}

	result, err := s.Provider.Exchange(ctx, code, verifier)
	if err != nil {
		l.Warn("code exchange failed", "err", err)
		s.Audit.AuthFailure(ctx, "", sourceIP,
			"code exchange rejected, code fp "+cryptox.FingerprintToken(code))
		return domain.TokenResult{}, errors.Join(ErrExchangeFailed, err)
	}

	return result, nil
}

// ExchangeWithVerifier redeems a code with a caller-supplied verifier. This
// is the public-client variant where the browser held the PKCE pair; the
// gateway never stored a correlation, so there is no state to consume.
func (s *ExchangeService) ExchangeWithVerifier(ctx context.Context, code, verifier, sourceIP string) (domain.TokenResult, error) {
	l := slogx.FromContext(ctx)

	result, err := s.Provider.Exchange(ctx, code, verifier)
	if err != nil {
		l.Warn("code exchange failed", "err", err)
		s.Audit.AuthFailure(ctx, "", sourceIP,
			"code exchange rejected, code fp "+cryptox.FingerprintToken(code))
		return domain.TokenResult{}, errors.Join(ErrExchangeFailed, err)
	}

	return result, nil
}
