package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/adminbridge/authgate/internal/gateway/domain"
)

// pkceVerifierLength is the number of random bytes used to generate the PKCE
// verifier. 32 bytes of random data results in a 43 character string (using
// RawURLEncoding), satisfying the RFC 7636 requirement (min 43 characters).
const pkceVerifierLength = 32

// providerCallTimeout bounds every outbound call to the authorization server.
const providerCallTimeout = 10 * time.Second

// Provider abstracts the upstream authorization server: building the
// authorization redirect, redeeming codes, and refreshing tokens.
type Provider interface {
	// AuthCodeURL builds the authorization redirect for the given state and
	// PKCE challenge derived from verifier.
	AuthCodeURL(state, verifier string) string

	// Exchange redeems an authorization code with the PKCE verifier and
	// returns the provider tokens plus the verified identity.
	Exchange(ctx context.Context, code, verifier string) (domain.TokenResult, error)

	// Refresh redeems a refresh token for a fresh token set.
	Refresh(ctx context.Context, refreshToken string) (domain.TokenResult, error)
}

// GeneratePKCEVerifier creates a fresh PKCE verifier.
func GeneratePKCEVerifier() (string, error) {
	b := make([]byte, pkceVerifierLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// pkceChallenge derives the S256 challenge for a verifier.
func pkceChallenge(verifier string) string {
	s := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ProviderConfig holds the relying-party registration with the upstream
// authorization server.
type ProviderConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string // empty for public clients
	RedirectURL  string
	Scopes       []string

	// OutboundRPS throttles calls to the provider. Zero disables throttling.
	OutboundRPS   float64
	OutboundBurst int
}

type oidcProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
	throttle *rate.Limiter
}

// NewOIDCProvider performs discovery against the issuer and builds the
// relying-party client.
func NewOIDCProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider %q: %w", cfg.Issuer, err)
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
	}

	var throttle *rate.Limiter
	if cfg.OutboundRPS > 0 {
		burst := cfg.OutboundBurst
		if burst <= 0 {
			burst = 1
		}
		throttle = rate.NewLimiter(rate.Limit(cfg.OutboundRPS), burst)
	}

	return &oidcProvider{
		config:   conf,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		throttle: throttle,
	}, nil
}

func (p *oidcProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkceChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *oidcProvider) Exchange(ctx context.Context, code, verifier string) (domain.TokenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	if err := p.wait(ctx); err != nil {
		return domain.TokenResult{}, err
	}

	token, err := p.config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		return domain.TokenResult{}, fmt.Errorf("code exchange: %w", err)
	}

	return p.buildResult(ctx, token, true)
}

func (p *oidcProvider) Refresh(ctx context.Context, refreshToken string) (domain.TokenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	if err := p.wait(ctx); err != nil {
		return domain.TokenResult{}, err
	}

	// TokenSource with only a refresh token forces the refresh_token grant.
	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return domain.TokenResult{}, fmt.Errorf("token refresh: %w", err)
	}

	// Refresh responses may omit the id_token; the cache only needs the
	// token material, so the identity is optional here.
	return p.buildResult(ctx, token, false)
}

func (p *oidcProvider) wait(ctx context.Context) error {
	if p.throttle == nil {
		return nil
	}
	return p.throttle.Wait(ctx)
}

// buildResult assembles the token material and, when present, verifies the ID
// token riding on the oauth2 token into the identity the gateway asserts
// downstream. identityRequired makes a missing id_token an error; the code
// exchange needs it, a refresh grant does not.
func (p *oidcProvider) buildResult(ctx context.Context, token *oauth2.Token, identityRequired bool) (domain.TokenResult, error) {
	result := domain.TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		if identityRequired {
			return domain.TokenResult{}, fmt.Errorf("provider response missing id_token")
		}
		return result, nil
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domain.TokenResult{}, fmt.Errorf("id_token verify: %w", err)
	}

	identity, err := identityFromIDToken(idToken)
	if err != nil {
		return domain.TokenResult{}, err
	}

	result.Identity = identity
	return result, nil
}

// identityFromIDToken maps the verified ID token claims onto a Principal.
// Principals without explicit roles get the base "user" role so downstream
// role gates have something to match.
func identityFromIDToken(idToken *oidc.IDToken) (domain.Principal, error) {
	var claims struct {
		Name              string   `json:"name"`
		PreferredUsername string   `json:"preferred_username"`
		UPN               string   `json:"upn"`
		Roles             []string `json:"roles"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return domain.Principal{}, fmt.Errorf("id_token claims: %w", err)
	}

	upn := claims.UPN
	if upn == "" {
		upn = claims.PreferredUsername
	}
	displayName := claims.Name
	if displayName == "" {
		displayName = upn
	}
	roles := claims.Roles
	if len(roles) == 0 {
		roles = []string{"user"}
	}

	return domain.Principal{
		ID:          idToken.Subject,
		DisplayName: displayName,
		UPN:         upn,
		Roles:       roles,
	}, nil
}
