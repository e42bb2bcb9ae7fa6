package http_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/adminbridge/authgate/internal/gateway/domain"
	gatewayhttp "github.com/adminbridge/authgate/internal/gateway/http"
	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/internal/gateway/store/drivers/sqlite"
	"github.com/adminbridge/authgate/pkg/cryptox"
	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/httpx"
	"github.com/adminbridge/authgate/pkg/jwtx"
)

/*
 * Common helpers for gateway end-to-end tests. Each test stands up the full
 * router over an in-process identity provider so requests exercise the real
 * discovery, code exchange, and refresh grants.
 */

const (
	testClientID     = "adminbridge-console"
	testClientSecret = "test-client-secret"
	testIssuer       = "https://gateway.test"
	idpKeyID         = "idp-key-1"
)

var (
	aliceUser = idpUser{
		Sub:   "sub-alice",
		Name:  "Alice Example",
		UPN:   "alice@example.com",
		Roles: []string{"user"},
	}
	rootUser = idpUser{
		Sub:   "sub-root",
		Name:  "Root Example",
		UPN:   "root@example.com",
		Roles: []string{"user", "admin"},
	}
)

// idpUser is an identity the fake provider will assert in ID tokens.
type idpUser struct {
	Sub   string
	Name  string
	UPN   string
	Roles []string
}

type issuedCode struct {
	challenge string
	user      idpUser
}

// fakeIDP is an in-process authorization server: discovery, JWKS, and a token
// endpoint honouring the authorization_code (with PKCE) and refresh_token
// grants. ID tokens are RS256-signed so the gateway verifies them through the
// published JWKS.
type fakeIDP struct {
	t      *testing.T
	Server *httptest.Server
	key    *rsa.PrivateKey

	// tokenTTL is the expires_in the token endpoint reports. Shrink it under
	// the gateway's refresh buffer to force refresh grants.
	tokenTTL time.Duration

	mu            sync.Mutex
	codes         map[string]issuedCode
	refreshTokens map[string]idpUser
	exchangeCalls int
	refreshCalls  int

	// omitRefreshIDToken leaves the id_token out of refresh_token grant
	// responses, which providers may legally do.
	omitRefreshIDToken bool
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIDP{
		t:             t,
		key:           key,
		tokenTTL:      time.Hour,
		codes:         make(map[string]issuedCode),
		refreshTokens: make(map[string]idpUser),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", idp.handleDiscovery)
	mux.HandleFunc("GET /keys", idp.handleJWKS)
	mux.HandleFunc("POST /token", idp.handleToken)

	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Server.Close)

	return idp
}

// issueCode plays the user-consent step: it validates the authorization URL
// the gateway built and hands back a single-use code bound to its PKCE
// challenge.
func (idp *fakeIDP) issueCode(authorizeURL string, user idpUser) (code, state string) {
	u, err := url.Parse(authorizeURL)
	require.NoError(idp.t, err)

	q := u.Query()
	require.Equal(idp.t, testClientID, q.Get("client_id"))
	require.Equal(idp.t, "S256", q.Get("code_challenge_method"))

	challenge := q.Get("code_challenge")
	require.NotEmpty(idp.t, challenge)
	require.NotEmpty(idp.t, q.Get("state"))

	code, err = cryptox.GenerateToken(16)
	require.NoError(idp.t, err)

	idp.mu.Lock()
	idp.codes[code] = issuedCode{challenge: challenge, user: user}
	idp.mu.Unlock()

	return code, q.Get("state")
}

func (idp *fakeIDP) exchangeCount() int {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.exchangeCalls
}

func (idp *fakeIDP) refreshCount() int {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.refreshCalls
}

func (idp *fakeIDP) setOmitRefreshIDToken(v bool) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.omitRefreshIDToken = v
}

func (idp *fakeIDP) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"issuer":                                idp.Server.URL,
		"authorization_endpoint":                idp.Server.URL + "/authorize",
		"token_endpoint":                        idp.Server.URL + "/token",
		"jwks_uri":                              idp.Server.URL + "/keys",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (idp *fakeIDP) handleJWKS(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, jwtx.JWKS{
		Keys: []jwtx.JWK{
			jwtx.NewRSAJWK(idpKeyID, "sig", "RS256", &idp.key.PublicKey),
		},
	})
}

func (idp *fakeIDP) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		idp.writeTokenError(w, "invalid_request")
		return
	}

	var user idpUser
	grant := r.Form.Get("grant_type")

	idp.mu.Lock()
	switch grant {
	case "authorization_code":
		code := r.Form.Get("code")
		issued, ok := idp.codes[code]
		delete(idp.codes, code)
		if !ok || !verifierMatches(r.Form.Get("code_verifier"), issued.challenge) {
			idp.mu.Unlock()
			idp.writeTokenError(w, "invalid_grant")
			return
		}
		idp.exchangeCalls++
		user = issued.user

	case "refresh_token":
		holder, ok := idp.refreshTokens[r.Form.Get("refresh_token")]
		if !ok {
			idp.mu.Unlock()
			idp.writeTokenError(w, "invalid_grant")
			return
		}
		idp.refreshCalls++
		user = holder

	default:
		idp.mu.Unlock()
		idp.writeTokenError(w, "unsupported_grant_type")
		return
	}
	idp.mu.Unlock()

	accessToken, err := cryptox.GenerateToken(16)
	require.NoError(idp.t, err)
	refreshToken, err := cryptox.GenerateToken(16)
	require.NoError(idp.t, err)

	idp.mu.Lock()
	idp.refreshTokens[refreshToken] = user
	skipIDToken := grant == "refresh_token" && idp.omitRefreshIDToken
	idp.mu.Unlock()

	body := map[string]any{
		"access_token":  accessToken,
		"token_type":    "Bearer",
		"expires_in":    int(idp.tokenTTL.Seconds()),
		"refresh_token": refreshToken,
	}
	if !skipIDToken {
		body["id_token"] = idp.mintIDToken(user)
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

func (idp *fakeIDP) writeTokenError(w http.ResponseWriter, code string) {
	httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": code})
}

func (idp *fakeIDP) mintIDToken(user idpUser) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":                idp.Server.URL,
		"aud":                testClientID,
		"sub":                user.Sub,
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
		"name":               user.Name,
		"upn":                user.UPN,
		"preferred_username": user.UPN,
		"roles":              user.Roles,
	})
	token.Header["kid"] = idpKeyID

	signed, err := token.SignedString(idp.key)
	require.NoError(idp.t, err)
	return signed
}

// challengeFor derives the S256 challenge a client would publish for verifier.
func challengeFor(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func verifierMatches(verifier, challenge string) bool {
	if verifier == "" {
		return false
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]) == challenge
}

// testGateway is a full gateway wired to a fakeIDP, served over a local
// listener and driven through the SDK client.
type testGateway struct {
	idp      *fakeIDP
	server   *httptest.Server
	client   *gatesdk.Client
	keys     *jwtx.KeyManager
	sessions *service.SessionService
	cache    *service.TokenCache
}

type gatewayOptions struct {
	// upstreamTokenTTL overrides the fake provider's expires_in.
	upstreamTokenTTL time.Duration

	// sessionTTL overrides the gateway session token lifetime.
	sessionTTL time.Duration
}

func setupGateway(t *testing.T, opts gatewayOptions) *testGateway {
	t.Helper()

	idp := newFakeIDP(t)
	if opts.upstreamTokenTTL > 0 {
		idp.tokenTTL = opts.upstreamTokenTTL
	}

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  testIssuer,
		NumKeys: 1,
	})
	require.NoError(t, err)

	provider, err := service.NewOIDCProvider(context.Background(), service.ProviderConfig{
		Issuer:       idp.Server.URL,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  "http://localhost:8080/v1/auth/callback",
		Scopes:       []string{"openid", "profile", "offline_access"},
	})
	require.NoError(t, err)

	sessionTTL := opts.sessionTTL
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}

	audit := &service.AuditService{Store: st}
	exchange := &service.ExchangeService{
		Provider: provider,
		Pending:  service.NewPendingStore(time.Minute, 100),
		Audit:    audit,
	}
	cache := service.NewTokenCache(provider, audit)
	sessions := &service.SessionService{
		KeyManager: keys,
		Issuer:     testIssuer,
		TTL:        sessionTTL,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := gatewayhttp.NewRouter(keys.KeySet, keys.Verifier, "test", st, logger)
	router.ExchangeService = exchange
	router.SessionService = sessions
	router.TokenCache = cache
	router.AuditService = audit
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testGateway{
		idp:      idp,
		server:   server,
		client:   gatesdk.NewClient(server.URL),
		keys:     keys,
		sessions: sessions,
		cache:    cache,
	}
}

// login runs the whole flow for user and returns the gateway session.
func (g *testGateway) login(t *testing.T, user idpUser) *gatesdk.SessionResponse {
	t.Helper()
	ctx := context.Background()

	start, err := g.client.BeginLogin(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, start.State)

	code, state := g.idp.issueCode(start.AuthorizeURL, user)
	require.Equal(t, start.State, state)

	session, err := g.client.ExchangeCode(ctx, code, state)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	return session
}

// expiredSessionToken signs a well-formed but already lapsed session token
// with the gateway's own key.
func (g *testGateway) expiredSessionToken(t *testing.T, user idpUser) string {
	t.Helper()

	claims := jwtx.NewSessionClaims(
		user.Sub, "sid-expired", user.Name, user.UPN, user.Roles,
		-time.Minute, testIssuer, time.Now().Add(-2*time.Minute),
	)

	signer := g.keys.GetSigner()
	require.NotNil(t, signer)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	return token
}

// principalFor maps a fake provider identity onto the gateway's principal.
func principalFor(user idpUser) domain.Principal {
	return domain.Principal{
		ID:          user.Sub,
		DisplayName: user.Name,
		UPN:         user.UPN,
		Roles:       user.Roles,
	}
}

// requireAPIError asserts err is a gateway APIError with the given code.
func requireAPIError(t *testing.T, err error, status int, code string) *gatesdk.APIError {
	t.Helper()

	var apiErr *gatesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}
