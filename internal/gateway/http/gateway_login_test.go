package http_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adminbridge/authgate/pkg/gatesdk"
)

func TestLoginFlowIssuesSession(t *testing.T) {
	g := setupGateway(t, gatewayOptions{})
	ctx := context.Background()

	start, err := g.client.BeginLogin(ctx)
	require.NoError(t, err)

	u, err := url.Parse(start.AuthorizeURL)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(start.AuthorizeURL, g.idp.Server.URL+"/authorize"))
	require.Equal(t, start.State, u.Query().Get("state"))
	require.NotEmpty(t, u.Query().Get("code_challenge"))
	require.Equal(t, "S256", u.Query().Get("code_challenge_method"))

	code, state := g.idp.issueCode(start.AuthorizeURL, aliceUser)
	session, err := g.client.ExchangeCode(ctx, code, state)
	require.NoError(t, err)

	require.Equal(t, "sub-alice", session.User.ID)
	require.Equal(t, "Alice Example", session.User.DisplayName)
	require.Equal(t, "alice@example.com", session.User.UserPrincipalName)
	require.ElementsMatch(t, []string{"user"}, session.User.Roles)
	require.NotEmpty(t, session.Token)
	require.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresOn, 10*time.Second)

	require.Equal(t, 1, g.idp.exchangeCount())
}

func TestLoginHonorsCallerState(t *testing.T) {
	g := setupGateway(t, gatewayOptions{})
	ctx := context.Background()

	t.Run("strong caller state survives the round trip", func(t *testing.T) {
		requested := "caller-state-0123456789abcdef0123456789"

		start, err := g.client.BeginLoginWithState(ctx, requested)
		require.NoError(t, err)
		require.Equal(t, requested, start.State)

		code, state := g.idp.issueCode(start.AuthorizeURL, aliceUser)
		session, err := g.client.ExchangeCode(ctx, code, state)
		require.NoError(t, err)
		require.Equal(t, "sub-alice", session.User.ID)
	})

	t.Run("weak caller state is replaced", func(t *testing.T) {
		start, err := g.client.BeginLoginWithState(ctx, "weak")
		require.NoError(t, err)
		require.NotEqual(t, "weak", start.State)
	})
}

func TestLoginFlowViaCallbackRedirect(t *testing.T) {
	g := setupGateway(t, gatewayOptions{})
	ctx := context.Background()

	start, err := g.client.BeginLogin(ctx)
	require.NoError(t, err)
	code, state := g.idp.issueCode(start.AuthorizeURL, aliceUser)

	resp, err := http.Get(g.server.URL + "/v1/auth/callback?code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestSessionTokenVerifiesAgainstPublishedJWKS(t *testing.T) {
	g := setupGateway(t, gatewayOptions{})
	session := g.login(t, aliceUser)

	claims, err := g.sessions.Verify(session.Token)
	require.NoError(t, err)
	require.Equal(t, "sub-alice", claims.Subject)
	require.Equal(t, testIssuer, claims.Issuer)
	require.NotEmpty(t, claims.SID)
}

func TestStatusReportsSessionValidity(t *testing.T) {
	g := setupGateway(t, gatewayOptions{})
	ctx := context.Background()
	session := g.login(t, aliceUser)

	t.Run("valid token", func(t *testing.T) {
		status, err := g.client.Status(ctx, session.Token)
		require.NoError(t, err)
		require.True(t, status.Valid)
		require.Equal(t, "sub-alice", status.User.ID)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := g.client.Status(ctx, "")
		requireAPIError(t, err, http.StatusUnauthorized, gatesdk.CodeMissingToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := g.client.Status(ctx, "not-a-token")
		requireAPIError(t, err, http.StatusUnauthorized, gatesdk.CodeMalformedToken)
	})

	t.Run("expired token", func(t *testing.T) {
		_, err := g.client.Status(ctx, g.expiredSessionToken(t, aliceUser))
		requireAPIError(t, err, http.StatusUnauthorized, gatesdk.CodeTokenExpired)
	})
}

func TestLogoutEvictsUpstreamTokens(t *testing.T) {
	g := setupGateway(t, gatewayOptions{})
	ctx := context.Background()
	session := g.login(t, aliceUser)

	_, held := g.cache.Get("sub-alice")
	require.True(t, held)

	require.NoError(t, g.client.Logout(ctx, session.Token))

	_, held = g.cache.Get("sub-alice")
	require.False(t, held)

	// The session token is still cryptographically valid until it ages out,
	// but a refresh now has nothing upstream to work with.
	_, err := g.client.Refresh(ctx, session.Token, gatesdk.RefreshRequest{})
	requireAPIError(t, err, http.StatusUnauthorized, gatesdk.CodeExpiredNoRefresh)
}
