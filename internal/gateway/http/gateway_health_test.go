package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adminbridge/authgate/pkg/jwtx"
)

func TestHealthEndpoints(t *testing.T) {
	g := setupGateway(t, gatewayOptions{})
	ctx := context.Background()

	t.Run("livez", func(t *testing.T) {
		health, err := g.client.GetLiveness(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", health.Status)
		require.Equal(t, "test", health.Version)
		require.NotEmpty(t, health.Uptime)
	})

	t.Run("readyz", func(t *testing.T) {
		health, err := g.client.GetReadiness(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", health.Status)
		require.NotNil(t, health.Checks)
		require.Equal(t, "ok", health.Checks.Database)
		require.Equal(t, "ok", health.Checks.Signer)
	})
}

func TestJWKSEndpointPublishesSigningKeys(t *testing.T) {
	g := setupGateway(t, gatewayOptions{})

	resp, err := http.Get(g.server.URL + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var jwks jwtx.JWKS
	require.NoError(t, json.Unmarshal(raw, &jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)
	require.Equal(t, "EdDSA", jwks.Keys[0].Alg)
	require.NotEmpty(t, jwks.Keys[0].Kid)
	require.NotEmpty(t, jwks.Keys[0].X)
}
