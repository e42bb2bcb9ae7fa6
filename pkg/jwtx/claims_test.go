package jwtx_test

import (
	"testing"
	"time"

	"github.com/adminbridge/authgate/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "authgate",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("authgate"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		err := c.ValidateIssuer("some-other-service")
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})
}

func TestValidateExpiry(t *testing.T) {
	now := time.Now().UTC()

	t.Run("valid token", func(t *testing.T) {
		c := &jwtx.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			},
		}
		require.NoError(t, c.ValidateExpiry())
	})

	t.Run("expired token", func(t *testing.T) {
		c := &jwtx.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
		}
		require.ErrorIs(t, c.ValidateExpiry(), jwtx.ErrExpired)
	})

	t.Run("not yet valid token", func(t *testing.T) {
		c := &jwtx.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Hour)),
				NotBefore: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		require.ErrorIs(t, c.ValidateExpiry(), jwtx.ErrNotYetValid)
	})
}

func TestNewSessionClaims(t *testing.T) {
	now := time.Now().UTC()
	c := jwtx.NewSessionClaims(
		"sub-1", "sid-1", "Alice", "alice@example.com",
		[]string{"user", "admin"}, time.Hour, "authgate", now,
	)

	require.Equal(t, "sub-1", c.Subject)
	require.Equal(t, "sid-1", c.SID)
	require.Equal(t, "Alice", c.DisplayName)
	require.Equal(t, "alice@example.com", c.UserPrincipalName)
	require.ElementsMatch(t, []string{"user", "admin"}, c.Roles)
	require.Equal(t, "authgate", c.Issuer)
	require.NotEmpty(t, c.ID)
	require.WithinDuration(t, now.Add(time.Hour), c.ExpiresAt.Time, time.Second)
}

func TestJTIUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		jti := jwtx.NewJTI()
		require.NotEmpty(t, jti)
		_, dup := seen[jti]
		require.False(t, dup)
		seen[jti] = struct{}{}
	}
}
