package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/jwtx"
	"github.com/adminbridge/authgate/pkg/slogx"
)

// AuthEventHook receives security-relevant request outcomes (missing token,
// bad signature, denied role) so the caller can feed an audit trail. The hook
// must not block.
type AuthEventHook func(ctx context.Context, code, actorID, sourceIP, detail string)

// AuthnMiddleware verifies the bearer session token and injects the resolved
// principal into the request context. Failures are answered with distinct
// machine-readable codes so clients can tell a stale token from a broken one.
func AuthnMiddleware(v jwtx.Verifier, hook AuthEventHook) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := bearerToken(r)
			if !ok {
				record(ctx, hook, gatesdk.CodeMissingToken, "", IPKeyExtractor(r), r.URL.Path)
				gatesdk.ErrMissingToken.WriteError(w)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				apiErr := classifyVerifyError(err)
				record(ctx, hook, apiErr.Code, "", IPKeyExtractor(r), r.URL.Path)
				log.Warn("session verify failed", "err", err)
				apiErr.WriteError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(ctx, claims)))
		})
	}
}

// OptionalAuthnMiddleware resolves a principal when a valid bearer token is
// present but lets the request through as anonymous otherwise. Used for
// endpoints that merely behave differently for authenticated callers.
func OptionalAuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearerToken(r); ok {
				if claims, err := v.Verify(raw); err == nil {
					r = r.WithContext(ContextWithSession(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	return raw, raw != ""
}

func classifyVerifyError(err error) *gatesdk.APIError {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return gatesdk.ErrTokenExpired
	case errors.Is(err, jwtx.ErrInvalidSig), errors.Is(err, jwtx.ErrIssuer):
		return gatesdk.ErrBadSignature
	default:
		return gatesdk.ErrMalformedToken
	}
}

func record(ctx context.Context, hook AuthEventHook, code, actorID, sourceIP, detail string) {
	if hook != nil {
		hook(ctx, code, actorID, sourceIP, detail)
	}
}
