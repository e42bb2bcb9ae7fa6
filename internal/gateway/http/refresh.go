package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adminbridge/authgate/internal/gateway/domain"
	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/httpx"
	"github.com/adminbridge/authgate/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh
type RefreshHandler struct {
	SessionService *service.SessionService
	TokenCache     *service.TokenCache
}

// ServeHTTP godoc
//
//	@Summary		Refresh Session
//	@Description	Ensures a fresh upstream access token for the caller, refreshing against the provider if needed, and issues a new session token. An optional refreshToken in the body seeds the upstream cache.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		gatesdk.RefreshRequest	true	"userId, optional refreshToken"
//	@Success		200		{object}	gatesdk.SessionResponse	"user, token, expiresOn"
//	@Failure		400		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	gatesdk.ErrorResponse	"error, error_description, retryAfter"
//	@Router			/v1/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		gatesdk.ErrMissingToken.WriteError(w)
		return
	}

	var req gatesdk.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// The session token is the identity authority. A mismatched userId in
	// the body is a client bug, not an alternate identity.
	if req.UserID != "" && req.UserID != claims.Subject {
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}
	principal := service.PrincipalFromClaims(claims)

	// A caller-supplied refresh token seeds the cache, keeping the cached
	// access token (if any) until it actually goes stale.
	if req.RefreshToken != "" {
		record, _ := h.TokenCache.Get(principal.ID)
		seed := domain.TokenResult{
			AccessToken:  record.AccessToken,
			RefreshToken: req.RefreshToken,
			ExpiresAt:    record.ExpiresAt,
		}
		if err := h.TokenCache.Put(principal.ID, seed); err != nil {
			log.Error("token cache seed failed", "err", err)
			gatesdk.ErrServerError.WriteError(w)
			return
		}
	}

	if _, err := h.TokenCache.AccessToken(ctx, principal.ID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoSession), errors.Is(err, service.ErrExpiredNoRefresh):
			gatesdk.ErrExpiredNoRefresh.WriteError(w)
		case errors.Is(err, service.ErrRefreshFailed):
			gatesdk.ErrRefreshFailed.WriteError(w)
		default:
			log.Error("refresh failed", "err", err)
			gatesdk.ErrServerError.WriteError(w)
		}
		return
	}

	token, expiresOn, err := h.SessionService.Issue(principal)
	if err != nil {
		log.Error("session issue failed", "err", err)
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, gatesdk.SessionResponse{
		User:      userFromPrincipal(principal),
		Token:     token,
		ExpiresOn: expiresOn,
	})
}
