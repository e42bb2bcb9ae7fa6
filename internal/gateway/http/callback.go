package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/adminbridge/authgate/internal/gateway/domain"
	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/httpx"
	"github.com/adminbridge/authgate/pkg/slogx"
)

// CallbackHandler finishes the authorization-code flow. It serves both the
// provider redirect (GET /v1/auth/callback) and the JSON token endpoint
// (POST /v1/auth/token) since both redeem a code for a session.
type CallbackHandler struct {
	ExchangeService *service.ExchangeService
	SessionService  *service.SessionService
	TokenCache      *service.TokenCache
	AuditService    *service.AuditService
}

// HandleCallback godoc
//
//	@Summary		Authorization Callback
//	@Description	Receives the provider redirect, redeems the authorization code using the stored PKCE verifier, and returns the session token.
//	@Tags			Auth
//	@Produce		json
//	@Param			code	query		string					true	"Authorization code"
//	@Param			state	query		string					true	"State from the login initiation"
//	@Param			error	query		string					false	"Provider error code"
//	@Success		200		{object}	gatesdk.SessionResponse	"user, token, expiresOn"
//	@Failure		400		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	gatesdk.ErrorResponse	"error, error_description, retryAfter"
//	@Router			/v1/auth/callback [get].
func (h *CallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Provider-reported failure. The state is still burned so the attempt
	// cannot be replayed.
	if errCode := q.Get("error"); errCode != "" {
		if state := q.Get("state"); state != "" {
			_, _ = h.ExchangeService.Pending.Take(state)
		}
		gatesdk.NewProviderError(q.Get("error_description")).WriteError(w)
		return
	}

	code := strings.TrimSpace(q.Get("code"))
	state := strings.TrimSpace(q.Get("state"))
	if code == "" || state == "" {
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	h.finish(w, r, code, state, "")
}

// HandleToken godoc
//
//	@Summary		Token Exchange
//	@Description	Redeems an authorization code for a session token. Send state when the gateway holds the PKCE verifier, or codeVerifier when the client held it.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		gatesdk.TokenRequest	true	"code plus state or codeVerifier"
//	@Success		200		{object}	gatesdk.SessionResponse	"user, token, expiresOn"
//	@Failure		400		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	gatesdk.ErrorResponse	"error, error_description, retryAfter"
//	@Router			/v1/auth/token [post].
func (h *CallbackHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req gatesdk.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" || (req.State == "" && req.CodeVerifier == "") {
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	h.finish(w, r, code, strings.TrimSpace(req.State), strings.TrimSpace(req.CodeVerifier))
}

// finish runs the exchange, seeds the token cache, and issues the session.
func (h *CallbackHandler) finish(w http.ResponseWriter, r *http.Request, code, state, verifier string) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	sourceIP := httpx.IPKeyExtractor(r)

	var (
		result domain.TokenResult
		err    error
	)
	if state != "" {
		result, err = h.ExchangeService.Exchange(ctx, code, state, sourceIP)
	} else {
		result, err = h.ExchangeService.ExchangeWithVerifier(ctx, code, verifier, sourceIP)
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidState):
			gatesdk.ErrInvalidState.WriteError(w)
		case errors.Is(err, service.ErrExchangeFailed):
			gatesdk.ErrAuthentication.WriteError(w)
		default:
			log.Error("exchange failed", "err", err)
			gatesdk.ErrServerError.WriteError(w)
		}
		return
	}

	if err := h.TokenCache.Put(result.Identity.ID, result); err != nil {
		log.Error("token cache put failed", "err", err)
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	token, expiresOn, err := h.SessionService.Issue(result.Identity)
	if err != nil {
		log.Error("session issue failed", "err", err)
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	h.AuditService.Login(ctx, result.Identity.ID, sourceIP, "upn "+result.Identity.UPN)
	h.AuditService.RecordLogin(ctx, result.Identity, sourceIP)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, gatesdk.SessionResponse{
		User:      userFromPrincipal(result.Identity),
		Token:     token,
		ExpiresOn: expiresOn,
	})
}

func userFromPrincipal(p domain.Principal) gatesdk.User {
	return gatesdk.User{
		ID:                p.ID,
		DisplayName:       p.DisplayName,
		UserPrincipalName: p.UPN,
		Roles:             p.Roles,
	}
}
