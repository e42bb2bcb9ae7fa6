package http

import (
	"net/http"

	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/httpx"
	"github.com/adminbridge/authgate/pkg/slogx"
)

// LoginHandler serves GET /v1/auth/login
type LoginHandler struct {
	ExchangeService *service.ExchangeService
}

// ServeHTTP godoc
//
//	@Summary		Begin Login Flow
//	@Description	Mints a state and PKCE pair, stores the correlation server-side, and returns the provider authorization URL for the browser to follow.
//	@Tags			Auth
//	@Produce		json
//	@Param			state	query	string	false	"Caller-chosen state nonce; replaced when it carries too little entropy"
//	@Success		200	{object}	gatesdk.LoginResponse	"authorizeUrl, state"
//	@Failure		429	{object}	gatesdk.ErrorResponse	"error, error_description, retryAfter"
//	@Failure		500	{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/login [get].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	authorizeURL, state, err := h.ExchangeService.BeginLogin(ctx, r.URL.Query().Get("state"))
	if err != nil {
		log.Error("begin login failed", "err", err)
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, gatesdk.LoginResponse{
		AuthorizeURL: authorizeURL,
		State:        state,
	})
}
