package http

import (
	"net/http"

	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/httpx"
)

// StatusHandler serves GET /v1/auth/status
type StatusHandler struct{}

// ServeHTTP godoc
//
//	@Summary		Session Status
//	@Description	Reports the principal asserted by the presented session token. A missing, malformed, expired, or tampered token answers 401 with the specific failure code.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	gatesdk.StatusResponse	"valid, user"
//	@Failure		401	{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/status [get].
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		gatesdk.ErrMissingToken.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatesdk.StatusResponse{
		Valid: true,
		User:  userFromPrincipal(service.PrincipalFromClaims(claims)),
	})
}
