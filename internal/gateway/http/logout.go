package http

import (
	"net/http"

	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/httpx"
)

// LogoutHandler serves POST /v1/auth/logout
type LogoutHandler struct {
	TokenCache   *service.TokenCache
	AuditService *service.AuditService
}

// ServeHTTP godoc
//
//	@Summary		Logout
//	@Description	Evicts the caller's cached upstream tokens and clears the login record. The session token itself simply ages out.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		204	"no content"
//	@Failure		401	{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID := httpx.PrincipalIDFromContext(ctx)
	if principalID == "" {
		gatesdk.ErrMissingToken.WriteError(w)
		return
	}

	h.TokenCache.Evict(principalID)
	h.AuditService.Logout(ctx, principalID, httpx.IPKeyExtractor(r))
	h.AuditService.ClearLogin(ctx, principalID)

	w.WriteHeader(http.StatusNoContent)
}
