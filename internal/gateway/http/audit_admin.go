package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/internal/gateway/store"
	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/httpx"
	"github.com/adminbridge/authgate/pkg/slogx"
)

// AuditHandler serves GET /v1/admin/audit
type AuditHandler struct {
	AuditService *service.AuditService
}

// ServeHTTP godoc
//
//	@Summary		List Audit Events
//	@Description	Returns recent security events, newest first. Requires the admin role.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			category	query		string					false	"Filter by category"
//	@Param			actor_id	query		string					false	"Filter by actor"
//	@Param			since		query		string					false	"RFC 3339 lower bound"
//	@Param			limit		query		int						false	"Max events (default 100)"
//	@Success		200			{object}	gatesdk.AuditListResponse	"events"
//	@Failure		401			{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		403			{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Router			/v1/admin/audit [get].
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	q := r.URL.Query()

	filter := store.AuditFilter{
		Category: q.Get("category"),
		ActorID:  q.Get("actor_id"),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			gatesdk.ErrInvalidRequest.WriteError(w)
			return
		}
		filter.Since = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			gatesdk.ErrInvalidRequest.WriteError(w)
			return
		}
		filter.Limit = n
	}

	events, err := h.AuditService.List(ctx, filter)
	if err != nil {
		log.Error("audit list failed", "err", err)
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	out := make([]gatesdk.AuditEvent, 0, len(events))
	for _, e := range events {
		out = append(out, gatesdk.AuditEvent{
			ID:        e.ID,
			Category:  e.Category,
			ActorID:   e.ActorID,
			SourceIP:  e.SourceIP,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, gatesdk.AuditListResponse{Events: out})
}
