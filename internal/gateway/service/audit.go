package service

import (
	"context"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/domain"
	"github.com/adminbridge/authgate/internal/gateway/store"
	"github.com/adminbridge/authgate/pkg/gatesdk"
	"github.com/adminbridge/authgate/pkg/idx"
	"github.com/adminbridge/authgate/pkg/slogx"
)

// DefaultAuditRetention is how long audit events are kept before the
// housekeeping sweep trims them.
const DefaultAuditRetention = 90 * 24 * time.Hour

// AuditService appends security-relevant events to the persistent trail and
// mirrors them to the structured log. Writes are best-effort: a failed insert
// is logged, never surfaced to the request path.
type AuditService struct {
	Store store.Store
}

func (s *AuditService) record(ctx context.Context, category, actorID, sourceIP, detail string) {
	event := domain.AuditEvent{
		ID:        idx.New().String(),
		Category:  category,
		ActorID:   actorID,
		SourceIP:  sourceIP,
		Detail:    detail,
		CreatedAt: time.Now(),
	}

	slogx.FromContext(ctx).Info("audit event",
		"category", category,
		"actor_id", actorID,
		"source_ip", sourceIP,
		"detail", detail,
	)

	if err := s.Store.AuditEvents().CreateAuditEvent(ctx, event); err != nil {
		slogx.FromContext(ctx).Error("audit write failed", "err", err)
	}
}

func (s *AuditService) Login(ctx context.Context, actorID, sourceIP, detail string) {
	s.record(ctx, domain.AuditLogin, actorID, sourceIP, detail)
}

func (s *AuditService) Logout(ctx context.Context, actorID, sourceIP string) {
	s.record(ctx, domain.AuditLogout, actorID, sourceIP, "")
}

func (s *AuditService) AuthFailure(ctx context.Context, actorID, sourceIP, detail string) {
	s.record(ctx, domain.AuditAuthFailure, actorID, sourceIP, detail)
}

func (s *AuditService) RefreshFailure(ctx context.Context, actorID, detail string) {
	s.record(ctx, domain.AuditRefreshFailure, actorID, "", detail)
}

// AuthEventHook adapts the audit trail to the middleware hook signature. The
// middleware reports gatesdk error codes; map them onto audit categories.
func (s *AuditService) AuthEventHook() func(ctx context.Context, code, actorID, sourceIP, detail string) {
	return func(ctx context.Context, code, actorID, sourceIP, detail string) {
		category := domain.AuditAuthFailure
		switch code {
		case gatesdk.CodeInsufficientPermissions:
			category = domain.AuditAccessDenied
		case gatesdk.CodeRateLimitExceeded:
			category = domain.AuditRateLimited
		}
		s.record(ctx, category, actorID, sourceIP, detail)
	}
}

// List returns audit events for the admin endpoint.
func (s *AuditService) List(ctx context.Context, f store.AuditFilter) ([]domain.AuditEvent, error) {
	return s.Store.AuditEvents().ListAuditEvents(ctx, f)
}

// RecordLogin persists the active sign-in record for a principal.
func (s *AuditService) RecordLogin(ctx context.Context, p domain.Principal, sourceIP string) {
	now := time.Now()
	rec := domain.LoginRecord{
		PrincipalID: p.ID,
		DisplayName: p.DisplayName,
		UPN:         p.UPN,
		SourceIP:    sourceIP,
		LoggedInAt:  now,
		UpdatedAt:   now,
	}
	if err := s.Store.LoginRecords().UpsertLoginRecord(ctx, rec); err != nil {
		slogx.FromContext(ctx).Error("login record write failed", "err", err)
	}
}

// ClearLogin removes the active sign-in record on logout.
func (s *AuditService) ClearLogin(ctx context.Context, principalID string) {
	if err := s.Store.LoginRecords().DeleteLoginRecord(ctx, principalID); err != nil {
		slogx.FromContext(ctx).Error("login record delete failed", "err", err)
	}
}
