package store

import (
	"context"
	"errors"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	AuditEvents() AuditEvents
	LoginRecords() LoginRecords

	ApplyMigrations() error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// AuditFilter narrows an audit listing. Zero values mean "no constraint".
type AuditFilter struct {
	Category string
	ActorID  string
	Since    time.Time
	Limit    int
}

type AuditEvents interface {
	// CreateAuditEvent appends one event to the trail (id is provided by app via ULID).
	CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListAuditEvents returns events matching the filter, newest first.
	ListAuditEvents(ctx context.Context, f AuditFilter) ([]domain.AuditEvent, error)

	// DeleteAuditEventsBefore trims the trail for retention housekeeping.
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) error
}

type LoginRecords interface {
	// UpsertLoginRecord records a sign-in, replacing any prior record for the principal.
	UpsertLoginRecord(ctx context.Context, rec domain.LoginRecord) error

	// GetLoginRecord returns the active record for a principal.
	GetLoginRecord(ctx context.Context, principalID string) (domain.LoginRecord, error)

	// DeleteLoginRecord clears the record on logout.
	DeleteLoginRecord(ctx context.Context, principalID string) error

	// CountLoginRecords returns the number of currently signed-in principals.
	CountLoginRecords(ctx context.Context) (int, error)
}
