package sqlite

import (
	"context"
	"database/sql"

	"github.com/adminbridge/authgate/internal/gateway/domain"
)

type loginRecordsRepo struct {
	db *sql.DB
}

func (r *loginRecordsRepo) UpsertLoginRecord(ctx context.Context, rec domain.LoginRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_records (principal_id, display_name, upn, source_ip, logged_in_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (principal_id) DO UPDATE SET
			display_name = excluded.display_name,
			upn          = excluded.upn,
			source_ip    = excluded.source_ip,
			logged_in_at = excluded.logged_in_at,
			updated_at   = excluded.updated_at`,
		rec.PrincipalID, rec.DisplayName, rec.UPN, rec.SourceIP,
		rec.LoggedInAt.UTC(), rec.UpdatedAt.UTC(),
	)
	return err
}

func (r *loginRecordsRepo) GetLoginRecord(ctx context.Context, principalID string) (domain.LoginRecord, error) {
	var rec domain.LoginRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT principal_id, display_name, upn, source_ip, logged_in_at, updated_at
		FROM login_records WHERE principal_id = ?`, principalID,
	).Scan(&rec.PrincipalID, &rec.DisplayName, &rec.UPN, &rec.SourceIP, &rec.LoggedInAt, &rec.UpdatedAt)
	if err != nil {
		return domain.LoginRecord{}, mapNotFound(err)
	}
	return rec, nil
}

func (r *loginRecordsRepo) DeleteLoginRecord(ctx context.Context, principalID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM login_records WHERE principal_id = ?`, principalID)
	return err
}

func (r *loginRecordsRepo) CountLoginRecords(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_records`).Scan(&n)
	return n, err
}
