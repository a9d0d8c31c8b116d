package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	"vmbook/internal/audit"
	"vmbook/internal/infra"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository appends workflow events to audit_log. Record is
// best-effort: a failed insert is logged locally and swallowed so that audit
// plumbing can never fail a workflow.
type AuditRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAuditRepository(pool *pgxpool.Pool, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{pool: pool, logger: logger}
}

func (r *AuditRepository) Record(ctx context.Context, level audit.Level, action, message string, bookingID *uuid.UUID, extra map[string]any) {
	const q = `
		INSERT INTO audit_log (level, action, message, booking_id, context)
		VALUES ($1, $2, $3, $4, $5)`

	var contextArg *string
	if len(extra) > 0 {
		b, err := json.Marshal(extra)
		if err != nil {
			r.logger.Warn("failed to marshal audit context", "action", action, "error", err)
		} else {
			s := string(b)
			contextArg = &s
		}
	}

	if _, err := r.pool.Exec(ctx, q, string(level), action, message, bookingID, contextArg); err != nil {
		r.logger.Warn("failed to write audit entry",
			"level", level, "action", action, "error", err)
	}
}

func (r *AuditRepository) ListRecent(ctx context.Context, limit int32, bookingID *uuid.UUID) ([]*audit.Entry, error) {
	const q = `
		SELECT id, created_at, level, action, booking_id, message, context
		FROM audit_log
		WHERE $2::uuid IS NULL OR booking_id = $2
		ORDER BY id DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, q, limit, bookingID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list audit entries", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		var level string
		var contextJSON []byte
		if err := rows.Scan(&e.ID, &e.CreatedAt, &level, &e.Action, &e.BookingID, &e.Message, &contextJSON); err != nil {
			return nil, infra.WrapRepoErr("failed to scan audit row", err)
		}
		e.Level = audit.Level(level)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
				r.logger.Warn("failed to unmarshal audit context", "id", e.ID, "error", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate audit rows", err)
	}
	return entries, nil
}
