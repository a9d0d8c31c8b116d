package repository

import (
	"context"
	"time"

	"vmbook/internal/infra"
	"vmbook/internal/scheduler"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TriggerRepository stores scheduler triggers next to the bookings they
// belong to, so a restart never loses pending work.
type TriggerRepository struct {
	pool *pgxpool.Pool
}

func NewTriggerRepository(pool *pgxpool.Pool) *TriggerRepository {
	return &TriggerRepository{pool: pool}
}

func (r *TriggerRepository) Upsert(ctx context.Context, bookingID uuid.UUID, fireAt time.Time) error {
	const q = `
		INSERT INTO booking_triggers (booking_id, fire_at)
		VALUES ($1, $2)
		ON CONFLICT (booking_id) DO UPDATE
		SET fire_at = EXCLUDED.fire_at, created_at = now()`

	if _, err := r.pool.Exec(ctx, q, bookingID, fireAt); err != nil {
		return infra.WrapRepoErr("failed to upsert trigger", err)
	}
	return nil
}

// ClaimDue removes due triggers and returns them in one statement, so each
// trigger is observed by exactly one dispatcher pass.
func (r *TriggerRepository) ClaimDue(ctx context.Context, now time.Time) ([]scheduler.Trigger, error) {
	const q = `
		DELETE FROM booking_triggers
		WHERE fire_at <= $1
		RETURNING booking_id, fire_at, created_at`

	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to claim due triggers", err)
	}
	defer rows.Close()

	var due []scheduler.Trigger
	for rows.Next() {
		var t scheduler.Trigger
		if err := rows.Scan(&t.BookingID, &t.FireAt, &t.CreatedAt); err != nil {
			return nil, infra.WrapRepoErr("failed to scan trigger row", err)
		}
		due = append(due, t)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate trigger rows", err)
	}
	return due, nil
}

func (r *TriggerRepository) Delete(ctx context.Context, bookingID uuid.UUID) error {
	const q = `DELETE FROM booking_triggers WHERE booking_id = $1`

	if _, err := r.pool.Exec(ctx, q, bookingID); err != nil {
		return infra.WrapRepoErr("failed to delete trigger", err)
	}
	return nil
}

// FindByBookingID is used by admin tooling and tests to inspect the store.
func (r *TriggerRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*scheduler.Trigger, error) {
	const q = `SELECT booking_id, fire_at, created_at FROM booking_triggers WHERE booking_id = $1`

	var t scheduler.Trigger
	err := r.pool.QueryRow(ctx, q, bookingID).Scan(&t.BookingID, &t.FireAt, &t.CreatedAt)
	if err != nil {
		return nil, infra.WrapRepoErr("trigger not found", err, infra.KindNotFound)
	}
	return &t, nil
}
