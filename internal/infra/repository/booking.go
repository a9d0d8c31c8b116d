package repository

import (
	"context"
	"time"

	"vmbook/internal/domain/booking"
	"vmbook/internal/infra"
	"vmbook/internal/infra/db"
	"vmbook/internal/infra/pgconv"
	"vmbook/internal/workflow"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Create(ctx context.Context, dbtx db.DBTX, b *booking.Booking) (uuid.UUID, error) {
	const q = `
		INSERT INTO bookings (id, user_id, start_at, end_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`

	var id uuid.UUID
	err := dbtx.QueryRow(ctx, q,
		b.ID(), b.UserID(), b.Window().Start(), b.Window().End(),
		b.Status().String(), b.CreatedAt(),
	).Scan(&id)
	if err != nil {
		if pgconv.IsExclusionOrUniqueViolation(err) {
			return uuid.Nil, infra.WrapRepoErr("booking window conflicts with an existing booking", err, infra.KindConflict)
		}
		return uuid.Nil, infra.WrapRepoErr("failed to create booking", err)
	}
	return id, nil
}

// HasOverlap is the friendly admission check; the exclusion constraint on the
// table is the authoritative one.
func (r *BookingRepository) HasOverlap(ctx context.Context, dbtx db.DBTX, start, end time.Time) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE status IN ('approved', 'running')
			  AND end_at > $1
			  AND start_at < $2
		)`

	var exists bool
	if err := dbtx.QueryRow(ctx, q, start, end).Scan(&exists); err != nil {
		return false, infra.WrapRepoErr("failed to check booking overlap", err)
	}
	return exists, nil
}

// Approve performs the conditional pending/approved -> approved transition and
// reports the affected-row count. An exclusion violation means another
// blocking booking grabbed the window first.
func (r *BookingRepository) Approve(ctx context.Context, id uuid.UUID) (int64, error) {
	const q = `
		UPDATE bookings
		SET status = 'approved', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'approved')`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		if pgconv.IsExclusionOrUniqueViolation(err) {
			return 0, infra.WrapRepoErr("booking window conflicts with an existing booking", err, infra.KindConflict)
		}
		return 0, infra.WrapRepoErr("failed to approve booking", err)
	}
	return tag.RowsAffected(), nil
}

func (r *BookingRepository) Reject(ctx context.Context, id uuid.UUID) (int64, error) {
	const q = `
		UPDATE bookings
		SET status = 'rejected', updated_at = now()
		WHERE id = $1 AND status NOT IN ('rejected', 'completed', 'failed')`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to reject booking", err)
	}
	return tag.RowsAffected(), nil
}

func (r *BookingRepository) Complete(ctx context.Context, id uuid.UUID) (int64, error) {
	const q = `
		UPDATE bookings
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'running'`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to complete booking", err)
	}
	return tag.RowsAffected(), nil
}

func (r *BookingRepository) FindForRun(ctx context.Context, id uuid.UUID) (*workflow.RunInfo, error) {
	const q = `
		SELECT b.id, u.username, b.status, b.start_at, b.end_at
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.id = $1`

	var info workflow.RunInfo
	var status string
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&info.ID, &info.OwnerUsername, &status, &info.StartAt, &info.EndAt,
	)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("booking not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find booking for run", err)
	}
	info.Status = booking.Status(status)
	return &info, nil
}

// ClaimForRun is the single-flight point: only one caller observes a row
// transition out of 'approved'.
func (r *BookingRepository) ClaimForRun(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	const q = `
		UPDATE bookings
		SET status = 'running', last_run_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'approved'`

	tag, err := r.pool.Exec(ctx, q, id, now)
	if err != nil {
		return false, infra.WrapRepoErr("failed to claim booking for run", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *BookingRepository) MarkFailed(ctx context.Context, id uuid.UUID, now time.Time, lastError string) error {
	const q = `
		UPDATE bookings
		SET status = 'failed', last_status = 'failed', last_error = $3,
		    last_run_at = $2, updated_at = now()
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, q, id, now, lastError); err != nil {
		return infra.WrapRepoErr("failed to mark booking failed", err)
	}
	return nil
}

// MarkSucceeded records the run result. Status stays 'running': the VM is
// provisioned and in use until an operator completes the booking.
func (r *BookingRepository) MarkSucceeded(ctx context.Context, id uuid.UUID, now time.Time, vmName, diskName string) error {
	const q = `
		UPDATE bookings
		SET vm_name = $3, disk_name = $4, last_status = 'success', last_error = NULL,
		    last_run_at = $2, updated_at = now()
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, q, id, now, vmName, diskName); err != nil {
		return infra.WrapRepoErr("failed to mark booking succeeded", err)
	}
	return nil
}
