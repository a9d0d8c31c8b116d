package readstore

import (
	"context"

	"vmbook/internal/infra"
	"vmbook/internal/infra/pgconv"
	"vmbook/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingViewColumns = `
	b.id, b.user_id, u.username, b.start_at, b.end_at, b.status,
	b.vm_name, b.disk_name, b.last_run_at, b.last_status, b.last_error,
	b.created_at, b.updated_at`

type BookingReadStore struct {
	pool *pgxpool.Pool
}

func NewBookingReadStore(pool *pgxpool.Pool) *BookingReadStore {
	return &BookingReadStore{pool: pool}
}

func (r *BookingReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.BookingView, error) {
	q := `SELECT ` + bookingViewColumns + `
		FROM bookings b JOIN users u ON u.id = b.user_id
		WHERE b.id = $1`

	view, err := scanBookingView(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("booking not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find booking by ID", err)
	}
	return view, nil
}

func (r *BookingReadStore) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*queries.BookingView, error) {
	q := `SELECT ` + bookingViewColumns + `
		FROM bookings b JOIN users u ON u.id = b.user_id
		WHERE b.user_id = $1
		ORDER BY b.start_at DESC`

	return r.queryViews(ctx, q, userID)
}

func (r *BookingReadStore) FindAll(ctx context.Context) ([]*queries.BookingView, error) {
	q := `SELECT ` + bookingViewColumns + `
		FROM bookings b JOIN users u ON u.id = b.user_id
		ORDER BY b.start_at DESC`

	return r.queryViews(ctx, q)
}

// FindBlocking returns the bookings that hold the shared VM window.
func (r *BookingReadStore) FindBlocking(ctx context.Context) ([]*queries.BookingView, error) {
	q := `SELECT ` + bookingViewColumns + `
		FROM bookings b JOIN users u ON u.id = b.user_id
		WHERE b.status IN ('approved', 'running')
		ORDER BY b.start_at ASC`

	return r.queryViews(ctx, q)
}

func (r *BookingReadStore) queryViews(ctx context.Context, q string, args ...any) ([]*queries.BookingView, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to query bookings", err)
	}
	defer rows.Close()

	var views []*queries.BookingView
	for rows.Next() {
		view, err := scanBookingView(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan booking row", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate booking rows", err)
	}
	return views, nil
}

func scanBookingView(row pgx.Row) (*queries.BookingView, error) {
	var (
		v          queries.BookingView
		vmName     pgtype.Text
		diskName   pgtype.Text
		lastRunAt  pgtype.Timestamptz
		lastStatus pgtype.Text
		lastError  pgtype.Text
	)
	err := row.Scan(
		&v.ID, &v.UserID, &v.Username, &v.StartAt, &v.EndAt, &v.Status,
		&vmName, &diskName, &lastRunAt, &lastStatus, &lastError,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.VMName = pgconv.StringPtrFromPgtype(vmName)
	v.DiskName = pgconv.StringPtrFromPgtype(diskName)
	v.LastRunAt = pgconv.TimePtrFromPgtype(lastRunAt)
	v.LastStatus = pgconv.StringPtrFromPgtype(lastStatus)
	v.LastError = pgconv.StringPtrFromPgtype(lastError)
	return &v, nil
}
