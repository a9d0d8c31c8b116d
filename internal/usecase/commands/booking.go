package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vmbook/internal/audit"
	"vmbook/internal/domain/booking"
	"vmbook/internal/domain/user"
	"vmbook/internal/infra"
	"vmbook/internal/infra/db"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/pkg/config"
	"vmbook/internal/pkg/errs"
	"vmbook/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	Create(ctx context.Context, dbtx db.DBTX, b *booking.Booking) (uuid.UUID, error)
	HasOverlap(ctx context.Context, dbtx db.DBTX, start, end time.Time) (bool, error)
}

// TriggerScheduler is the slice of the scheduler the booking surface needs.
type TriggerScheduler interface {
	Schedule(ctx context.Context, bookingID uuid.UUID, fireAt time.Time) error
	RunNow(ctx context.Context, bookingID uuid.UUID) error
	Cancel(ctx context.Context, bookingID uuid.UUID) error
}

type BookingReads interface {
	FindByID(ctx context.Context, id uuid.UUID) (*queries.BookingView, error)
}

type CreateBookingResult struct {
	Booking *queries.BookingView
	// Scheduled is false when the booking was approved but the trigger could
	// not be recorded; the booking itself is still saved.
	Scheduled bool
}

type BookingCommands interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, role user.Role, startAt, endAt time.Time) (*CreateBookingResult, error)
}

type bookingCommandsImpl struct {
	bookingRepo BookingRepository
	reads       BookingReads
	sched       TriggerScheduler
	recorder    audit.Recorder
	services    *booking.Services
	cfg         config.BookingConfig
	db          *pgxpool.Pool
	clock       clock.Clock
}

func NewBookingCommands(
	bookingRepo BookingRepository,
	reads BookingReads,
	sched TriggerScheduler,
	recorder audit.Recorder,
	services *booking.Services,
	cfg config.BookingConfig,
	pool *pgxpool.Pool,
	clk clock.Clock,
) BookingCommands {
	return &bookingCommandsImpl{
		bookingRepo: bookingRepo,
		reads:       reads,
		sched:       sched,
		recorder:    recorder,
		services:    services,
		cfg:         cfg,
		db:          pool,
		clock:       clk,
	}
}

func (c *bookingCommandsImpl) CreateBooking(
	ctx context.Context,
	userID uuid.UUID,
	role user.Role,
	startAt, endAt time.Time,
) (*CreateBookingResult, error) {
	window, err := booking.NewTimeWindow(startAt, endAt)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrInvalidTimeWindow)
	}
	if !c.cfg.AllowPastWindows && window.Start().Before(c.clock.Now()) {
		return nil, errs.Mark(errs.New("window starts in the past"), errs.ErrInvalidTimeWindow)
	}

	entity, err := booking.NewBooking(c.services, userID, window)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrDurationTooShort):
			return nil, errs.Mark(err, errs.ErrDurationTooShort)
		case errors.Is(err, booking.ErrDurationTooLong):
			return nil, errs.Mark(err, errs.ErrDurationTooLong)
		default:
			return nil, errs.Mark(err, errs.ErrDomainValidation)
		}
	}

	// Admin bookings and auto-approve deployments skip the manual approval
	// step; everyone else waits for an operator.
	autoApprove := c.cfg.AutoApprove || role.IsAdmin()
	if autoApprove {
		if err := entity.Approve(); err != nil {
			return nil, errs.Mark(err, errs.ErrDomainValidation)
		}
	}

	bookingID, err := c.persistBooking(ctx, entity, window)
	if err != nil {
		return nil, err
	}

	scheduled := true
	if autoApprove {
		// Scheduling failure is a latent defect, not a request failure: the
		// booking is saved, the missing trigger surfaces via the audit log.
		if err := c.sched.Schedule(ctx, bookingID, window.Start()); err != nil {
			scheduled = false
			slog.Error("failed to schedule approved booking", "booking_id", bookingID, "error", err)
			c.recorder.Record(ctx, audit.LevelWarn, "schedule_booking",
				"booking approved but trigger could not be recorded", &bookingID, nil)
		}
	}

	view, err := c.reads.FindByID(ctx, bookingID)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	return &CreateBookingResult{Booking: view, Scheduled: scheduled}, nil
}

func (c *bookingCommandsImpl) persistBooking(
	ctx context.Context,
	entity *booking.Booking,
	window booking.TimeWindow,
) (uuid.UUID, error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			slog.Warn("failed to rollback transaction", "error", rollbackErr)
		}
	}()

	// Friendly pre-check; the exclusion constraint is the authoritative
	// guard against a concurrent approval slipping in between.
	overlap, err := c.bookingRepo.HasOverlap(ctx, tx, window.Start(), window.End())
	if err != nil {
		return uuid.Nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if overlap {
		return uuid.Nil, errs.ErrBookingConflict
	}

	bookingID, err := c.bookingRepo.Create(ctx, tx, entity)
	if err != nil {
		if infra.IsKind(err, infra.KindConflict) {
			return uuid.Nil, errs.ErrBookingConflict
		}
		return uuid.Nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return bookingID, nil
}
