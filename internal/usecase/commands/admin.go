package commands

import (
	"context"
	"log/slog"

	"vmbook/internal/audit"
	"vmbook/internal/infra"
	"vmbook/internal/pkg/errs"

	"github.com/google/uuid"
)

// BookingStateRepository exposes the conditional status transitions. Each
// method reports the affected-row count so callers can tell "not found" from
// "not in an eligible state" without a read-modify-write cycle.
type BookingStateRepository interface {
	Approve(ctx context.Context, id uuid.UUID) (int64, error)
	Reject(ctx context.Context, id uuid.UUID) (int64, error)
	Complete(ctx context.Context, id uuid.UUID) (int64, error)
}

// AdminCommands is the approval surface: on-approved schedules the trigger,
// on-run-now fires immediately. Both are fire-and-forget for the caller.
type AdminCommands interface {
	Approve(ctx context.Context, bookingID uuid.UUID) error
	Reject(ctx context.Context, bookingID uuid.UUID) error
	RunNow(ctx context.Context, bookingID uuid.UUID) error
	Complete(ctx context.Context, bookingID uuid.UUID) error
}

type adminCommandsImpl struct {
	stateRepo BookingStateRepository
	reads     BookingReads
	sched     TriggerScheduler
	recorder  audit.Recorder
}

func NewAdminCommands(
	stateRepo BookingStateRepository,
	reads BookingReads,
	sched TriggerScheduler,
	recorder audit.Recorder,
) AdminCommands {
	return &adminCommandsImpl{
		stateRepo: stateRepo,
		reads:     reads,
		sched:     sched,
		recorder:  recorder,
	}
}

func (c *adminCommandsImpl) Approve(ctx context.Context, bookingID uuid.UUID) error {
	view, err := c.reads.FindByID(ctx, bookingID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return errs.ErrBookingNotFound
		}
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	affected, err := c.stateRepo.Approve(ctx, bookingID)
	if err != nil {
		if infra.IsKind(err, infra.KindConflict) {
			return errs.ErrBookingConflict
		}
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if affected == 0 {
		return errs.ErrInvalidTransition
	}

	// Re-approval replaces any existing trigger for this booking; the upsert
	// keyed on booking id guarantees exactly one live trigger.
	if err := c.sched.Schedule(ctx, bookingID, view.StartAt); err != nil {
		slog.Error("approved booking could not be scheduled", "booking_id", bookingID, "error", err)
		c.recorder.Record(ctx, audit.LevelWarn, "schedule_booking",
			"booking approved but trigger could not be recorded", &bookingID, nil)
	}
	return nil
}

func (c *adminCommandsImpl) Reject(ctx context.Context, bookingID uuid.UUID) error {
	affected, err := c.stateRepo.Reject(ctx, bookingID)
	if err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if affected == 0 {
		if _, findErr := c.reads.FindByID(ctx, bookingID); findErr != nil {
			if infra.IsKind(findErr, infra.KindNotFound) {
				return errs.ErrBookingNotFound
			}
			return errs.Mark(findErr, errs.ErrDatabaseOperationFailed)
		}
		return errs.ErrInvalidTransition
	}

	if err := c.sched.Cancel(ctx, bookingID); err != nil {
		slog.Warn("failed to remove trigger for rejected booking", "booking_id", bookingID, "error", err)
	}
	return nil
}

func (c *adminCommandsImpl) RunNow(ctx context.Context, bookingID uuid.UUID) error {
	if _, err := c.reads.FindByID(ctx, bookingID); err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return errs.ErrBookingNotFound
		}
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	if err := c.sched.RunNow(ctx, bookingID); err != nil {
		return errs.Mark(err, errs.ErrSchedulingFailed)
	}
	return nil
}

func (c *adminCommandsImpl) Complete(ctx context.Context, bookingID uuid.UUID) error {
	affected, err := c.stateRepo.Complete(ctx, bookingID)
	if err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	if affected == 0 {
		if _, findErr := c.reads.FindByID(ctx, bookingID); findErr != nil {
			if infra.IsKind(findErr, infra.KindNotFound) {
				return errs.ErrBookingNotFound
			}
			return errs.Mark(findErr, errs.ErrDatabaseOperationFailed)
		}
		return errs.ErrInvalidTransition
	}
	return nil
}
