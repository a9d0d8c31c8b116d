// Package workflow runs the ordered disk-swap sequence against the compute
// backend for one booking: deallocate the VM, clone a fresh disk from the
// template, attach it as the primary disk, start the VM.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vmbook/internal/audit"
	"vmbook/internal/domain/booking"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound = errs.New("booking not found")
	ErrStepFailed      = errs.New("workflow step failed")
)

// ComputeBackend is the port to the cloud compute API. Every call blocks
// until the remote operation finishes and is safe to retry at the caller's
// discretion; timeouts are the implementation's concern.
type ComputeBackend interface {
	Deallocate(ctx context.Context) error
	// CreateDisk clones the template disk under a name derived from prefix
	// and returns the final disk name.
	CreateDisk(ctx context.Context, prefix string) (string, error)
	AttachDisk(ctx context.Context, diskName string) error
	Start(ctx context.Context) error
}

// RunInfo is the slice of a booking the executor needs.
type RunInfo struct {
	ID            uuid.UUID
	OwnerUsername string
	Status        booking.Status
	StartAt       time.Time
	EndAt         time.Time
}

type BookingRepository interface {
	FindForRun(ctx context.Context, id uuid.UUID) (*RunInfo, error)
	// ClaimForRun transitions approved -> running atomically and reports
	// whether this caller won the claim. Affected-row count at the storage
	// layer closes the race between two near-simultaneous fires.
	ClaimForRun(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, now time.Time, lastError string) error
	MarkSucceeded(ctx context.Context, id uuid.UUID, now time.Time, vmName, diskName string) error
}

type Config struct {
	TargetVM     string
	ResourceType string
}

// step is one named unit of the remote sequence. Each step's precondition is
// the previous step's success; the runner loop applies uniform audit and
// failure handling to all of them.
type step struct {
	name string
	run  func(ctx context.Context, st *runState) error
}

type runState struct {
	diskPrefix string
	diskName   string
}

type Executor struct {
	cfg      Config
	bookings BookingRepository
	backend  ComputeBackend
	recorder audit.Recorder
	clock    clock.Clock
	logger   *slog.Logger
	steps    []step
}

func NewExecutor(cfg Config, bookings BookingRepository, backend ComputeBackend, recorder audit.Recorder, clk clock.Clock, logger *slog.Logger) *Executor {
	e := &Executor{
		cfg:      cfg,
		bookings: bookings,
		backend:  backend,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
	}
	e.steps = []step{
		{name: "deallocate_vm", run: func(ctx context.Context, _ *runState) error {
			return backend.Deallocate(ctx)
		}},
		{name: "create_disk", run: func(ctx context.Context, st *runState) error {
			name, err := backend.CreateDisk(ctx, st.diskPrefix)
			if err != nil {
				return err
			}
			st.diskName = name
			return nil
		}},
		{name: "attach_disk", run: func(ctx context.Context, st *runState) error {
			return backend.AttachDisk(ctx, st.diskName)
		}},
		{name: "start_vm", run: func(ctx context.Context, _ *runState) error {
			return backend.Start(ctx)
		}},
	}
	return e
}

// Execute runs the whole sequence once for the booking. Partial failure
// leaves the remote resource as-is: steps are not idempotent against partial
// state, so remediation is an operator re-run, not automatic compensation.
func (e *Executor) Execute(ctx context.Context, bookingID uuid.UUID) error {
	info, err := e.bookings.FindForRun(ctx, bookingID)
	if err != nil {
		e.recorder.Record(ctx, audit.LevelError, "run_booking",
			"booking not found, workflow aborted", &bookingID, nil)
		return errs.Mark(err, ErrBookingNotFound)
	}

	claimed, err := e.bookings.ClaimForRun(ctx, bookingID, e.clock.Now())
	if err != nil {
		return errs.Wrap(err, "failed to claim booking for run")
	}
	if !claimed {
		// Concurrent fire, rejection, or completed run. Exactly one audit
		// entry, no status change.
		e.logger.Info("booking not eligible for run, skipping",
			"booking_id", bookingID, "status", info.Status)
		e.recorder.Record(ctx, audit.LevelInfo, "run_booking",
			fmt.Sprintf("booking not eligible (status=%s), skipping", info.Status), &bookingID, nil)
		return nil
	}

	e.recorder.Record(ctx, audit.LevelInfo, "run_booking", "workflow started", &bookingID,
		map[string]any{"vm": e.cfg.TargetVM, "owner": info.OwnerUsername})

	st := &runState{
		diskPrefix: fmt.Sprintf("%s-%s-disk", info.OwnerUsername, e.cfg.ResourceType),
	}

	for _, s := range e.steps {
		if err := e.runStep(ctx, bookingID, s, st); err != nil {
			return err
		}
	}

	now := e.clock.Now()
	if err := e.bookings.MarkSucceeded(ctx, bookingID, now, e.cfg.TargetVM, st.diskName); err != nil {
		return errs.Wrap(err, "workflow succeeded but booking update failed")
	}

	e.recorder.Record(ctx, audit.LevelInfo, "run_booking", "workflow finished", &bookingID,
		map[string]any{"vm": e.cfg.TargetVM, "disk": st.diskName})
	e.logger.Info("workflow finished", "booking_id", bookingID, "disk", st.diskName)
	return nil
}

func (e *Executor) runStep(ctx context.Context, bookingID uuid.UUID, s step, st *runState) error {
	e.recorder.Record(ctx, audit.LevelInfo, s.name, "step starting", &bookingID, nil)

	if err := s.run(ctx, st); err != nil {
		msg := fmt.Sprintf("step %s failed: %v", s.name, err)
		now := e.clock.Now()
		if markErr := e.bookings.MarkFailed(ctx, bookingID, now, msg); markErr != nil {
			e.logger.Error("failed to mark booking failed",
				"booking_id", bookingID, "error", markErr)
		}
		e.recorder.Record(ctx, audit.LevelError, s.name, msg, &bookingID, nil)
		return errs.Mark(errs.Wrap(err, "step "+s.name), ErrStepFailed)
	}

	e.recorder.Record(ctx, audit.LevelInfo, s.name, "step succeeded", &bookingID, nil)
	return nil
}
