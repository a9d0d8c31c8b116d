//go:build unit

package workflow_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"vmbook/internal/audit"
	"vmbook/internal/domain/booking"
	"vmbook/internal/infra"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/workflow"
	"vmbook/tests/common/builder"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stepDeallocate = "deallocate_vm"
	stepCreateDisk = "create_disk"
	stepAttachDisk = "attach_disk"
	stepStartVM    = "start_vm"
)

var stepOrder = []string{stepDeallocate, stepCreateDisk, stepAttachDisk, stepStartVM}

// fakeBackend records the call order and can be told to fail at one step.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []string
	failAt string
}

func (b *fakeBackend) record(step string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, step)
	if b.failAt == step {
		return fmt.Errorf("compute API error at %s", step)
	}
	return nil
}

func (b *fakeBackend) Deallocate(context.Context) error { return b.record(stepDeallocate) }

func (b *fakeBackend) CreateDisk(_ context.Context, prefix string) (string, error) {
	if err := b.record(stepCreateDisk); err != nil {
		return "", err
	}
	return prefix + "-20260301120000", nil
}

func (b *fakeBackend) AttachDisk(_ context.Context, _ string) error {
	return b.record(stepAttachDisk)
}

func (b *fakeBackend) Start(context.Context) error { return b.record(stepStartVM) }

// fakeBookingRepo holds one booking's run state in memory.
type fakeBookingRepo struct {
	info *workflow.RunInfo

	claimed   bool
	failedMsg *string
	vmName    string
	diskName  string
	succeeded bool
}

func (r *fakeBookingRepo) FindForRun(_ context.Context, id uuid.UUID) (*workflow.RunInfo, error) {
	if r.info == nil || r.info.ID != id {
		return nil, infra.WrapRepoErr("booking not found", fmt.Errorf("no rows"), infra.KindNotFound)
	}
	return r.info, nil
}

func (r *fakeBookingRepo) ClaimForRun(_ context.Context, _ uuid.UUID, _ time.Time) (bool, error) {
	if r.info.Status != booking.StatusApproved || r.claimed {
		return false, nil
	}
	r.claimed = true
	r.info.Status = booking.StatusRunning
	return true, nil
}

func (r *fakeBookingRepo) MarkFailed(_ context.Context, _ uuid.UUID, _ time.Time, lastError string) error {
	r.failedMsg = &lastError
	r.info.Status = booking.StatusFailed
	return nil
}

func (r *fakeBookingRepo) MarkSucceeded(_ context.Context, _ uuid.UUID, _ time.Time, vmName, diskName string) error {
	r.succeeded = true
	r.vmName = vmName
	r.diskName = diskName
	return nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingRecorder) Record(_ context.Context, level audit.Level, action, message string, bookingID *uuid.UUID, extra map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, audit.Entry{
		Level: level, Action: action, Message: message, BookingID: bookingID, Context: extra,
	})
}

func (r *recordingRecorder) byAction(action string) []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type fixture struct {
	executor *workflow.Executor
	repo     *fakeBookingRepo
	backend  *fakeBackend
	recorder *recordingRecorder
}

func newFixture(t *testing.T, status booking.Status) *fixture {
	t.Helper()
	f := &fixture{
		repo:     &fakeBookingRepo{info: builder.NewBookingBuilder().WithStatus(status).BuildRunInfo()},
		backend:  &fakeBackend{},
		recorder: &recordingRecorder{},
	}
	f.executor = workflow.NewExecutor(
		workflow.Config{TargetVM: "lab-vm", ResourceType: "kali2"},
		f.repo, f.backend, f.recorder,
		clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		slog.Default(),
	)
	return f
}

func TestExecutor_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("success runs all steps in order", func(t *testing.T) {
		f := newFixture(t, booking.StatusApproved)

		require.NoError(t, f.executor.Execute(ctx, f.repo.info.ID))

		if diff := cmp.Diff(stepOrder, f.backend.calls); diff != "" {
			t.Errorf("step sequence mismatch (-want +got):\n%s", diff)
		}
		assert.True(t, f.repo.succeeded)
		assert.Nil(t, f.repo.failedMsg)
		assert.Equal(t, "lab-vm", f.repo.vmName)
		assert.Equal(t, "student1-kali2-disk-20260301120000", f.repo.diskName)
		// Workflow success leaves the booking running; completion is an
		// operator action.
		assert.Equal(t, booking.StatusRunning, f.repo.info.Status)
	})

	t.Run("failure at each step stops the sequence", func(t *testing.T) {
		for i, failStep := range stepOrder {
			t.Run(failStep, func(t *testing.T) {
				f := newFixture(t, booking.StatusApproved)
				f.backend.failAt = failStep

				err := f.executor.Execute(ctx, f.repo.info.ID)
				require.ErrorIs(t, err, workflow.ErrStepFailed)

				// Steps up to and including the failing one ran, nothing after
				if diff := cmp.Diff(stepOrder[:i+1], f.backend.calls); diff != "" {
					t.Errorf("step sequence mismatch (-want +got):\n%s", diff)
				}
				assert.False(t, f.repo.succeeded)
				assert.Equal(t, booking.StatusFailed, f.repo.info.Status)
				require.NotNil(t, f.repo.failedMsg)
				assert.Contains(t, *f.repo.failedMsg, failStep)

				failures := f.recorder.byAction(failStep)
				require.NotEmpty(t, failures)
				assert.Equal(t, audit.LevelError, failures[len(failures)-1].Level)
			})
		}
	})

	t.Run("ineligible booking is skipped with one audit entry", func(t *testing.T) {
		for _, status := range []booking.Status{
			booking.StatusPending,
			booking.StatusRejected,
			booking.StatusRunning,
			booking.StatusCompleted,
			booking.StatusFailed,
		} {
			t.Run(status.String(), func(t *testing.T) {
				f := newFixture(t, status)

				require.NoError(t, f.executor.Execute(ctx, f.repo.info.ID))

				assert.Empty(t, f.backend.calls)
				assert.False(t, f.repo.succeeded)
				assert.Equal(t, 1, f.recorder.count())

				skips := f.recorder.byAction("run_booking")
				require.Len(t, skips, 1)
				assert.Equal(t, audit.LevelInfo, skips[0].Level)
			})
		}
	})

	t.Run("second run on the same booking is a no-op", func(t *testing.T) {
		f := newFixture(t, booking.StatusApproved)

		require.NoError(t, f.executor.Execute(ctx, f.repo.info.ID))
		callsAfterFirst := len(f.backend.calls)

		require.NoError(t, f.executor.Execute(ctx, f.repo.info.ID))
		assert.Equal(t, callsAfterFirst, len(f.backend.calls))
	})

	t.Run("missing booking aborts with audit error", func(t *testing.T) {
		f := newFixture(t, booking.StatusApproved)

		err := f.executor.Execute(ctx, uuid.New())
		require.ErrorIs(t, err, workflow.ErrBookingNotFound)
		assert.Empty(t, f.backend.calls)

		aborts := f.recorder.byAction("run_booking")
		require.Len(t, aborts, 1)
		assert.Equal(t, audit.LevelError, aborts[0].Level)
	})
}
