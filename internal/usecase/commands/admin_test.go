//go:build unit

package commands_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"vmbook/internal/audit"
	"vmbook/internal/infra"
	"vmbook/internal/pkg/errs"
	"vmbook/internal/usecase/commands"
	"vmbook/internal/usecase/queries"
	"vmbook/tests/common/builder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStateRepo struct {
	approveAffected int64
	approveErr      error
	rejectAffected  int64
	rejectErr       error
	completeRows    int64
	completeErr     error
}

func (f *fakeStateRepo) Approve(context.Context, uuid.UUID) (int64, error) {
	return f.approveAffected, f.approveErr
}

func (f *fakeStateRepo) Reject(context.Context, uuid.UUID) (int64, error) {
	return f.rejectAffected, f.rejectErr
}

func (f *fakeStateRepo) Complete(context.Context, uuid.UUID) (int64, error) {
	return f.completeRows, f.completeErr
}

type fakeReads struct {
	views map[uuid.UUID]*queries.BookingView
}

func (f *fakeReads) FindByID(_ context.Context, id uuid.UUID) (*queries.BookingView, error) {
	v, ok := f.views[id]
	if !ok {
		return nil, infra.WrapRepoErr("booking not found", nil, infra.KindNotFound)
	}
	return v, nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
	ran       []uuid.UUID
	cancelled []uuid.UUID

	scheduleErr error
	runNowErr   error
	cancelErr   error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[uuid.UUID]time.Time)}
}

func (f *fakeScheduler) Schedule(_ context.Context, id uuid.UUID, fireAt time.Time) error {
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[id] = fireAt
	return nil
}

func (f *fakeScheduler) RunNow(_ context.Context, id uuid.UUID) error {
	if f.runNowErr != nil {
		return f.runNowErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, id)
	return nil
}

func (f *fakeScheduler) Cancel(_ context.Context, id uuid.UUID) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *captureRecorder) Record(_ context.Context, level audit.Level, action, message string, bookingID *uuid.UUID, ctxData map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, audit.Entry{
		Level:     level,
		Action:    action,
		Message:   message,
		BookingID: bookingID,
		Context:   ctxData,
	})
}

func (r *captureRecorder) byAction(action string) []audit.Entry {
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

type adminFixture struct {
	stateRepo *fakeStateRepo
	reads     *fakeReads
	sched     *fakeScheduler
	recorder  *captureRecorder
	cmds      commands.AdminCommands
}

func newAdminFixture(views ...*queries.BookingView) *adminFixture {
	f := &adminFixture{
		stateRepo: &fakeStateRepo{},
		reads:     &fakeReads{views: make(map[uuid.UUID]*queries.BookingView)},
		sched:     newFakeScheduler(),
		recorder:  &captureRecorder{},
	}
	for _, v := range views {
		f.reads.views[v.ID] = v
	}
	f.cmds = commands.NewAdminCommands(f.stateRepo, f.reads, f.sched, f.recorder)
	return f
}

func TestAdminCommands_Approve(t *testing.T) {
	t.Run("approving schedules a trigger at the window start", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)
		f.stateRepo.approveAffected = 1

		err := f.cmds.Approve(context.Background(), view.ID)

		require.NoError(t, err)
		fireAt, ok := f.sched.scheduled[view.ID]
		require.True(t, ok, "expected a trigger for the approved booking")
		assert.Equal(t, view.StartAt, fireAt)
	})

	t.Run("unknown booking returns not found", func(t *testing.T) {
		f := newAdminFixture()

		err := f.cmds.Approve(context.Background(), uuid.New())

		assert.ErrorIs(t, err, errs.ErrBookingNotFound)
		assert.Empty(t, f.sched.scheduled)
	})

	t.Run("zero affected rows means the booking is not pending", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)
		f.stateRepo.approveAffected = 0

		err := f.cmds.Approve(context.Background(), view.ID)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
		assert.Empty(t, f.sched.scheduled)
	})

	t.Run("exclusion violation maps to booking conflict", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)
		f.stateRepo.approveErr = infra.WrapRepoErr("window overlap", nil, infra.KindConflict)

		err := f.cmds.Approve(context.Background(), view.ID)

		assert.ErrorIs(t, err, errs.ErrBookingConflict)
	})

	t.Run("scheduling failure keeps the approval and records a warning", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)
		f.stateRepo.approveAffected = 1
		f.sched.scheduleErr = errs.New("trigger store unavailable")

		err := f.cmds.Approve(context.Background(), view.ID)

		require.NoError(t, err)
		warns := f.recorder.byAction("schedule_booking")
		require.Len(t, warns, 1)
		assert.Equal(t, audit.LevelWarn, warns[0].Level)
		require.NotNil(t, warns[0].BookingID)
		assert.Equal(t, view.ID, *warns[0].BookingID)
	})
}

func TestAdminCommands_Reject(t *testing.T) {
	t.Run("rejecting removes any pending trigger", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)
		f.stateRepo.rejectAffected = 1

		err := f.cmds.Reject(context.Background(), view.ID)

		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{view.ID}, f.sched.cancelled)
	})

	t.Run("zero rows and missing booking returns not found", func(t *testing.T) {
		f := newAdminFixture()

		err := f.cmds.Reject(context.Background(), uuid.New())

		assert.ErrorIs(t, err, errs.ErrBookingNotFound)
	})

	t.Run("zero rows on an existing booking means it is already closed", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)

		err := f.cmds.Reject(context.Background(), view.ID)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})

	t.Run("trigger removal failure does not fail the rejection", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)
		f.stateRepo.rejectAffected = 1
		f.sched.cancelErr = errs.New("trigger store unavailable")

		err := f.cmds.Reject(context.Background(), view.ID)

		require.NoError(t, err)
	})
}

func TestAdminCommands_RunNow(t *testing.T) {
	t.Run("fires the workflow for an existing booking", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)

		err := f.cmds.RunNow(context.Background(), view.ID)

		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{view.ID}, f.sched.ran)
	})

	t.Run("unknown booking returns not found", func(t *testing.T) {
		f := newAdminFixture()

		err := f.cmds.RunNow(context.Background(), uuid.New())

		assert.ErrorIs(t, err, errs.ErrBookingNotFound)
		assert.Empty(t, f.sched.ran)
	})

	t.Run("scheduler failure surfaces as scheduling failed", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)
		f.sched.runNowErr = errs.New("worker pool shut down")

		err := f.cmds.RunNow(context.Background(), view.ID)

		assert.ErrorIs(t, err, errs.ErrSchedulingFailed)
	})
}

func TestAdminCommands_Complete(t *testing.T) {
	t.Run("completing a running booking succeeds", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)
		f.stateRepo.completeRows = 1

		err := f.cmds.Complete(context.Background(), view.ID)

		require.NoError(t, err)
	})

	t.Run("zero rows on an existing booking means it is not running", func(t *testing.T) {
		view := builder.NewBookingBuilder().BuildView()
		f := newAdminFixture(view)

		err := f.cmds.Complete(context.Background(), view.ID)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})

	t.Run("zero rows and missing booking returns not found", func(t *testing.T) {
		f := newAdminFixture()

		err := f.cmds.Complete(context.Background(), uuid.New())

		assert.ErrorIs(t, err, errs.ErrBookingNotFound)
	})
}
