//go:build unit

package scheduler_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"vmbook/internal/audit"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/scheduler"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTriggerRepo struct {
	mu       sync.Mutex
	triggers map[uuid.UUID]scheduler.Trigger
}

func newFakeTriggerRepo() *fakeTriggerRepo {
	return &fakeTriggerRepo{triggers: make(map[uuid.UUID]scheduler.Trigger)}
}

func (r *fakeTriggerRepo) Upsert(_ context.Context, bookingID uuid.UUID, fireAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers[bookingID] = scheduler.Trigger{BookingID: bookingID, FireAt: fireAt, CreatedAt: time.Now()}
	return nil
}

func (r *fakeTriggerRepo) ClaimDue(_ context.Context, now time.Time) ([]scheduler.Trigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []scheduler.Trigger
	for id, t := range r.triggers {
		if !t.FireAt.After(now) {
			due = append(due, t)
			delete(r.triggers, id)
		}
	}
	return due, nil
}

func (r *fakeTriggerRepo) Delete(_ context.Context, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.triggers, bookingID)
	return nil
}

func (r *fakeTriggerRepo) get(bookingID uuid.UUID) (scheduler.Trigger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.triggers[bookingID]
	return t, ok
}

func (r *fakeTriggerRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.triggers)
}

type fakeRunner struct {
	executed chan uuid.UUID
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{executed: make(chan uuid.UUID, 16)}
}

func (r *fakeRunner) Execute(_ context.Context, bookingID uuid.UUID) error {
	r.executed <- bookingID
	return nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
	signal  chan struct{}
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{signal: make(chan struct{}, 16)}
}

func (r *recordingRecorder) Record(_ context.Context, level audit.Level, action, message string, bookingID *uuid.UUID, extra map[string]any) {
	r.mu.Lock()
	r.entries = append(r.entries, audit.Entry{
		Level: level, Action: action, Message: message, BookingID: bookingID, Context: extra,
	})
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recordingRecorder) all() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries...)
}

type fixture struct {
	sched    *scheduler.Scheduler
	triggers *fakeTriggerRepo
	runner   *fakeRunner
	recorder *recordingRecorder
	clock    *clock.MockClock
}

func newFixture(t *testing.T, cfg scheduler.Config) *fixture {
	t.Helper()
	f := &fixture{
		triggers: newFakeTriggerRepo(),
		runner:   newFakeRunner(),
		recorder: newRecordingRecorder(),
		clock:    clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.sched = scheduler.New(cfg, f.triggers, f.runner, f.recorder, f.clock, slog.Default())
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sched.Start())
	t.Cleanup(f.sched.Stop)
}

func waitExecuted(t *testing.T, r *fakeRunner) uuid.UUID {
	t.Helper()
	select {
	case id := <-r.executed:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for workflow run")
		return uuid.Nil
	}
}

func assertNotExecuted(t *testing.T, r *fakeRunner) {
	t.Helper()
	select {
	case id := <-r.executed:
		t.Fatalf("unexpected workflow run for %s", id)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestScheduler_Schedule(t *testing.T) {
	cfg := scheduler.Config{PollInterval: 10 * time.Millisecond, MisfireGrace: 5 * time.Minute, Workers: 2}

	t.Run("rejects calls before start", func(t *testing.T) {
		f := newFixture(t, cfg)

		err := f.sched.Schedule(context.Background(), uuid.New(), f.clock.Now())
		require.ErrorIs(t, err, scheduler.ErrNotStarted)
	})

	t.Run("persists trigger in UTC", func(t *testing.T) {
		f := newFixture(t, cfg)
		f.start(t)

		id := uuid.New()
		jst := time.FixedZone("JST", 9*60*60)
		fireAt := f.clock.Now().Add(time.Hour).In(jst)
		require.NoError(t, f.sched.Schedule(context.Background(), id, fireAt))

		stored, ok := f.triggers.get(id)
		require.True(t, ok)
		assert.Equal(t, time.UTC, stored.FireAt.Location())
		assert.True(t, stored.FireAt.Equal(fireAt))
	})

	t.Run("rescheduling replaces the previous trigger", func(t *testing.T) {
		f := newFixture(t, cfg)
		f.start(t)

		id := uuid.New()
		first := f.clock.Now().Add(time.Hour)
		second := f.clock.Now().Add(2 * time.Hour)

		require.NoError(t, f.sched.Schedule(context.Background(), id, first))
		require.NoError(t, f.sched.Schedule(context.Background(), id, second))

		require.Equal(t, 1, f.triggers.count())
		stored, ok := f.triggers.get(id)
		require.True(t, ok)
		assert.True(t, stored.FireAt.Equal(second))
	})
}

func TestScheduler_Dispatch(t *testing.T) {
	cfg := scheduler.Config{PollInterval: 10 * time.Millisecond, MisfireGrace: 5 * time.Minute, Workers: 2}

	t.Run("fires a due trigger once", func(t *testing.T) {
		f := newFixture(t, cfg)
		f.start(t)

		id := uuid.New()
		require.NoError(t, f.sched.Schedule(context.Background(), id, f.clock.Now().Add(time.Minute)))

		// Not due yet
		assertNotExecuted(t, f.runner)

		f.clock.Advance(2 * time.Minute)
		assert.Equal(t, id, waitExecuted(t, f.runner))

		// Claimed triggers are removed, so it never fires twice
		assertNotExecuted(t, f.runner)
		assert.Equal(t, 0, f.triggers.count())
	})

	t.Run("fires a slightly late trigger within the grace window", func(t *testing.T) {
		f := newFixture(t, cfg)
		f.start(t)

		id := uuid.New()
		require.NoError(t, f.sched.Schedule(context.Background(), id, f.clock.Now().Add(time.Minute)))

		f.clock.Advance(4 * time.Minute)
		assert.Equal(t, id, waitExecuted(t, f.runner))
	})

	t.Run("drops a stale trigger past the grace window", func(t *testing.T) {
		f := newFixture(t, cfg)
		f.start(t)

		id := uuid.New()
		require.NoError(t, f.sched.Schedule(context.Background(), id, f.clock.Now().Add(time.Minute)))

		f.clock.Advance(10 * time.Minute)

		select {
		case <-f.recorder.signal:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for misfire audit entry")
		}

		assertNotExecuted(t, f.runner)

		entries := f.recorder.all()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.LevelWarn, entries[0].Level)
		assert.Equal(t, "trigger_misfire", entries[0].Action)
		require.NotNil(t, entries[0].BookingID)
		assert.Equal(t, id, *entries[0].BookingID)
	})

	t.Run("cancel removes a pending trigger", func(t *testing.T) {
		f := newFixture(t, cfg)
		f.start(t)

		id := uuid.New()
		require.NoError(t, f.sched.Schedule(context.Background(), id, f.clock.Now().Add(time.Minute)))
		require.NoError(t, f.sched.Cancel(context.Background(), id))

		f.clock.Advance(2 * time.Minute)
		assertNotExecuted(t, f.runner)
	})
}

// gatedRunner parks inside Execute until released, so a test can wedge the
// worker pool on purpose.
type gatedRunner struct {
	started chan uuid.UUID
	release chan struct{}
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{started: make(chan uuid.UUID, 8), release: make(chan struct{})}
}

func (r *gatedRunner) Execute(_ context.Context, bookingID uuid.UUID) error {
	r.started <- bookingID
	<-r.release
	return nil
}

func TestScheduler_Shutdown(t *testing.T) {
	t.Run("audits claimed triggers that never reached a worker", func(t *testing.T) {
		// One wedged worker and a one-slot queue: the third due trigger can
		// only sit in the blocked hand-off when Stop arrives.
		cfg := scheduler.Config{PollInterval: 10 * time.Millisecond, MisfireGrace: 5 * time.Minute, Workers: 1, QueueSize: 1}
		triggers := newFakeTriggerRepo()
		runner := newGatedRunner()
		recorder := newRecordingRecorder()
		clk := clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		s := scheduler.New(cfg, triggers, runner, recorder, clk, slog.Default())
		require.NoError(t, s.Start())

		for i := 0; i < 3; i++ {
			require.NoError(t, s.Schedule(context.Background(), uuid.New(), clk.Now().Add(time.Minute)))
		}
		clk.Advance(2 * time.Minute)

		// The single worker takes the first job and parks
		select {
		case <-runner.started:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the first workflow run to start")
		}

		stopped := make(chan struct{})
		go func() {
			s.Stop()
			close(stopped)
		}()

		select {
		case <-recorder.signal:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the shutdown-drop audit entry")
		}

		close(runner.release)
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the scheduler to stop")
		}

		var dropped []audit.Entry
		for _, e := range recorder.all() {
			if e.Action == "trigger_dropped" {
				dropped = append(dropped, e)
			}
		}
		require.NotEmpty(t, dropped)
		for _, e := range dropped {
			assert.Equal(t, audit.LevelWarn, e.Level)
			require.NotNil(t, e.BookingID)
		}
	})
}

func TestScheduler_RunNow(t *testing.T) {
	cfg := scheduler.Config{PollInterval: time.Hour, MisfireGrace: 5 * time.Minute, Workers: 2}

	t.Run("fires immediately without a stored trigger", func(t *testing.T) {
		f := newFixture(t, cfg)
		f.start(t)

		id := uuid.New()
		require.NoError(t, f.sched.RunNow(context.Background(), id))
		assert.Equal(t, id, waitExecuted(t, f.runner))
		assert.Equal(t, 0, f.triggers.count())
	})

	t.Run("rejects calls before start", func(t *testing.T) {
		f := newFixture(t, cfg)

		err := f.sched.RunNow(context.Background(), uuid.New())
		require.ErrorIs(t, err, scheduler.ErrNotStarted)
	})
}
