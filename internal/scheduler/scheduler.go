// Package scheduler maintains durable one-shot triggers that fire a booking's
// workflow at its reserved start time. Triggers live in the same Postgres
// instance as the bookings themselves, so pending work survives a process
// restart; an in-process timer alone would not.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vmbook/internal/audit"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrNotStarted = errs.New("scheduler not started")
)

// Trigger is a durable instruction to run a booking's workflow at FireAt.
// The booking id doubles as the trigger's identity, which gives Schedule its
// replace-on-reschedule semantics for free.
type Trigger struct {
	BookingID uuid.UUID
	FireAt    time.Time
	CreatedAt time.Time
}

type TriggerRepository interface {
	// Upsert inserts or replaces the trigger for the given booking.
	Upsert(ctx context.Context, bookingID uuid.UUID, fireAt time.Time) error
	// ClaimDue atomically removes and returns every trigger whose fire time
	// has passed. A claimed trigger is never returned twice; delivery is
	// at-most-once, so a crash between the claim and the worker hand-off
	// loses the trigger.
	ClaimDue(ctx context.Context, now time.Time) ([]Trigger, error)
	Delete(ctx context.Context, bookingID uuid.UUID) error
}

// Runner executes the disk-swap workflow for one booking. Eligibility and
// single-flight are the runner's concern, not the scheduler's.
type Runner interface {
	Execute(ctx context.Context, bookingID uuid.UUID) error
}

type Config struct {
	PollInterval time.Duration
	// MisfireGrace bounds how late a trigger may fire and still be honored.
	// Older triggers are dropped rather than executing a badly stale action.
	MisfireGrace time.Duration
	Workers      int
	QueueSize    int
}

type job struct {
	bookingID uuid.UUID
	firedAt   time.Time
	immediate bool
}

type Scheduler struct {
	cfg      Config
	triggers TriggerRepository
	runner   Runner
	recorder audit.Recorder
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	jobs    chan job
	wg      sync.WaitGroup
}

func New(cfg Config, triggers TriggerRepository, runner Runner, recorder audit.Recorder, clk clock.Clock, logger *slog.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	return &Scheduler{
		cfg:      cfg,
		triggers: triggers,
		runner:   runner,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
	}
}

// Start launches the dispatch loop and the worker pool. The first tick picks
// up anything that came due while the process was down.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.stop = make(chan struct{})
	s.jobs = make(chan job, s.cfg.QueueSize)
	s.started = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(i)
	}

	s.wg.Add(1)
	go s.dispatchLoop()

	s.logger.Info("scheduler started",
		"poll_interval", s.cfg.PollInterval,
		"misfire_grace", s.cfg.MisfireGrace,
		"workers", s.cfg.Workers)
	return nil
}

// Stop shuts down the dispatch loop and waits for in-flight workflow runs.
// Remote calls inside a run are blocking and may take tens of seconds.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Schedule inserts or replaces the one-time trigger for a booking. Calling it
// before Start is a startup-ordering bug surfaced as ErrNotStarted; callers
// log it and let the originating request succeed.
func (s *Scheduler) Schedule(ctx context.Context, bookingID uuid.UUID, fireAt time.Time) error {
	if !s.running() {
		s.logger.Error("scheduler not started, trigger not recorded", "booking_id", bookingID)
		return ErrNotStarted
	}

	if err := s.triggers.Upsert(ctx, bookingID, fireAt.UTC()); err != nil {
		return errs.Wrap(err, "failed to persist trigger")
	}

	triggersScheduled.Inc()
	s.logger.Info("trigger scheduled", "booking_id", bookingID, "fire_at", fireAt.UTC())
	return nil
}

// RunNow enqueues an immediate fire for the booking, independent of any
// stored trigger. The executor's status guard keeps a scheduled trigger and a
// run-now for the same booking from both acting.
func (s *Scheduler) RunNow(ctx context.Context, bookingID uuid.UUID) error {
	if !s.running() {
		s.logger.Error("scheduler not started, run-now dropped", "booking_id", bookingID)
		return ErrNotStarted
	}

	j := job{bookingID: bookingID, firedAt: s.clock.Now(), immediate: true}
	select {
	case s.jobs <- j:
		triggersFired.WithLabelValues("immediate").Inc()
		return nil
	case <-s.stop:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel removes a pending trigger, if any. Running workflows are unaffected;
// only un-fired triggers can be cancelled.
func (s *Scheduler) Cancel(ctx context.Context, bookingID uuid.UUID) error {
	return s.triggers.Delete(ctx, bookingID)
}

func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dispatchDue()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) dispatchDue() {
	ctx := context.Background()
	now := s.clock.Now()

	due, err := s.triggers.ClaimDue(ctx, now)
	if err != nil {
		s.logger.Error("failed to claim due triggers", "error", err)
		return
	}

	for i, t := range due {
		lateness := now.Sub(t.FireAt)
		if s.cfg.MisfireGrace > 0 && lateness > s.cfg.MisfireGrace {
			triggersMisfired.Inc()
			s.logger.Warn("dropping stale trigger",
				"booking_id", t.BookingID,
				"fire_at", t.FireAt,
				"lateness", lateness)
			id := t.BookingID
			s.recorder.Record(ctx, audit.LevelWarn, "trigger_misfire",
				"trigger fired past the grace window and was dropped", &id,
				map[string]any{"fire_at": t.FireAt, "lateness": lateness.String()})
			continue
		}

		select {
		case s.jobs <- job{bookingID: t.BookingID, firedAt: now}:
			triggersFired.WithLabelValues("scheduled").Inc()
		case <-s.stop:
			// Claimed rows are already deleted, so these triggers will not
			// fire after a restart. Leave a trace for the operator.
			s.reportUnqueued(ctx, due[i:])
			return
		}
	}
}

func (s *Scheduler) reportUnqueued(ctx context.Context, lost []Trigger) {
	for _, t := range lost {
		id := t.BookingID
		s.logger.Warn("claimed trigger dropped at shutdown",
			"booking_id", id, "fire_at", t.FireAt)
		s.recorder.Record(ctx, audit.LevelWarn, "trigger_dropped",
			"scheduler stopped before a claimed trigger reached a worker", &id,
			map[string]any{"fire_at": t.FireAt})
	}
}

func (s *Scheduler) workerLoop(id int) {
	defer s.wg.Done()

	for {
		select {
		case j := <-s.jobs:
			s.execute(id, j)
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) execute(workerID int, j job) {
	ctx := context.Background()
	start := s.clock.Now()

	if err := s.runner.Execute(ctx, j.bookingID); err != nil {
		runsTotal.WithLabelValues("error").Inc()
		s.logger.Error("workflow run failed",
			"booking_id", j.bookingID,
			"worker", workerID,
			"immediate", j.immediate,
			"error", err)
		return
	}

	runsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("workflow run finished",
		"booking_id", j.bookingID,
		"worker", workerID,
		"duration", s.clock.Now().Sub(start))
}
