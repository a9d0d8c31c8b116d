package bootstrap

import (
	"context"
	"log/slog"

	"vmbook/internal/audit"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/pkg/config"
	"vmbook/internal/scheduler"
	"vmbook/internal/usecase/commands"
	"vmbook/internal/workflow"

	"go.uber.org/fx"
)

var SchedulerModule = fx.Module("scheduler",
	fx.Provide(
		fx.Annotate(
			NewExecutor,
			fx.As(new(scheduler.Runner)),
		),
		fx.Annotate(
			NewScheduler,
			fx.As(new(commands.TriggerScheduler)),
		),
	),
)

func NewExecutor(cfg config.Config, bookings workflow.BookingRepository, backend workflow.ComputeBackend, recorder audit.Recorder, clk clock.Clock, logger *slog.Logger) *workflow.Executor {
	return workflow.NewExecutor(
		workflow.Config{
			TargetVM:     cfg.Compute.TargetVM,
			ResourceType: cfg.Compute.ResourceType,
		},
		bookings, backend, recorder, clk, logger,
	)
}

func NewScheduler(lc fx.Lifecycle, cfg config.Config, triggers scheduler.TriggerRepository, runner scheduler.Runner, recorder audit.Recorder, clk clock.Clock, logger *slog.Logger) *scheduler.Scheduler {
	s := scheduler.New(
		scheduler.Config{
			PollInterval: cfg.Scheduler.PollInterval,
			MisfireGrace: cfg.Scheduler.MisfireGrace,
			Workers:      cfg.Scheduler.Workers,
			QueueSize:    cfg.Scheduler.QueueSize,
		},
		triggers, runner, recorder, clk, logger,
	)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return s.Start()
		},
		OnStop: func(_ context.Context) error {
			s.Stop()
			return nil
		},
	})

	return s
}
