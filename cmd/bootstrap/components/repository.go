package components

import (
	"vmbook/internal/audit"
	"vmbook/internal/infra/readstore"
	repo_impl "vmbook/internal/infra/repository"
	"vmbook/internal/scheduler"
	"vmbook/internal/usecase/commands"
	"vmbook/internal/usecase/queries"
	"vmbook/internal/workflow"

	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		// Booking write side: one implementation serves the command layer,
		// the admin transitions, and the workflow executor.
		fx.Annotate(
			repo_impl.NewBookingRepository,
			fx.As(new(commands.BookingRepository)),
			fx.As(new(commands.BookingStateRepository)),
			fx.As(new(workflow.BookingRepository)),
		),
		// Trigger store
		fx.Annotate(
			repo_impl.NewTriggerRepository,
			fx.As(new(scheduler.TriggerRepository)),
		),
		// User
		fx.Annotate(
			repo_impl.NewUserRepository,
			fx.As(new(commands.UserRepository)),
		),
		// Audit sink and read side
		fx.Annotate(
			repo_impl.NewAuditRepository,
			fx.As(new(audit.Recorder)),
			fx.As(new(queries.AuditReadStore)),
		),
		// Booking read side
		fx.Annotate(
			readstore.NewBookingReadStore,
			fx.As(new(queries.BookingReadStore)),
			fx.As(new(commands.BookingReads)),
		),
	),
)
