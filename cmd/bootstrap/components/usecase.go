package components

import (
	"vmbook/internal/domain/booking"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/pkg/config"
	"vmbook/internal/usecase/commands"
	"vmbook/internal/usecase/queries"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseQueriesModule,
	usecaseCommandsModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	func(cfg config.Config) config.BookingConfig {
		return cfg.Booking
	},
	func(clk clock.Clock, cfg config.BookingConfig) *booking.Services {
		return &booking.Services{
			Clock: clk,
			Policy: booking.Policy{
				MinDuration: cfg.MinDuration,
				MaxDuration: cfg.MaxDuration,
			},
		}
	},
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		commands.NewAuthCommands,
		commands.NewBookingCommands,
		commands.NewAdminCommands,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewBookingQueries,
		queries.NewAuditQueries,
	),
)
