package bootstrap

import (
	"context"

	"vmbook/internal/infra/compute"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/pkg/config"
	"vmbook/internal/workflow"

	"go.uber.org/fx"
)

var ComputeModule = fx.Module("compute",
	fx.Provide(
		fx.Annotate(
			NewComputeBackend,
			fx.As(new(workflow.ComputeBackend)),
		),
	),
)

func NewComputeBackend(lc fx.Lifecycle, cfg config.Config, clk clock.Clock) (*compute.VSphereBackend, error) {
	backend, cleanup, err := compute.NewVSphereBackend(context.Background(), cfg.Compute, clk)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})

	return backend, nil
}
