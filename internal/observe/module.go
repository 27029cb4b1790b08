package observe

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/config"
)

// Module provides the meter provider and engine metrics.
var Module = fx.Module("observe",
	fx.Provide(
		NewProviderWithLifecycle,
		NewMetricsFromProvider,
	),
)

// NewProviderParams holds dependencies for NewProviderWithLifecycle.
type NewProviderParams struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
	LC     fx.Lifecycle
}

// NewProviderWithLifecycle creates the provider and ties its endpoint to
// the Fx lifecycle.
func NewProviderWithLifecycle(params NewProviderParams) (*Provider, error) {
	p, err := NewProvider(params.Cfg.Metrics, params.Logger)
	if err != nil {
		return nil, err
	}

	params.LC.Append(fx.Hook{
		OnStart: p.Start,
		OnStop: func(ctx context.Context) error {
			return p.Shutdown(ctx)
		},
	})

	return p, nil
}

// NewMetricsFromProvider builds the engine instruments from the provider.
func NewMetricsFromProvider(p *Provider) (*Metrics, error) {
	return NewMetrics(p)
}
