package simulate

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/internal/konference"
)

// Module runs the configured simulation alongside the engine when enabled.
var Module = fx.Module("simulate",
	fx.Provide(NewSimulatorFromConfig),
	fx.Invoke(registerLifecycle),
)

// NewSimulatorParams holds dependencies for NewSimulatorFromConfig.
type NewSimulatorParams struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
	Engine *konference.Engine
}

// NewSimulatorFromConfig builds a simulator from the simulation config section.
func NewSimulatorFromConfig(params NewSimulatorParams) (*Simulator, error) {
	return NewSimulator(params.Cfg.Simulation, params.Cfg.Conference.Interval, params.Engine, params.Logger.Named("simulate"))
}

type lifecycleParams struct {
	fx.In
	Cfg       *config.Config
	Logger    *zap.Logger
	Simulator *Simulator
	LC        fx.Lifecycle
}

func registerLifecycle(params lifecycleParams) {
	if !params.Cfg.Simulation.Enabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	params.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if _, err := params.Simulator.Run(ctx); err != nil {
					params.Logger.Error("Simulation failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
