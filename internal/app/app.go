// Package app provides the main application structure and lifecycle management.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/internal/konference"
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))

	return &Application{
		app: fx.New(options...),
	}
}

// Err reports a dependency graph error found while building the application.
func (a *Application) Err() error {
	return a.app.Err()
}

// Start runs every OnStart hook.
func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

type lifecycleParams struct {
	fx.In
	LC     fx.Lifecycle
	Cfg    *config.Config
	Admin  konference.Admin
	Logger *zap.Logger
}

// registerLifecycleHooks logs the engine settings on start and the
// conferences still running on shutdown.
func registerLifecycleHooks(params lifecycleParams) {
	conf := params.Cfg.Conference
	params.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			params.Logger.Info("Conference engine started",
				zap.Duration("interval", conf.Interval),
				zap.Int("max_queue", conf.MaxQueue),
				zap.Bool("simulation", params.Cfg.Simulation.Enabled),
				zap.Bool("metrics", params.Cfg.Metrics.Enabled))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			confs := params.Admin.ListConferences()
			members := 0
			for _, c := range confs {
				members += c.Members
			}
			params.Logger.Info("Stopping conference engine",
				zap.Int("conferences", len(confs)),
				zap.Int("members", members))
			return nil
		},
	})
}
