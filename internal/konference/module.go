package konference

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/internal/events"
	"github.com/Raikerian/go-konference/internal/observe"
	"github.com/Raikerian/go-konference/internal/sounds"
)

var Module = fx.Module("konference",
	fx.Provide(
		NewEngineWithLifecycle,
		func(e *Engine) Admin { return e },
	),
)

// NewEngineParams holds dependencies for NewEngineWithLifecycle.
type NewEngineParams struct {
	fx.In
	Cfg       *config.Config
	Logger    *zap.Logger
	Publisher events.Publisher
	Metrics   *observe.Metrics
	Sounds    *sounds.Library
	LC        fx.Lifecycle
}

// NewEngineWithLifecycle creates the engine and stops it with the app.
func NewEngineWithLifecycle(params NewEngineParams) *Engine {
	e := NewEngine(params.Cfg, params.Logger.Named("konference"), params.Publisher, params.Metrics, params.Sounds)
	params.LC.Append(fx.StopHook(e.Stop))
	return e
}
