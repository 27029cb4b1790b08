package events

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the process event publisher.
var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// NewPublisher provides the zap-backed publisher as a Publisher.
func NewPublisher(logger *zap.Logger) Publisher {
	return NewZapPublisher(logger)
}
