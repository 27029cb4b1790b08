// Package observe provides OpenTelemetry metrics for the conference engine.
//
// Instruments are created from an injected [metric.MeterProvider]; tests
// should pass a provider backed by a manual reader.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all engine metrics.
const meterName = "github.com/Raikerian/go-konference"

// Attribute values used with the metric instruments.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"

	StrategySilent = "silent"
	StrategySingle = "single"
	StrategySwap   = "swap"
	StrategyMulti  = "multi"
)

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use.
type Metrics struct {
	// Ticks counts scheduler ticks.
	Ticks metric.Int64Counter

	// TickDuration tracks how long one tick over all conferences takes.
	TickDuration metric.Float64Histogram

	// Mixes counts per-conference mixes. Use with attribute:
	//   attribute.String("strategy", ...)
	Mixes metric.Int64Counter

	// FramesDropped counts frames dropped by member queues. Use with attribute:
	//   attribute.String("direction", ...)
	FramesDropped metric.Int64Counter

	// TranslationFailures counts frames discarded because a codec failed.
	TranslationFailures metric.Int64Counter

	// ActiveConferences tracks conferences in the registry.
	ActiveConferences metric.Int64UpDownCounter

	// ActiveMembers tracks members across all conferences.
	ActiveMembers metric.Int64UpDownCounter
}

// tickBuckets are histogram boundaries in seconds sized around the 20 ms
// tick budget.
var tickBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Ticks, err = m.Int64Counter("konference.mixer.ticks",
		metric.WithDescription("Total mixing scheduler ticks."),
	); err != nil {
		return nil, err
	}
	if met.TickDuration, err = m.Float64Histogram("konference.mixer.tick.duration",
		metric.WithDescription("Time spent mixing all conferences in one tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Mixes, err = m.Int64Counter("konference.mixer.mixes",
		metric.WithDescription("Per-conference mixes by strategy."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("konference.member.frames_dropped",
		metric.WithDescription("Frames dropped by member queues by direction."),
	); err != nil {
		return nil, err
	}
	if met.TranslationFailures, err = m.Int64Counter("konference.codec.failures",
		metric.WithDescription("Frames discarded after a translation failure."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConferences, err = m.Int64UpDownCounter("konference.conferences.active",
		metric.WithDescription("Number of conferences in the registry."),
	); err != nil {
		return nil, err
	}
	if met.ActiveMembers, err = m.Int64UpDownCounter("konference.members.active",
		metric.WithDescription("Number of members across all conferences."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordMix counts one mix with the given strategy.
func (m *Metrics) RecordMix(ctx context.Context, strategy string) {
	m.Mixes.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordDrops counts n dropped frames in the given direction.
func (m *Metrics) RecordDrops(ctx context.Context, direction string, n int) {
	if n <= 0 {
		return
	}
	m.FramesDropped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("direction", direction)))
}
