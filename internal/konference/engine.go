// Package konference implements the conference mixing engine: members join
// named conferences from their own goroutines and a single scheduler mixes
// every conference on a fixed 20 ms tick.
package konference

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/internal/events"
	"github.com/Raikerian/go-konference/internal/host"
	"github.com/Raikerian/go-konference/internal/observe"
	"github.com/Raikerian/go-konference/internal/sounds"
	"github.com/Raikerian/go-konference/internal/vad"
	"github.com/Raikerian/go-konference/pkg/audio"
	"github.com/Raikerian/go-konference/pkg/codec"
)

// Outcome says how a member left its conference.
type Outcome int

const (
	// OutcomeCompleted means the call hung up or the context ended.
	OutcomeCompleted Outcome = iota
	// OutcomeKicked means the member was removed by a kick.
	OutcomeKicked
	// OutcomeMaxUsers means the conference was full and the join refused.
	OutcomeMaxUsers
	// OutcomeSpyFailed means the spy target was unavailable and the engine
	// is configured to disconnect such members.
	OutcomeSpyFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeKicked:
		return "kicked"
	case OutcomeMaxUsers:
		return "max_users"
	case OutcomeSpyFailed:
		return "spy_failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result describes a finished Join.
type Result struct {
	Outcome    Outcome
	Conference string
	MemberID   int
	// SpyFailed is set when a requested spy pairing could not be made.
	SpyFailed bool
	Duration  time.Duration
}

// Engine owns the conference registry and the mixing scheduler.
type Engine struct {
	logger    *zap.Logger
	cfg       config.ConferenceConfig
	vadCfg    vad.Config
	limits    queueLimits
	publisher events.Publisher
	metrics   *observe.Metrics
	sounds    *sounds.Library

	registry *Registry
	sched    *scheduler
	silence  silenceCache
	stopped  atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithoutScheduler leaves ticking to the caller through Tick.
func WithoutScheduler() Option {
	return func(e *Engine) { e.sched = nil }
}

// NewEngine creates an engine. metrics and library may be nil.
func NewEngine(cfg *config.Config, logger *zap.Logger, publisher events.Publisher, metrics *observe.Metrics, library *sounds.Library, opts ...Option) *Engine {
	if metrics == nil {
		metrics, _ = observe.NewMetrics(noop.NewMeterProvider())
	}

	e := &Engine{
		logger: logger,
		cfg:    cfg.Conference,
		vadCfg: vad.Config{
			Mode:         cfg.VAD.Mode,
			IgnoreFrames: cfg.VAD.IgnoreFrames,
		},
		limits:    newQueueLimits(cfg.Conference),
		publisher: publisher,
		metrics:   metrics,
		sounds:    library,
	}
	e.sched = newScheduler(logger.Named("scheduler"), cfg.Conference.Interval, cfg.Conference.FrameRateCheckTicks, e.tick)
	for _, opt := range opts {
		opt(e)
	}

	var onFirst func()
	if e.sched != nil {
		onFirst = e.sched.startLocked
	}
	e.registry = newRegistry(logger, cfg.Conference.ConferenceTableSize, cfg.Conference.ChannelTableSize, onFirst)
	return e
}

// Tick mixes every conference once with the given delivery time. It is
// meant for engines built WithoutScheduler.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.tick(ctx, now)
}

// Stop halts the scheduler and asks every member to leave. Join returns
// ErrEngineStopped afterwards.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stopped.Swap(true) {
		return nil
	}

	e.KickAll()

	if e.sched == nil {
		return nil
	}
	e.registry.listMu.Lock()
	e.sched.cancel()
	e.registry.listMu.Unlock()
	return e.sched.stop(ctx)
}

// Join answers ch, adds it to the conference named in args and runs the
// member until the call ends, the member is kicked or ctx is done.
//
// A full conference or a failed spy pairing are reported through Result
// and the KONFERENCE channel variable rather than as errors.
func (e *Engine) Join(ctx context.Context, ch host.Channel, args string) (Result, error) {
	if e.stopped.Load() {
		return Result{}, ErrEngineStopped
	}

	opts, err := ParseJoinArgs(args, e.cfg)
	if err != nil {
		return Result{}, err
	}
	for _, arg := range opts.Ignored {
		e.logger.Warn("Ignoring join argument",
			zap.String("channel", ch.Name()),
			zap.String("argument", arg))
	}

	if err := ch.Answer(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to answer %s: %w", ch.Name(), err)
	}

	m, err := newMember(ch, opts, e.limits, e.logger.With(zap.String("channel", ch.Name())))
	if err != nil {
		return Result{}, fmt.Errorf("failed to set up member %s: %w", ch.Name(), err)
	}
	defer func() {
		if err := m.closeTranslators(); err != nil {
			m.logger.Warn("Failed to release member translators", zap.Error(err))
		}
	}()
	if opts.ViaTelephone {
		if m.vad, err = vad.NewSession(e.vadCfg); err != nil {
			return Result{}, fmt.Errorf("failed to set up member %s: %w", ch.Name(), err)
		}
	}

	conf, created, spyPaired, err := e.registry.join(m, opts.Conference)
	if created {
		e.metrics.ActiveConferences.Add(ctx, 1)
	}
	if errors.Is(err, ErrMaxUsers) {
		ch.SetVariable(VariableName, VariableMaxUsers)
		e.logger.Info("Conference full, join refused",
			zap.String("conference", opts.Conference),
			zap.String("channel", ch.Name()),
			zap.Int("max_users", opts.MaxUsers))
		return Result{Outcome: OutcomeMaxUsers, Conference: opts.Conference}, nil
	}
	if err != nil {
		return Result{}, err
	}

	e.metrics.ActiveMembers.Add(ctx, 1)
	e.publishJoin(conf, m)
	m.logger.Info("Member joined conference",
		zap.String("conference", conf.name),
		zap.Int("member_id", m.id),
		zap.String("flags", m.flags))

	result := Result{Outcome: OutcomeCompleted, Conference: conf.name, MemberID: m.id}
	if !spyPaired {
		result.SpyFailed = true
		ch.SetVariable(VariableName, VariableSpyFailed)
		m.logger.Info("Spy target unavailable",
			zap.String("conference", conf.name),
			zap.String("target", m.spyTarget))
		if e.cfg.DisconnectOnSpyFailure {
			result.Outcome = OutcomeSpyFailed
			e.leave(ctx, m)
			return result, nil
		}
	}

	e.run(ctx, m)
	e.leave(ctx, m)

	result.Duration = time.Since(m.joined)
	if m.isKicked() {
		result.Outcome = OutcomeKicked
		ch.SetVariable(VariableName, VariableKicked)
	}
	return result, nil
}

// leave unlinks m and waits until no lookup holds it.
func (e *Engine) leave(ctx context.Context, m *Member) {
	conf := m.conf
	e.registry.leave(m)
	m.guard.waitReleased()

	e.metrics.ActiveMembers.Add(ctx, -1)
	e.publishLeave(conf, m)
	m.logger.Info("Member left conference",
		zap.String("conference", conf.name),
		zap.Int("member_id", m.id),
		zap.Duration("duration", time.Since(m.joined)))
}

// run is the member I/O loop. It is the only goroutine that reads from or
// writes to the member's channel.
func (e *Engine) run(ctx context.Context, m *Member) {
	for {
		if ctx.Err() != nil || m.isKicked() || m.channel.DisconnectRequested() {
			return
		}

		f, err := m.channel.ReadFrame(ctx, e.cfg.WaitForLatency)
		switch {
		case err == nil:
			if e.processIncoming(ctx, m, f) {
				return
			}
		case errors.Is(err, host.ErrTimeout):
		default:
			m.logger.Debug("Member channel closed", zap.Error(err))
			return
		}

		if !e.processOutgoing(m) {
			return
		}
	}
}

// processIncoming handles one frame from the channel and reports whether
// the far end hung up.
func (e *Engine) processIncoming(ctx context.Context, m *Member, f *audio.Frame) bool {
	switch f.Kind {
	case audio.KindVoice:
		e.queueVoice(ctx, m, f)
	case audio.KindDTMF:
		if m.dtmfRelay {
			e.publishDTMF(m, f.Digit)
		}
	case audio.KindControl:
		return f.IsHangup()
	}
	return false
}

// queueVoice decodes a voice frame and queues it for mixing unless the
// member is muted, alone, or silent according to its detector.
func (e *Engine) queueVoice(ctx context.Context, m *Member, f *audio.Frame) {
	m.mu.Lock()
	discard := m.muteAudio || m.muted
	m.mu.Unlock()
	if discard || m.conf.count() == 1 {
		return
	}

	lin, err := codec.Translate(m.toSLinear, f)
	if err != nil {
		e.metrics.TranslationFailures.Add(ctx, 1)
		m.logger.Warn("Failed to translate incoming frame",
			zap.Stringer("format", f.Format),
			zap.Error(err))
		return
	}

	if m.vad != nil {
		queue, transition := m.vad.Process(lin.Data)
		switch transition {
		case vad.StartedSpeaking:
			e.publishState(m, "speaking")
		case vad.StoppedSpeaking:
			e.publishState(m, "silent")
		}
		if !queue {
			return
		}
	}

	m.mu.Lock()
	queued := m.enqueueIncomingLocked(lin, time.Now())
	drops := m.sequentialDrops
	m.mu.Unlock()

	if !queued {
		e.metrics.RecordDrops(ctx, observe.DirectionIncoming, 1)
		m.logger.Debug("Incoming frame dropped", zap.Int("sequential_drops", drops))
	}
}

// processOutgoing writes every queued conference frame, replacing each
// with the next sound frame while sounds are queued. It reports false once
// the channel refuses writes.
func (e *Engine) processOutgoing(m *Member) bool {
	for {
		f := m.dequeueOutgoing()
		if f == nil {
			return true
		}

		if sf := e.nextSoundFrame(m); sf != nil {
			sf.Delivery = f.Delivery
			f = sf
		}

		if err := m.channel.WriteFrame(f); err != nil {
			m.logger.Debug("Failed to write frame", zap.Error(err))
			return false
		}
	}
}

// nextSoundFrame returns the next frame of the member's sound queue in its
// write format, advancing past finished clips.
func (e *Engine) nextSoundFrame(m *Member) *audio.Frame {
	for {
		m.mu.Lock()
		if len(m.soundQueue) == 0 {
			m.mu.Unlock()
			return nil
		}
		current := m.soundQueue[0]
		m.mu.Unlock()

		if f, ok := current.player.Next(); ok {
			out, err := codec.Translate(m.soundOut, f)
			if err != nil {
				m.logger.Warn("Failed to translate sound frame",
					zap.String("sound", current.name),
					zap.Error(err))
				return nil
			}
			return out
		}

		m.mu.Lock()
		finished := len(m.soundQueue) > 0 && m.soundQueue[0] == current
		if finished {
			m.soundQueue[0] = nil
			m.soundQueue = m.soundQueue[1:]
			if len(m.soundQueue) == 0 {
				m.muted = false
			}
		}
		m.mu.Unlock()

		if finished {
			e.publisher.Publish(events.ConferenceSoundComplete, events.Fields{
				"Channel": m.channel.Name(),
				"Sound":   current.name,
			})
		}
	}
}

func (e *Engine) publishJoin(c *Conference, m *Member) {
	c.mu.RLock()
	moderators, count := c.moderators, c.memberCount
	c.mu.RUnlock()

	number, name := m.channel.CallerID()
	e.publisher.Publish(events.ConferenceJoin, events.Fields{
		"ConferenceName": c.name,
		"Type":           m.kind,
		"UniqueID":       m.channel.UniqueID(),
		"Member":         events.Int(m.id),
		"Flags":          m.flags,
		"Channel":        m.channel.Name(),
		"CallerID":       number,
		"CallerIDName":   name,
		"Moderators":     events.Int(moderators),
		"Count":          events.Int(count),
	})
}

func (e *Engine) publishLeave(c *Conference, m *Member) {
	c.mu.RLock()
	moderators, count := c.moderators, c.memberCount
	c.mu.RUnlock()

	number, name := m.channel.CallerID()
	e.publisher.Publish(events.ConferenceLeave, events.Fields{
		"ConferenceName": c.name,
		"Type":           m.kind,
		"UniqueID":       m.channel.UniqueID(),
		"Member":         events.Int(m.id),
		"Flags":          m.flags,
		"Channel":        m.channel.Name(),
		"CallerID":       number,
		"CallerIDName":   name,
		"Duration":       events.Int(int(time.Since(m.joined).Seconds())),
		"Moderators":     events.Int(moderators),
		"Count":          events.Int(count),
	})
}

func (e *Engine) publishDTMF(m *Member, digit rune) {
	m.mu.Lock()
	mute := m.muteAudio
	m.mu.Unlock()

	number, name := m.channel.CallerID()
	e.publisher.Publish(events.ConferenceDTMF, events.Fields{
		"ConferenceName": m.conf.name,
		"Type":           m.kind,
		"UniqueID":       m.channel.UniqueID(),
		"Channel":        m.channel.Name(),
		"CallerID":       number,
		"CallerIDName":   name,
		"Key":            string(digit),
		"Count":          events.Int(m.conf.count()),
		"Flags":          m.flags,
		"Mute":           events.Bool(mute),
	})
}

func (e *Engine) publishState(m *Member, state string) {
	e.publisher.Publish(events.ConferenceState, events.Fields{
		"Channel": m.channel.Name(),
		"State":   state,
	})
}
