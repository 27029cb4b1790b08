package konference

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/observe"
	"github.com/Raikerian/go-konference/pkg/audio"
	"github.com/Raikerian/go-konference/pkg/codec"
)

// tick mixes every conference once and sweeps empty ones. It reports true
// when no conference is left and the scheduler should stop.
func (e *Engine) tick(ctx context.Context, now time.Time) bool {
	start := time.Now()
	r := e.registry

	locked := r.listMu.TryLock()
	if locked {
		r.snapshot = append(r.snapshot[:0], r.conferences...)
	} else {
		e.logger.Debug("Conference list busy, mixing previous snapshot")
	}

	for _, c := range r.snapshot {
		e.mixConference(ctx, c, now)
	}

	stop := false
	if locked {
		for _, c := range r.sweepLocked() {
			if err := c.close(); err != nil {
				c.logger.Warn("Failed to release conference translators", zap.Error(err))
			}
			e.metrics.ActiveConferences.Add(ctx, -1)
			c.logger.Info("Conference removed", zap.Duration("duration", now.Sub(c.created)))
		}
		r.snapshot = append(r.snapshot[:0], r.conferences...)
		if r.emptyLocked() && e.sched != nil {
			e.sched.running = false
			stop = true
		}
		r.listMu.Unlock()
	}

	e.metrics.Ticks.Add(ctx, 1)
	e.metrics.TickDuration.Record(ctx, time.Since(start).Seconds())
	return stop
}

// mixConference runs Harvest, Mix, Distribute and Cleanup for one
// conference. Each phase finishes for every member before the next starts.
func (e *Engine) mixConference(ctx context.Context, c *Conference, delivery time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.memberCount == 0 {
		return
	}

	speakers, listeners := c.harvest()
	strategy := c.mix(speakers, listeners)
	dropped, failed := e.distribute(c, delivery)
	c.cleanup()

	e.metrics.RecordMix(ctx, strategy)
	e.metrics.RecordDrops(ctx, observe.DirectionOutgoing, dropped)
	if failed > 0 {
		e.metrics.TranslationFailures.Add(ctx, int64(failed))
	}
}

// harvest pops at most one frame per member. Members without a frame are
// listeners for this tick.
func (c *Conference) harvest() ([]*Member, int) {
	speakers := c.speakers[:0]
	listeners := 0

	for m := c.head; m != nil; m = m.next {
		m.mu.Lock()
		f := m.dequeueIncomingLocked()
		if speaking := f != nil; speaking != m.speaking {
			m.speaking = speaking
		}
		volume := m.talkVolume + c.volume
		m.mu.Unlock()

		if f == nil {
			listeners++
			continue
		}
		if volume != 0 {
			f = f.Clone()
			audio.AdjustVolume(f, volume)
		}
		m.inFrame = c.newMixFrame(f, m)
		speakers = append(speakers, m)
	}

	c.speakers = speakers
	return speakers, listeners
}

// distribute queues one outgoing frame to every ready member that
// receives audio, falling back to silence.
func (e *Engine) distribute(c *Conference, delivery time.Time) (dropped, failed int) {
	for m := c.head; m != nil; m = m.next {
		m.mu.Lock()
		if !m.readyForOutgoing || m.noRecv {
			m.mu.Unlock()
			continue
		}

		out, err := c.outgoingFrame(m)
		if err != nil {
			failed++
			c.logger.Warn("Failed to translate outgoing frame",
				zap.String("channel", m.channel.Name()),
				zap.Stringer("format", m.writeFormat),
				zap.Error(err))
		}
		if out == nil {
			if out, err = e.silence.frame(m.writeFormat); err != nil {
				m.mu.Unlock()
				failed++
				c.logger.Warn("Failed to build silent frame",
					zap.Stringer("format", m.writeFormat),
					zap.Error(err))
				continue
			}
		}

		if !m.enqueueOutgoingLocked(out, delivery) {
			dropped++
		}
		m.mu.Unlock()
	}
	return dropped, failed
}

// selectFrame picks the mix frame m should hear this tick. A nil frame
// means silence. speaker reports whether the frame is personal to m.
// A listening spyer hears only its spyee's isolated voice, never the
// conference mix.
func (c *Conference) selectFrame(m *Member) (mf *mixFrame, speaker bool) {
	partner := c.partnerOf(m)
	switch {
	case partner == nil:
		if m.inFrame != nil {
			return m.speakerFrame, true
		}
		return c.listenerFrame, false
	case c.spies.isSpyer(m.id):
		if m.speakerFrame != nil {
			return m.speakerFrame, true
		}
		return c.listenerFrame, false
	default:
		if m.inFrame != nil || partner.inFrame != nil {
			return m.speakerFrame, true
		}
		return c.listenerFrame, false
	}
}

// outgoingFrame encodes the selected frame in m's write format. Results
// are cached on the mix frame unless m has a listen volume.
func (c *Conference) outgoingFrame(m *Member) (*audio.Frame, error) {
	mf, speaker := c.selectFrame(m)
	if mf == nil {
		return nil, nil
	}

	format := m.writeFormat
	volume := m.listenVolume
	if volume == 0 {
		if f := mf.converted[format]; f != nil {
			return f, nil
		}
	}

	src := mf.frame
	if volume != 0 {
		src = src.Clone()
		audio.AdjustVolume(src, volume)
	}

	t := m.fromSLinear
	if !speaker {
		var err error
		if t, err = c.encoder(format); err != nil {
			return nil, err
		}
	}
	out, err := codec.Translate(t, src)
	if err != nil {
		return nil, err
	}

	if volume == 0 {
		mf.converted[format] = out
	}
	return out, nil
}

// cleanup releases this tick's frames so nothing leaks into the next one.
func (c *Conference) cleanup() {
	for m := c.head; m != nil; m = m.next {
		m.inFrame = nil
		m.speakerFrame = nil
		m.whisperFrame = nil
	}
	c.listenerFrame = nil
	clear(c.speakers)
	c.speakers = c.speakers[:0]
	c.releaseFrames()
}
