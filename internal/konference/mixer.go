package konference

import "github.com/Raikerian/go-konference/internal/observe"

// mix runs the strategy for this tick's speakers and reports its name.
// Speaker frames are already linear with talk volume applied. The caller
// holds c.mu for reading.
func (c *Conference) mix(speakers []*Member, listeners int) string {
	switch {
	case len(speakers) == 0:
		return observe.StrategySilent
	case len(speakers) == 1:
		c.mixSingle(speakers[0])
		return observe.StrategySingle
	case len(speakers) == 2 && listeners == 0:
		c.mixSwap(speakers[0], speakers[1])
		return observe.StrategySwap
	default:
		c.mixMulti(speakers, listeners)
		return observe.StrategyMulti
	}
}

// mixSingle passes the lone speaker through to everyone else. A spyer's
// voice reaches only its spyee; a spyee's voice is also copied to its
// spyer when others can hear the room.
func (c *Conference) mixSingle(s *Member) {
	mf := s.inFrame
	partner := c.partnerOf(s)
	if partner == nil {
		c.listenerFrame = mf
		return
	}

	if !c.spies.isSpyer(s.id) && c.memberCount > 2 {
		partner.speakerFrame = c.newMixFrame(mf.frame, partner)
		c.listenerFrame = mf
		return
	}

	mf.member = partner
	partner.speakerFrame = mf
}

// mixSwap hands each of two speakers the other's frame.
func (c *Conference) mixSwap(a, b *Member) {
	fa, fb := a.inFrame, b.inFrame
	fa.member, fb.member = b, a
	b.speakerFrame = fa
	a.speakerFrame = fb
}

// mixMulti sums every non-spyer into the room and gives each speaker the
// room without its own voice. Spyers whisper to their spyee only.
func (c *Conference) mixMulti(speakers []*Member, listeners int) {
	c.mixBuf.Clear()
	for _, s := range speakers {
		if c.spies.isSpyer(s.id) {
			if spyee := c.partnerOf(s); spyee != nil {
				spyee.whisperFrame = s.inFrame
			}
			continue
		}
		c.mixBuf.MixFrame(s.inFrame.frame)
	}

	for _, s := range speakers {
		if !c.spies.isSpyer(s.id) {
			buf := c.mixBuf
			buf.UnmixFrame(s.inFrame.frame)
			if s.whisperFrame != nil {
				buf.MixFrame(s.whisperFrame.frame)
			}
			s.speakerFrame = c.newMixFrame(buf.Frame(), s)
			continue
		}

		if spyee := c.partnerOf(s); spyee != nil && spyee.inFrame == nil {
			buf := c.mixBuf
			buf.MixFrame(s.inFrame.frame)
			spyee.speakerFrame = c.newMixFrame(buf.Frame(), spyee)
		}
	}

	if listeners > 0 {
		c.listenerFrame = c.newMixFrame(c.mixBuf.Frame(), nil)
	}

	// A spyer hears its spyee's own voice, unmixed.
	for _, s := range speakers {
		if c.spies.isSpyer(s.id) {
			continue
		}
		if spyer := c.partnerOf(s); spyer != nil {
			s.inFrame.member = spyer
			spyer.speakerFrame = s.inFrame
		}
	}
}

