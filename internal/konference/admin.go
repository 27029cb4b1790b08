package konference

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/events"
	"github.com/Raikerian/go-konference/internal/sounds"
)

// Admin is the management surface over running conferences. Conferences
// are addressed by name, members by conference and id or by channel name.
type Admin interface {
	ListConferences() []ConferenceInfo
	ListMembers(conference string) ([]MemberInfo, error)
	ListAll() []MemberInfo
	Count(conference string) int

	EndConference(conference string) error
	KickMember(conference string, id int) error
	KickChannel(channel string) error
	KickAll()

	MuteMember(conference string, id int) error
	UnmuteMember(conference string, id int) error
	MuteChannel(channel string) error
	UnmuteChannel(channel string) error
	MuteConference(conference string) error
	UnmuteConference(conference string) error

	TalkVolume(channel string, up bool) error
	ListenVolume(channel string, up bool) error
	ConferenceVolume(conference string, up bool) error

	StartMOH(channel string) error
	StopMOH(channel string) error
	PlaySound(channel string, files []string, mute, tone bool) error
	StopSounds(channel string) error
}

var _ Admin = (*Engine)(nil)

// withConference runs fn on the named conference while holding listMu and
// the conference lock. write selects the write lock.
func (e *Engine) withConference(name string, write bool, fn func(c *Conference)) error {
	r := e.registry
	r.listMu.Lock()
	defer r.listMu.Unlock()

	c, ok := r.findConferenceLocked(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrConferenceNotFound, name)
	}

	if write {
		c.mu.Lock()
		defer c.mu.Unlock()
	} else {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	fn(c)
	return nil
}

// withMemberID runs fn on member id of the named conference.
func (e *Engine) withMemberID(conference string, id int, fn func(c *Conference, m *Member)) error {
	var found bool
	err := e.withConference(conference, false, func(c *Conference) {
		var m *Member
		if m, found = c.byID[id]; found {
			fn(c, m)
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s/%d", ErrMemberNotFound, conference, id)
	}
	return nil
}

// withChannel runs fn on the member joined from channel, holding a use
// reference for the duration.
func (e *Engine) withChannel(channel string, fn func(m *Member) error) error {
	m, ok := e.registry.findMember(channel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, channel)
	}
	defer m.guard.release()
	return fn(m)
}

func (e *Engine) ListConferences() []ConferenceInfo {
	r := e.registry
	r.listMu.Lock()
	defer r.listMu.Unlock()

	now := time.Now()
	out := make([]ConferenceInfo, 0, len(r.conferences))
	for _, c := range r.conferences {
		out = append(out, c.info(now))
	}
	return out
}

func (e *Engine) ListMembers(conference string) ([]MemberInfo, error) {
	var out []MemberInfo
	err := e.withConference(conference, false, func(c *Conference) {
		out = c.memberInfos(time.Now())
	})
	return out, err
}

func (e *Engine) ListAll() []MemberInfo {
	r := e.registry
	r.listMu.Lock()
	defer r.listMu.Unlock()

	now := time.Now()
	var out []MemberInfo
	for _, c := range r.conferences {
		c.mu.RLock()
		out = append(out, c.memberInfos(now)...)
		c.mu.RUnlock()
	}
	return out
}

// memberInfos lists members in join order. The caller holds c.mu.
func (c *Conference) memberInfos(now time.Time) []MemberInfo {
	out := make([]MemberInfo, 0, c.memberCount)
	for m := c.head; m != nil; m = m.next {
		out = append(out, m.info(now))
	}
	return out
}

// Count returns the number of members in a conference, or zero if it does
// not exist.
func (e *Engine) Count(conference string) int {
	n := 0
	_ = e.withConference(conference, false, func(c *Conference) {
		n = c.memberCount
	})
	return n
}

// EndConference hangs up every member of the conference.
func (e *Engine) EndConference(conference string) error {
	return e.withConference(conference, false, func(c *Conference) {
		for m := c.head; m != nil; m = m.next {
			m.channel.RequestDisconnect()
		}
		c.logger.Info("Conference ended", zap.Int("members", c.memberCount))
	})
}

func (e *Engine) KickMember(conference string, id int) error {
	return e.withMemberID(conference, id, func(_ *Conference, m *Member) {
		m.kick()
	})
}

func (e *Engine) KickChannel(channel string) error {
	return e.withChannel(channel, func(m *Member) error {
		m.kick()
		return nil
	})
}

// KickAll kicks every member of every conference.
func (e *Engine) KickAll() {
	r := e.registry
	r.listMu.Lock()
	defer r.listMu.Unlock()

	for _, c := range r.conferences {
		c.mu.RLock()
		for m := c.head; m != nil; m = m.next {
			m.kick()
		}
		c.mu.RUnlock()
	}
}

func (e *Engine) MuteMember(conference string, id int) error {
	return e.withMemberID(conference, id, func(_ *Conference, m *Member) {
		e.setMute(m, true)
	})
}

func (e *Engine) UnmuteMember(conference string, id int) error {
	return e.withMemberID(conference, id, func(_ *Conference, m *Member) {
		e.setMute(m, false)
	})
}

func (e *Engine) MuteChannel(channel string) error {
	return e.withChannel(channel, func(m *Member) error {
		e.setMute(m, true)
		return nil
	})
}

func (e *Engine) UnmuteChannel(channel string) error {
	return e.withChannel(channel, func(m *Member) error {
		e.setMute(m, false)
		return nil
	})
}

func (e *Engine) setMute(m *Member, mute bool) {
	m.mu.Lock()
	m.muteAudio = mute
	m.mu.Unlock()

	name := events.ConferenceMemberUnmute
	if mute {
		name = events.ConferenceMemberMute
	}
	e.publisher.Publish(name, events.Fields{"Channel": m.channel.Name()})
}

// MuteConference mutes every member except moderators.
func (e *Engine) MuteConference(conference string) error {
	return e.setConferenceMute(conference, true)
}

// UnmuteConference unmutes every member except moderators.
func (e *Engine) UnmuteConference(conference string) error {
	return e.setConferenceMute(conference, false)
}

func (e *Engine) setConferenceMute(conference string, mute bool) error {
	err := e.withConference(conference, false, func(c *Conference) {
		for m := c.head; m != nil; m = m.next {
			if m.moderator {
				continue
			}
			m.mu.Lock()
			m.muteAudio = mute
			m.mu.Unlock()
		}
	})
	if err != nil {
		return err
	}

	name := events.ConferenceUnmute
	if mute {
		name = events.ConferenceMute
	}
	e.publisher.Publish(name, events.Fields{"ConferenceName": conference})
	return nil
}

// TalkVolume raises or lowers by one step the volume others hear from a
// member.
func (e *Engine) TalkVolume(channel string, up bool) error {
	return e.withChannel(channel, func(m *Member) error {
		m.mu.Lock()
		m.talkVolume += step(up)
		m.mu.Unlock()
		return nil
	})
}

// ListenVolume raises or lowers by one step the volume a member hears.
func (e *Engine) ListenVolume(channel string, up bool) error {
	return e.withChannel(channel, func(m *Member) error {
		m.mu.Lock()
		m.listenVolume += step(up)
		m.mu.Unlock()
		return nil
	})
}

// ConferenceVolume raises or lowers by one step the volume of every
// speaker in a conference.
func (e *Engine) ConferenceVolume(conference string, up bool) error {
	return e.withConference(conference, true, func(c *Conference) {
		c.volume += step(up)
	})
}

func step(up bool) int {
	if up {
		return 1
	}
	return -1
}

// StartMOH stops any sounds and switches the member to music-on-hold.
func (e *Engine) StartMOH(channel string) error {
	return e.withChannel(channel, func(m *Member) error {
		m.mu.Lock()
		m.soundQueue = nil
		m.muted = true
		m.readyForOutgoing = false
		m.outgoing.clear()
		m.mu.Unlock()
		return m.channel.StartMusicOnHold()
	})
}

// StopMOH returns the member from music-on-hold to the conference.
func (e *Engine) StopMOH(channel string) error {
	return e.withChannel(channel, func(m *Member) error {
		if err := m.channel.StopMusicOnHold(); err != nil {
			return err
		}
		m.mu.Lock()
		m.muted = false
		m.readyForOutgoing = true
		m.mu.Unlock()
		return nil
	})
}

// PlaySound queues clips for a member. With mute set the member's voice is
// discarded until the queue drains. A tone is only queued when nothing
// else is playing.
func (e *Engine) PlaySound(channel string, files []string, mute, tone bool) error {
	if e.sounds == nil {
		return fmt.Errorf("%w: no sound library", sounds.ErrSoundNotFound)
	}

	queued := make([]*queuedSound, 0, len(files))
	for _, name := range files {
		p, err := e.sounds.Open(name)
		if err != nil {
			return err
		}
		queued = append(queued, &queuedSound{name: name, player: p})
	}

	return e.withChannel(channel, func(m *Member) error {
		if m.noRecv || m.channel.MusicOnHold() {
			return ErrSoundRejected
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if tone && len(m.soundQueue) > 0 {
			return ErrSoundRejected
		}
		m.soundQueue = append(m.soundQueue, queued...)
		if mute {
			m.muted = true
		}
		return nil
	})
}

// StopSounds drops the member's sound queue.
func (e *Engine) StopSounds(channel string) error {
	return e.withChannel(channel, func(m *Member) error {
		m.mu.Lock()
		m.soundQueue = nil
		m.muted = false
		m.mu.Unlock()
		return nil
	})
}
