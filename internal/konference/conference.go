package konference

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/pkg/audio"
	"github.com/Raikerian/go-konference/pkg/codec"
)

// Conference is a named room of members mixed together every tick.
type Conference struct {
	name    string
	created time.Time
	logger  *zap.Logger

	mu          sync.RWMutex
	head, tail  *Member
	byID        map[int]*Member
	memberCount int
	moderators  int
	lastID      int
	volume      int
	spies       spyTable

	// Mixing state, owned by the mixing goroutine.
	encoders      [audio.FormatCount]codec.Translator
	mixBuf        audio.Buffer
	listenerFrame *mixFrame
	frames        []*mixFrame
	speakers      []*Member
}

func newConference(name string, logger *zap.Logger) *Conference {
	return &Conference{
		name:    name,
		created: time.Now(),
		logger:  logger.With(zap.String("conference", name)),
		byID:    make(map[int]*Member),
		spies:   newSpyTable(),
	}
}

// Name returns the conference name.
func (c *Conference) Name() string { return c.name }

func (c *Conference) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.memberCount
}

// partnerOf returns the spy partner of m. The caller holds c.mu.
func (c *Conference) partnerOf(m *Member) *Member {
	id, ok := c.spies.partner(m.id)
	if !ok {
		return nil
	}
	return c.byID[id]
}

// addMemberLocked links m at the tail and assigns its id. If spyee is not
// nil the pairing is attempted first; the result reports whether it held.
// The caller holds c.mu for writing.
func (c *Conference) addMemberLocked(m *Member, spyee *Member) (spyPaired bool) {
	c.lastID++
	m.id = c.lastID
	m.conf = c

	if spyee != nil && spyee.conf == c && c.byID[spyee.id] == spyee {
		spyPaired = c.spies.pair(m.id, spyee.id)
	}

	if c.tail == nil {
		c.head = m
	} else {
		m.prev = c.tail
		c.tail.next = m
	}
	c.tail = m
	c.byID[m.id] = m

	c.memberCount++
	if m.moderator {
		c.moderators++
	}

	// Hold only moves between members that both carry the hold flag.
	switch {
	case !m.hold:
	case c.memberCount == 1:
		c.startHold(m)
	case c.memberCount == 2 && c.head.hold:
		c.endHold(c.head)
	}

	m.mu.Lock()
	m.readyForOutgoing = !m.onHold && !m.channel.MusicOnHold()
	m.mu.Unlock()

	return spyPaired
}

// removeMemberLocked unlinks m and applies the departure rules: hold for a
// lone remaining member, the moderator kick cascade and spy teardown. The
// caller holds c.mu for writing.
func (c *Conference) removeMemberLocked(m *Member) {
	if m.prev == nil {
		c.head = m.next
	} else {
		m.prev.next = m.next
	}
	if m.next == nil {
		c.tail = m.prev
	} else {
		m.next.prev = m.prev
	}
	m.prev, m.next = nil, nil
	delete(c.byID, m.id)

	c.memberCount--
	if m.moderator {
		c.moderators--
	}

	if m.hold && c.memberCount == 1 && c.head.hold {
		c.startHold(c.head)
	}

	if m.moderator && m.kickConferees && c.moderators == 0 {
		for other := c.head; other != nil; other = other.next {
			other.kick()
		}
		if c.head != nil {
			c.logger.Info("Last moderator left, kicking remaining members",
				zap.Int("member_id", m.id),
				zap.Int("remaining", c.memberCount))
		}
	}

	if partnerID, wasSpyer, ok := c.spies.unpair(m.id); ok && !wasSpyer {
		if spyer := c.byID[partnerID]; spyer != nil {
			spyer.channel.RequestDisconnect()
		}
	}
}

// startHold puts m on music-on-hold and stops its conference audio.
func (c *Conference) startHold(m *Member) {
	m.mu.Lock()
	m.onHold = true
	m.readyForOutgoing = false
	m.outgoing.clear()
	m.mu.Unlock()

	if err := m.channel.StartMusicOnHold(); err != nil {
		c.logger.Warn("Failed to start music on hold",
			zap.String("channel", m.channel.Name()),
			zap.Error(err))
	}
}

// endHold resumes conference audio for a member put on hold by startHold.
func (c *Conference) endHold(m *Member) {
	m.mu.Lock()
	if !m.onHold {
		m.mu.Unlock()
		return
	}
	m.onHold = false
	m.readyForOutgoing = true
	m.mu.Unlock()

	if err := m.channel.StopMusicOnHold(); err != nil {
		c.logger.Warn("Failed to stop music on hold",
			zap.String("channel", m.channel.Name()),
			zap.Error(err))
	}
}

// encoder returns the conference's shared translator from linear to format.
// A nil translator means no conversion is needed.
func (c *Conference) encoder(format audio.Format) (codec.Translator, error) {
	if format == audio.FormatSLinear {
		return nil, nil
	}
	if t := c.encoders[format]; t != nil {
		return t, nil
	}
	t, err := codec.BuildPath(audio.FormatSLinear, format)
	if err != nil {
		return nil, err
	}
	c.encoders[format] = t
	return t, nil
}

// close releases the conference's translators. It runs once the
// conference has been swept from the registry.
func (c *Conference) close() error {
	var errs []error
	for i, t := range c.encoders {
		if t != nil {
			errs = append(errs, t.Close())
			c.encoders[i] = nil
		}
	}
	return errors.Join(errs...)
}

// ConferenceInfo is a point in time view of a conference for listings.
type ConferenceInfo struct {
	Name       string
	Members    int
	Moderators int
	Volume     int
	Spies      int
	Duration   time.Duration
}

func (c *Conference) info(now time.Time) ConferenceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConferenceInfo{
		Name:       c.name,
		Members:    c.memberCount,
		Moderators: c.moderators,
		Volume:     c.volume,
		Spies:      c.spies.len(),
		Duration:   now.Sub(c.created),
	}
}
