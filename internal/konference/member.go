package konference

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/host"
	"github.com/Raikerian/go-konference/internal/sounds"
	"github.com/Raikerian/go-konference/internal/vad"
	"github.com/Raikerian/go-konference/pkg/audio"
	"github.com/Raikerian/go-konference/pkg/codec"
)

// Member is one call leg taking part in a conference.
type Member struct {
	channel host.Channel
	logger  *zap.Logger
	limits  queueLimits
	guard   *guard

	// Set at creation and never changed.
	kind          string
	flags         string
	spyTarget     string
	maxUsers      int
	noRecv        bool
	viaTelephone  bool
	dtmfRelay     bool
	moderator     bool
	kickConferees bool
	hold          bool
	readFormat    audio.Format
	writeFormat   audio.Format
	joined        time.Time

	// Set under conf.mu when linked.
	conf       *Conference
	id         int
	prev, next *Member

	// toSLinear and vad belong to the member goroutine. fromSLinear belongs
	// to the mixing goroutine while the member is linked.
	toSLinear   codec.Translator
	fromSLinear codec.Translator
	soundOut    codec.Translator
	vad         *vad.Session

	mu               sync.Mutex
	muteAudio        bool
	muted            bool
	onHold           bool
	kicked           bool
	readyForOutgoing bool
	speaking         bool
	talkVolume       int
	listenVolume     int
	incoming         frameQueue
	outgoing         frameQueue
	lastIncoming     *audio.Frame
	repeats          int
	lastDrop         time.Time
	framesIn         int
	framesOut        int
	framesInDropped  int
	framesOutDropped int
	sequentialDrops  int
	soundQueue       []*queuedSound

	// Mixing scratch, touched only by the mixing goroutine.
	inFrame      *mixFrame
	speakerFrame *mixFrame
	whisperFrame *mixFrame
}

type queuedSound struct {
	name   string
	player *sounds.Player
}

func newMember(ch host.Channel, opts JoinOptions, limits queueLimits, logger *zap.Logger) (*Member, error) {
	m := &Member{
		channel:       ch,
		logger:        logger,
		limits:        limits,
		guard:         newGuard(),
		kind:          opts.Type,
		flags:         opts.Flags,
		spyTarget:     opts.Spy,
		maxUsers:      opts.MaxUsers,
		noRecv:        opts.NoRecv,
		viaTelephone:  opts.ViaTelephone,
		dtmfRelay:     opts.DTMFRelay,
		moderator:     opts.Moderator,
		kickConferees: opts.KickConferees,
		hold:          opts.Hold,
		readFormat:    ch.ReadFormat(),
		writeFormat:   ch.WriteFormat(),
		joined:        time.Now(),
		muteAudio:     opts.Mute,
		incoming:      newFrameQueue(limits.maxQueue),
		outgoing:      newFrameQueue(limits.maxQueue),
	}

	var err error
	if m.toSLinear, err = codec.BuildPath(m.readFormat, audio.FormatSLinear); err != nil {
		return nil, err
	}
	if m.fromSLinear, err = codec.BuildPath(audio.FormatSLinear, m.writeFormat); err != nil {
		_ = m.closeTranslators()
		return nil, err
	}
	if m.soundOut, err = codec.BuildPath(audio.FormatSLinear, m.writeFormat); err != nil {
		_ = m.closeTranslators()
		return nil, err
	}
	return m, nil
}

func (m *Member) closeTranslators() error {
	var errs []error
	for _, t := range []codec.Translator{m.toSLinear, m.fromSLinear, m.soundOut} {
		if t != nil {
			errs = append(errs, t.Close())
		}
	}
	return errors.Join(errs...)
}

// ID returns the member's sequential id within its conference.
func (m *Member) ID() int { return m.id }

// Channel returns the host channel of the member.
func (m *Member) Channel() host.Channel { return m.channel }

func (m *Member) isKicked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kicked
}

// kick marks the member for removal and asks the host to hang up.
func (m *Member) kick() {
	m.mu.Lock()
	m.kicked = true
	m.mu.Unlock()
	m.channel.RequestDisconnect()
}

// MemberInfo is a point in time view of a member for listings.
type MemberInfo struct {
	ID           int
	Conference   string
	Channel      string
	UniqueID     string
	CallerID     string
	CallerIDName string
	Type         string
	Flags        string
	Muted        bool
	Speaking     bool
	Moderator    bool
	TalkVolume   int
	ListenVolume int
	Duration     time.Duration
	// SpyPartner is the partner's member id, or zero when unpaired.
	SpyPartner int
	Spyer      bool
	FramesIn   int
	FramesOut  int
	DroppedIn  int
	DroppedOut int
}

// info snapshots the member. The caller holds conf.mu.
func (m *Member) info(now time.Time) MemberInfo {
	number, name := m.channel.CallerID()
	mi := MemberInfo{
		ID:           m.id,
		Channel:      m.channel.Name(),
		UniqueID:     m.channel.UniqueID(),
		CallerID:     number,
		CallerIDName: name,
		Type:         m.kind,
		Flags:        m.flags,
		Moderator:    m.moderator,
		Duration:     now.Sub(m.joined),
	}
	if c := m.conf; c != nil {
		mi.Conference = c.name
		mi.SpyPartner, _ = c.spies.partner(m.id)
		mi.Spyer = c.spies.isSpyer(m.id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	mi.Muted = m.muteAudio
	mi.Speaking = m.speaking
	mi.TalkVolume = m.talkVolume
	mi.ListenVolume = m.listenVolume
	mi.FramesIn = m.framesIn
	mi.FramesOut = m.framesOut
	mi.DroppedIn = m.framesInDropped
	mi.DroppedOut = m.framesOutDropped
	return mi
}
