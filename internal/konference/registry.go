package konference

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry indexes conferences by name and members by channel name.
//
// Lock order is listMu, then Conference.mu, then Member.mu. Bucket locks
// are only nested with a member guard.
type Registry struct {
	logger *zap.Logger

	listMu      sync.Mutex
	conferences []*Conference
	confTable   *hashTable[*Conference]

	members *hashTable[*Member]

	// onFirst runs under listMu when a conference is created while the list
	// is empty.
	onFirst func()

	// snapshot is the conference list seen by the last tick that got listMu.
	// It belongs to the mixing goroutine.
	snapshot []*Conference
}

func newRegistry(logger *zap.Logger, confTableSize, channelTableSize int, onFirst func()) *Registry {
	return &Registry{
		logger:    logger,
		confTable: newHashTable[*Conference](confTableSize),
		members:   newHashTable[*Member](channelTableSize),
		onFirst:   onFirst,
	}
}

// findOrCreateLocked returns the named conference, creating it when
// missing. The caller holds listMu.
func (r *Registry) findOrCreateLocked(name string) (*Conference, bool) {
	if c, ok := r.confTable.lookup(name, nil); ok {
		return c, false
	}

	c := newConference(name, r.logger)
	r.confTable.insert(name, c)
	r.conferences = append(r.conferences, c)
	if len(r.conferences) == 1 && r.onFirst != nil {
		r.onFirst()
	}

	r.logger.Info("Conference created", zap.String("conference", name))
	return c, true
}

// join links m into the named conference, creating it if needed. It returns
// ErrAlreadyJoined when the member's channel is already in a conference
// and ErrMaxUsers when the conference is full. spyPaired is false only when a
// spy target was requested and could not be paired.
func (r *Registry) join(m *Member, name string) (c *Conference, created, spyPaired bool, err error) {
	r.listMu.Lock()
	defer r.listMu.Unlock()

	if _, exists := r.members.lookup(m.channel.Name(), nil); exists {
		return nil, false, false, fmt.Errorf("%w: %s", ErrAlreadyJoined, m.channel.Name())
	}

	c, created = r.findOrCreateLocked(name)

	c.mu.Lock()
	if m.maxUsers > 0 && c.memberCount >= m.maxUsers {
		c.mu.Unlock()
		return c, created, false, ErrMaxUsers
	}

	var spyee *Member
	if m.spyTarget != "" {
		spyee, _ = r.members.lookup(m.spyTarget, nil)
	}
	paired := c.addMemberLocked(m, spyee)
	c.mu.Unlock()

	r.members.insert(m.channel.Name(), m)
	return c, created, m.spyTarget == "" || paired, nil
}

// leave unlinks m from the channel table and its conference. The
// conference itself is only freed by sweepLocked.
func (r *Registry) leave(m *Member) {
	r.members.remove(m.channel.Name(), m)

	c := m.conf
	c.mu.Lock()
	c.removeMemberLocked(m)
	c.mu.Unlock()
}

// findConferenceLocked looks up a conference. The caller holds listMu.
func (r *Registry) findConferenceLocked(name string) (*Conference, bool) {
	return r.confTable.lookup(name, nil)
}

// findMember returns the member on the named channel with a use reference
// taken. The caller must call release on the member's guard.
func (r *Registry) findMember(channel string) (*Member, bool) {
	return r.members.lookup(channel, func(m *Member) bool {
		return m.guard.acquire()
	})
}

// sweepLocked removes conferences that have no members left and reports
// the removed conferences. The caller holds listMu.
func (r *Registry) sweepLocked() []*Conference {
	var removed []*Conference
	kept := r.conferences[:0]
	for _, c := range r.conferences {
		if c.count() > 0 {
			kept = append(kept, c)
			continue
		}
		r.confTable.remove(c.name, c)
		removed = append(removed, c)
	}
	clear(r.conferences[len(kept):])
	r.conferences = kept
	return removed
}

// emptyLocked reports whether no conference exists. The caller holds listMu.
func (r *Registry) emptyLocked() bool {
	return len(r.conferences) == 0
}
