package konference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConference_Hold(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	h, chh := addMember(t, e, "H", "room,H")

	assert.True(t, chh.MusicOnHold(), "a lone hold member waits on music")
	e.Tick(context.Background(), time.Now())
	assert.Zero(t, outgoingLen(h))

	b, _ := addMember(t, e, "B", "room,H")
	assert.False(t, chh.MusicOnHold(), "a second hold member releases hold")
	e.Tick(context.Background(), time.Now())
	assert.Equal(t, 1, outgoingLen(h))

	e.registry.leave(b)
	assert.True(t, chh.MusicOnHold(), "hold resumes when left alone")
	h.mu.Lock()
	assert.True(t, h.onHold)
	assert.Zero(t, h.outgoing.len(), "queued audio is dropped on hold")
	h.mu.Unlock()
}

func TestConference_HoldNeedsFlagOnBothMembers(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	h, chh := addMember(t, e, "H", "room,H")

	b, _ := addMember(t, e, "B", "room")
	assert.True(t, chh.MusicOnHold(), "a member without hold does not release it")
	e.registry.leave(b)
	assert.True(t, chh.MusicOnHold())

	c, _ := addMember(t, e, "C", "room,H")
	require.False(t, chh.MusicOnHold())
	d, _ := addMember(t, e, "D", "room")
	e.registry.leave(c)
	e.registry.leave(d)
	assert.False(t, chh.MusicOnHold(), "a leaver without hold does not restart it")

	e.Tick(context.Background(), time.Now())
	assert.Equal(t, 1, outgoingLen(h))
}

func TestConference_NoHoldWithoutFlag(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, cha := addMember(t, e, "A", "room")
	b, _ := addMember(t, e, "B", "room")

	assert.False(t, cha.MusicOnHold())
	e.registry.leave(b)
	assert.False(t, cha.MusicOnHold())

	e.Tick(context.Background(), time.Now())
	assert.Equal(t, 1, outgoingLen(a))
}

func TestConference_SpyeeLeavingDisconnectsSpyer(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, _ := addMember(t, e, "A", "room")
	_, chs := addMember(t, e, "S", "room,,spy=A")
	c := a.conf

	e.registry.leave(a)
	assert.True(t, chs.DisconnectRequested())
	assert.Zero(t, c.spies.len())
}

func TestConference_SpyerLeavingFreesSpyee(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, cha := addMember(t, e, "A", "room")
	s, _ := addMember(t, e, "S", "room,,spy=A")
	c := a.conf

	e.registry.leave(s)
	assert.False(t, cha.DisconnectRequested())
	assert.False(t, c.spies.paired(a.id))

	_, _, paired, err := e.registry.join(spyMember(t, e, "T", "A"), "room")
	require.NoError(t, err)
	assert.True(t, paired, "a freed spyee can be watched again")
}

func TestConference_SpyAcrossConferencesFails(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	addMember(t, e, "A", "sales")

	_, _, paired, err := e.registry.join(spyMember(t, e, "S", "A"), "support")
	require.NoError(t, err)
	assert.False(t, paired)
}

func TestConference_SweepFreesEmptyConference(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, _ := addMember(t, e, "A", "room")
	first := a.conf

	e.registry.leave(a)
	require.Len(t, e.ListConferences(), 1, "kept until the next tick")

	e.Tick(context.Background(), time.Now())
	assert.Empty(t, e.ListConferences())

	b, _ := addMember(t, e, "B", "room")
	assert.NotSame(t, first, b.conf)
	assert.Equal(t, 1, b.id)
}

func spyMember(t *testing.T, e *Engine, name, target string) *Member {
	t.Helper()
	m, _, _ := newUnlinkedMember(t, e, name, "x,,spy="+target)
	return m
}
