package konference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/events"
	"github.com/Raikerian/go-konference/internal/sounds"
)

func TestAdmin_Listings(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	addMember(t, e, "A", "sales,M")
	addMember(t, e, "B", "sales,,type=agent")
	addMember(t, e, "C", "support")

	confs := e.ListConferences()
	require.Len(t, confs, 2)
	assert.Equal(t, "sales", confs[0].Name)
	assert.Equal(t, 2, confs[0].Members)
	assert.Equal(t, 1, confs[0].Moderators)
	assert.Equal(t, "support", confs[1].Name)

	members, err := e.ListMembers("sales")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "A", members[0].Channel)
	assert.True(t, members[0].Moderator)
	assert.Equal(t, "agent", members[1].Type)
	assert.Equal(t, "sales", members[1].Conference)

	assert.Len(t, e.ListAll(), 3)
	assert.Equal(t, 2, e.Count("sales"))
	assert.Zero(t, e.Count("nowhere"))

	_, err = e.ListMembers("Sales")
	assert.ErrorIs(t, err, ErrConferenceNotFound, "names are case sensitive")
}

func TestAdmin_Kick(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, cha := addMember(t, e, "A", "room")
	b, chb := addMember(t, e, "B", "room")
	c, chc := addMember(t, e, "C", "other")

	require.NoError(t, e.KickMember("room", a.id))
	assert.True(t, a.isKicked())
	assert.True(t, cha.DisconnectRequested())

	assert.ErrorIs(t, e.KickMember("room", 99), ErrMemberNotFound)
	assert.ErrorIs(t, e.KickMember("nowhere", 1), ErrConferenceNotFound)

	require.NoError(t, e.KickChannel("B"))
	assert.True(t, b.isKicked())
	assert.True(t, chb.DisconnectRequested())
	assert.ErrorIs(t, e.KickChannel("nobody"), ErrMemberNotFound)

	e.KickAll()
	assert.True(t, c.isKicked())
	assert.True(t, chc.DisconnectRequested())
}

func TestAdmin_EndConference(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, cha := addMember(t, e, "A", "room")
	_, chb := addMember(t, e, "B", "room")

	require.NoError(t, e.EndConference("room"))
	assert.True(t, cha.DisconnectRequested())
	assert.True(t, chb.DisconnectRequested())
	assert.False(t, a.isKicked())

	assert.ErrorIs(t, e.EndConference("nowhere"), ErrConferenceNotFound)
}

func TestAdmin_Mute(t *testing.T) {
	e, rec := newTestEngine(t, nil, nil, WithoutScheduler())
	mod, _ := addMember(t, e, "MOD", "room,M")
	a, _ := addMember(t, e, "A", "room")

	require.NoError(t, e.MuteChannel("A"))
	assert.True(t, a.info(time.Now()).Muted)
	require.NoError(t, e.UnmuteMember("room", a.id))
	assert.False(t, a.info(time.Now()).Muted)
	require.NoError(t, e.MuteMember("room", a.id))
	require.NoError(t, e.UnmuteChannel("A"))

	assert.Len(t, rec.Named(events.ConferenceMemberMute), 2)
	unmutes := rec.Named(events.ConferenceMemberUnmute)
	require.Len(t, unmutes, 2)
	assert.Equal(t, events.Fields{"Channel": "A"}, unmutes[0].Fields)

	require.NoError(t, e.MuteConference("room"))
	assert.True(t, a.info(time.Now()).Muted)
	assert.False(t, mod.info(time.Now()).Muted, "moderators are not muted with the room")

	mutes := rec.Named(events.ConferenceMute)
	require.Len(t, mutes, 1)
	assert.Equal(t, events.Fields{"ConferenceName": "room"}, mutes[0].Fields)

	require.NoError(t, e.UnmuteConference("room"))
	assert.False(t, a.info(time.Now()).Muted)
	assert.Len(t, rec.Named(events.ConferenceUnmute), 1)

	assert.ErrorIs(t, e.MuteConference("nowhere"), ErrConferenceNotFound)
	assert.ErrorIs(t, e.MuteChannel("nobody"), ErrMemberNotFound)
}

func TestAdmin_Volumes(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, _ := addMember(t, e, "A", "room")

	require.NoError(t, e.TalkVolume("A", true))
	require.NoError(t, e.TalkVolume("A", true))
	require.NoError(t, e.ListenVolume("A", false))

	info := a.info(time.Now())
	assert.Equal(t, 2, info.TalkVolume)
	assert.Equal(t, -1, info.ListenVolume)

	require.NoError(t, e.ConferenceVolume("room", false))
	assert.Equal(t, -1, e.ListConferences()[0].Volume)

	assert.ErrorIs(t, e.TalkVolume("nobody", true), ErrMemberNotFound)
	assert.ErrorIs(t, e.ConferenceVolume("nowhere", true), ErrConferenceNotFound)
}

func TestAdmin_MusicOnHold(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, cha := addMember(t, e, "A", "room")
	addMember(t, e, "B", "room")

	require.NoError(t, e.StartMOH("A"))
	assert.True(t, cha.MusicOnHold())

	e.Tick(context.Background(), time.Now())
	assert.Zero(t, outgoingLen(a), "no conference audio while on hold")

	push(a, constFrame(1))
	require.NoError(t, e.StopMOH("A"))
	assert.False(t, cha.MusicOnHold())

	e.Tick(context.Background(), time.Now())
	assert.Equal(t, 1, outgoingLen(a))
}

func TestAdmin_StopSoundsReleasesMute(t *testing.T) {
	lib, err := sounds.NewLibrary(zap.NewNop(), "", 4)
	require.NoError(t, err)
	lib.Register("long", make([]int16, 10*160))

	e, _ := newTestEngine(t, nil, lib, WithoutScheduler())
	a, _ := addMember(t, e, "A", "room")

	require.NoError(t, e.PlaySound("A", []string{"long"}, true, false))
	a.mu.Lock()
	assert.True(t, a.muted)
	assert.Len(t, a.soundQueue, 1)
	a.mu.Unlock()

	require.NoError(t, e.StopSounds("A"))
	a.mu.Lock()
	assert.False(t, a.muted)
	assert.Empty(t, a.soundQueue)
	a.mu.Unlock()
}

func TestAdmin_PlaySound(t *testing.T) {
	lib, err := sounds.NewLibrary(zap.NewNop(), "", 4)
	require.NoError(t, err)
	beep := make([]int16, 2*160)
	for i := range beep {
		beep[i] = 1000
	}
	lib.Register("beep", beep)

	e, rec := newTestEngine(t, nil, lib, WithoutScheduler())
	a, cha := addMember(t, e, "A", "room")
	addMember(t, e, "B", "room")

	require.NoError(t, e.PlaySound("A", []string{"beep"}, true, false))
	assert.ErrorIs(t, e.PlaySound("A", []string{"beep"}, false, true), ErrSoundRejected, "tones wait for an idle queue")

	for range 3 {
		e.Tick(context.Background(), time.Now())
	}
	require.True(t, e.processOutgoing(a))

	written := cha.Written()
	require.Len(t, written, 3)
	for i, want := range []int16{1000, 1000, 0} {
		got := int16(written[i].Data[0]) | int16(written[i].Data[1])<<8
		assert.Equal(t, want, got, "frame %d", i)
	}
	assert.False(t, written[0].Delivery.IsZero(), "sound frames keep the tick delivery time")

	complete := rec.Named(events.ConferenceSoundComplete)
	require.Len(t, complete, 1)
	assert.Equal(t, events.Fields{"Channel": "A", "Sound": "beep"}, complete[0].Fields)

	a.mu.Lock()
	assert.False(t, a.muted, "mute ends with the queue")
	a.mu.Unlock()
}

func TestAdmin_PlaySoundRejected(t *testing.T) {
	lib, err := sounds.NewLibrary(zap.NewNop(), "", 4)
	require.NoError(t, err)
	lib.Register("beep", make([]int16, 160))

	e, _ := newTestEngine(t, nil, lib, WithoutScheduler())
	addMember(t, e, "L", "room,l")
	addMember(t, e, "A", "room")

	assert.ErrorIs(t, e.PlaySound("L", []string{"beep"}, false, false), ErrSoundRejected)
	assert.ErrorIs(t, e.PlaySound("A", []string{"missing"}, false, false), sounds.ErrSoundNotFound)
	assert.ErrorIs(t, e.PlaySound("nobody", []string{"beep"}, false, false), ErrMemberNotFound)

	require.NoError(t, e.StartMOH("A"))
	assert.ErrorIs(t, e.PlaySound("A", []string{"beep"}, false, false), ErrSoundRejected)

	noLib, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	assert.ErrorIs(t, noLib.PlaySound("A", []string{"beep"}, false, false), sounds.ErrSoundNotFound)
}

func TestAdmin_GuardBlocksTeardown(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil, WithoutScheduler())
	a, _ := addMember(t, e, "A", "room")

	m, ok := e.registry.findMember("A")
	require.True(t, ok)
	require.Same(t, a, m)

	done := make(chan struct{})
	go func() {
		e.leave(context.Background(), a)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("member torn down while referenced")
	case <-time.After(20 * time.Millisecond):
	}
	_, ok = e.registry.findMember("A")
	assert.False(t, ok, "unlinked members cannot be found")

	m.guard.release()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("teardown did not finish")
	}
}
