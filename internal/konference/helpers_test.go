package konference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zaf/g711"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/internal/events"
	"github.com/Raikerian/go-konference/internal/host"
	"github.com/Raikerian/go-konference/internal/sounds"
	"github.com/Raikerian/go-konference/pkg/audio"
)

const waitTimeout = 2 * time.Second

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Conference.WaitForLatency = 5 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, library *sounds.Library, opts ...Option) (*Engine, *events.Recorder) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	rec := events.NewRecorder()
	e := NewEngine(cfg, zaptest.NewLogger(t), rec, nil, library, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = e.Stop(ctx)
	})
	return e, rec
}

// addMember links a member straight into the registry without running its
// goroutine, so tests drive its queues by hand.
func addMember(t *testing.T, e *Engine, name, args string, opts ...host.LoopbackOption) (*Member, *host.Loopback) {
	t.Helper()
	m, ch, conference := newUnlinkedMember(t, e, name, args, opts...)
	_, _, _, err := e.registry.join(m, conference)
	require.NoError(t, err)
	return m, ch
}

func newUnlinkedMember(t *testing.T, e *Engine, name, args string, opts ...host.LoopbackOption) (*Member, *host.Loopback, string) {
	t.Helper()
	ch := host.NewLoopback(name, opts...)
	jo, err := ParseJoinArgs(args, e.cfg)
	require.NoError(t, err)

	m, err := newMember(ch, jo, e.limits, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.closeTranslators() })
	return m, ch, jo.Conference
}

func constFrame(v int16) *audio.Frame {
	samples := make([]int16, audio.FrameSamples)
	for i := range samples {
		samples[i] = v
	}
	return audio.NewLinearFrame(samples)
}

func push(m *Member, f *audio.Frame) {
	m.mu.Lock()
	m.incoming.push(f)
	m.mu.Unlock()
}

// heard pops the next outgoing frame of m and returns its first sample
// after decoding to linear.
func heard(t *testing.T, m *Member) int16 {
	t.Helper()
	f := m.dequeueOutgoing()
	require.NotNil(t, f, "no frame queued for %s", m.channel.Name())
	if f.Format != audio.FormatSLinear {
		var err error
		f, err = translateForTest(f)
		require.NoError(t, err)
	}
	samples := audio.LEToPCMInt16(f.Data)
	require.Len(t, samples, audio.FrameSamples)
	for _, s := range samples[1:] {
		require.Equal(t, samples[0], s, "frame is not constant")
	}
	return samples[0]
}

func translateForTest(f *audio.Frame) (*audio.Frame, error) {
	switch f.Format {
	case audio.FormatULaw:
		return audio.NewVoiceFrame(audio.FormatSLinear, g711.DecodeUlaw(f.Data), len(f.Data)), nil
	case audio.FormatALaw:
		return audio.NewVoiceFrame(audio.FormatSLinear, g711.DecodeAlaw(f.Data), len(f.Data)), nil
	}
	return f, nil
}

func outgoingLen(m *Member) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outgoing.len()
}

type joinResult struct {
	result Result
	err    error
}

// joinAsync runs Join on its own goroutine like a host would.
func joinAsync(e *Engine, ch host.Channel, args string) <-chan joinResult {
	done := make(chan joinResult, 1)
	go func() {
		r, err := e.Join(context.Background(), ch, args)
		done <- joinResult{result: r, err: err}
	}()
	return done
}

func waitJoin(t *testing.T, done <-chan joinResult) joinResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("join did not return")
		return joinResult{}
	}
}

func waitCount(t *testing.T, e *Engine, conference string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.Count(conference) == n
	}, waitTimeout, time.Millisecond)
}

func waitVariable(t *testing.T, ch *host.Loopback, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, _ := ch.Variable(VariableName)
		return v == want
	}, waitTimeout, time.Millisecond)
}
