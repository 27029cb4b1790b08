// Package simulate drives conferences with in-memory callers so the engine
// can be run and observed without a telephony host.
package simulate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/internal/host"
	"github.com/Raikerian/go-konference/internal/konference"
	"github.com/Raikerian/go-konference/pkg/audio"
	"github.com/Raikerian/go-konference/pkg/codec"
)

const (
	// turnTicks is how long each caller holds the floor.
	turnTicks = 50
	// crowdEvery makes every caller talk at once on every n-th turn.
	crowdEvery = 4

	toneAmplitude = 4000
	toneBaseHz    = 300
	toneStepHz    = 100
)

// Joiner runs one call leg in a conference until it ends.
type Joiner interface {
	Join(ctx context.Context, ch host.Channel, args string) (konference.Result, error)
}

// Report summarizes a simulation run.
type Report struct {
	Members        int
	Completed      int
	Kicked         int
	Refused        int
	FramesSent     int64
	FramesReceived int64
}

// Simulator places synthetic callers into conferences. Callers take turns
// talking with a tone of their own pitch, and regularly all talk at once.
type Simulator struct {
	logger   *zap.Logger
	joiner   Joiner
	cfg      config.SimulationConfig
	interval time.Duration
	formats  []audio.Format

	mu     sync.Mutex
	report Report
}

// NewSimulator validates the configured formats and returns a simulator.
func NewSimulator(cfg config.SimulationConfig, interval time.Duration, joiner Joiner, logger *zap.Logger) (*Simulator, error) {
	if interval <= 0 {
		interval = audio.FrameDuration
	}

	formats := make([]audio.Format, 0, len(cfg.Formats))
	for _, name := range cfg.Formats {
		f, ok := audio.ParseFormat(name)
		if !ok {
			return nil, fmt.Errorf("unknown simulation format %q", name)
		}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		formats = append(formats, audio.FormatSLinear)
	}

	return &Simulator{
		logger:   logger,
		joiner:   joiner,
		cfg:      cfg,
		interval: interval,
		formats:  formats,
	}, nil
}

// Run joins every caller and waits until ctx is done or the configured
// duration has passed. It fails if any caller could not join.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	if s.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Duration)
		defer cancel()
	}

	s.logger.Info("Simulation starting",
		zap.Int("conferences", s.cfg.Conferences),
		zap.Int("members_per_conference", s.cfg.MembersPerConference),
		zap.Duration("duration", s.cfg.Duration))

	g, gctx := errgroup.WithContext(ctx)
	for c := range s.cfg.Conferences {
		name := fmt.Sprintf("sim-%d", c+1)
		for i := range s.cfg.MembersPerConference {
			cl := newCaller(fmt.Sprintf("Sim/%s-%d", name, i+1), s.formats[i%len(s.formats)])
			g.Go(func() error {
				return s.runCaller(gctx, cl, name, i)
			})
		}
	}
	err := g.Wait()

	s.mu.Lock()
	report := s.report
	s.mu.Unlock()

	s.logger.Info("Simulation finished",
		zap.Int("members", report.Members),
		zap.Int("completed", report.Completed),
		zap.Int("kicked", report.Kicked),
		zap.Int("refused", report.Refused),
		zap.Int64("frames_sent", report.FramesSent),
		zap.Int64("frames_received", report.FramesReceived))
	return report, err
}

func (s *Simulator) runCaller(ctx context.Context, cl *caller, conference string, index int) error {
	feedCtx, stopFeed := context.WithCancel(ctx)
	fed := make(chan int64, 1)
	go func() {
		fed <- s.feed(feedCtx, cl, index)
	}()

	args := conference
	if s.cfg.Flags != "" {
		args += "," + s.cfg.Flags
	}
	result, err := s.joiner.Join(ctx, cl, args)

	cl.Hangup()
	stopFeed()
	sent := <-fed
	if err != nil {
		return fmt.Errorf("caller %s failed to join %s: %w", cl.Name(), conference, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Members++
	s.report.FramesSent += sent
	s.report.FramesReceived += cl.received.Load()
	switch result.Outcome {
	case konference.OutcomeKicked:
		s.report.Kicked++
	case konference.OutcomeMaxUsers, konference.OutcomeSpyFailed:
		s.report.Refused++
	default:
		s.report.Completed++
	}
	return nil
}

// feed sends the caller's voice every interval during its turns and
// reports how many frames were accepted.
func (s *Simulator) feed(ctx context.Context, cl *caller, index int) int64 {
	enc, err := codec.BuildPath(audio.FormatSLinear, cl.ReadFormat())
	if err != nil {
		s.logger.Warn("Failed to build simulation encoder",
			zap.String("channel", cl.Name()),
			zap.Error(err))
		return 0
	}
	if enc != nil {
		defer enc.Close()
	}

	members := max(s.cfg.MembersPerConference, 1)
	freq := float64(toneBaseHz + toneStepHz*index)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var sent int64
	var phase int
	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return sent
		case <-cl.Done():
			return sent
		case <-ticker.C:
		}

		turn := tick / turnTicks
		if turn%crowdEvery != crowdEvery-1 && turn%members != index {
			continue
		}

		f, err := codec.Translate(enc, toneFrame(freq, &phase))
		if err != nil {
			s.logger.Warn("Failed to encode simulation frame", zap.Error(err))
			return sent
		}
		if cl.Send(f) {
			sent++
		}
	}
}

// toneFrame returns one frame of a sine tone continuing from *phase.
func toneFrame(freq float64, phase *int) *audio.Frame {
	samples := make([]int16, audio.FrameSamples)
	for i := range samples {
		t := float64(*phase+i) / audio.SampleRate
		samples[i] = int16(toneAmplitude * math.Sin(2*math.Pi*freq*t))
	}
	*phase += audio.FrameSamples
	return audio.NewLinearFrame(samples)
}

// caller is a loopback leg that counts the frames written to it.
type caller struct {
	*host.Loopback
	received atomic.Int64
}

func newCaller(name string, format audio.Format) *caller {
	return &caller{
		Loopback: host.NewLoopback(name,
			host.WithFormats(format, format),
			host.WithCallerID(name, "Simulated caller"),
			host.WithRecordLimit(1)),
	}
}

func (c *caller) WriteFrame(f *audio.Frame) error {
	c.received.Add(1)
	return c.Loopback.WriteFrame(f)
}

var _ host.Channel = (*caller)(nil)
