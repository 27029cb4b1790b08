package konference

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// frameRateTolerance is how far the average tick interval may drift before
// a warning is logged.
const frameRateTolerance = time.Millisecond

// scheduler drives the mixing tick from one goroutine. It runs only while
// at least one conference exists.
type scheduler struct {
	logger     *zap.Logger
	interval   time.Duration
	checkTicks int
	tick       func(ctx context.Context, now time.Time) bool

	// running is guarded by Registry.listMu.
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newScheduler(logger *zap.Logger, interval time.Duration, checkTicks int, tick func(context.Context, time.Time) bool) *scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &scheduler{
		logger:     logger,
		interval:   interval,
		checkTicks: checkTicks,
		tick:       tick,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// startLocked launches the mixing goroutine unless it is running. The
// caller holds Registry.listMu.
func (s *scheduler) startLocked() {
	if s.running || s.ctx.Err() != nil {
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.run()
}

// stop cancels the mixing goroutine and waits for it to exit.
func (s *scheduler) stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run ticks on an absolute schedule: each deadline is the previous one plus
// the interval, so time spent mixing does not accumulate as drift.
func (s *scheduler) run() {
	defer s.wg.Done()

	s.logger.Info("Mixing scheduler started", zap.Duration("interval", s.interval))

	next := time.Now()
	checkStart := next
	ticks := 0

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		next = next.Add(s.interval)
		timer.Reset(time.Until(next))

		select {
		case <-s.ctx.Done():
			s.logger.Info("Mixing scheduler stopped")
			return
		case <-timer.C:
		}

		if s.tick(s.ctx, next) {
			s.logger.Info("Mixing scheduler idle, no conferences left")
			return
		}

		if ticks++; s.checkTicks > 0 && ticks == s.checkTicks {
			now := time.Now()
			s.checkFrameRate(now.Sub(checkStart) / time.Duration(ticks))
			checkStart = now
			ticks = 0
		}
	}
}

func (s *scheduler) checkFrameRate(average time.Duration) {
	if d := average - s.interval; d > frameRateTolerance || d < -frameRateTolerance {
		s.logger.Warn("Mixing frame rate drifted",
			zap.Duration("average_interval", average),
			zap.Duration("interval", s.interval))
	}
}
