package konference

import (
	"sync"

	"github.com/Raikerian/go-konference/pkg/audio"
	"github.com/Raikerian/go-konference/pkg/codec"
)

// mixFrame is a linear frame produced during one tick together with the
// encodings already made for listeners.
type mixFrame struct {
	frame     *audio.Frame
	converted [audio.FormatCount]*audio.Frame
	// member is the producer of a raw speaker frame, or the recipient once
	// the frame has been routed. It is nil for the shared listener frame.
	member *Member
}

var mixFramePool = sync.Pool{
	New: func() any { return new(mixFrame) },
}

// newMixFrame takes a mixFrame from the pool and tracks it for release at
// the end of the tick.
func (c *Conference) newMixFrame(f *audio.Frame, member *Member) *mixFrame {
	mf := mixFramePool.Get().(*mixFrame)
	mf.frame = f
	mf.member = member
	mf.converted[audio.FormatSLinear] = f
	c.frames = append(c.frames, mf)
	return mf
}

func (c *Conference) releaseFrames() {
	for i, mf := range c.frames {
		*mf = mixFrame{}
		mixFramePool.Put(mf)
		c.frames[i] = nil
	}
	c.frames = c.frames[:0]
}

// silenceCache holds one encoded silent frame per format. Entries are
// built on first use and kept for the life of the engine.
type silenceCache struct {
	mu     sync.Mutex
	frames [audio.FormatCount]*audio.Frame
}

func (s *silenceCache) frame(format audio.Format) (*audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f := s.frames[format]; f != nil {
		return f, nil
	}

	t, err := codec.BuildPath(audio.FormatSLinear, format)
	if err != nil {
		return nil, err
	}
	var silence audio.Buffer
	f, err := codec.Translate(t, silence.Frame())
	if t != nil {
		_ = t.Close()
	}
	if err != nil {
		return nil, err
	}

	s.frames[format] = f
	return f, nil
}
