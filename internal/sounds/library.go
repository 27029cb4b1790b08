// Package sounds loads prompt and announcement clips that can be queued to
// conference members.
package sounds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zaf/g711"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/pkg/audio"
)

var ErrSoundNotFound = errors.New("sound not found")

// extensions maps raw file suffixes to their payload decoders.
var extensions = []struct {
	ext    string
	decode func([]byte) []byte
}{
	{".sln", func(b []byte) []byte { return b }},
	{".raw", func(b []byte) []byte { return b }},
	{".ul", g711.DecodeUlaw},
	{".ulaw", g711.DecodeUlaw},
	{".al", g711.DecodeAlaw},
	{".alaw", g711.DecodeAlaw},
}

// Clip is a decoded sound split into canonical frames.
type Clip struct {
	Name   string
	Frames []*audio.Frame
}

// Duration returns the clip's play time.
func (c *Clip) Duration() time.Duration {
	return time.Duration(len(c.Frames)) * audio.FrameDuration
}

// Library resolves clip names against a directory and keeps recently used
// clips decoded in an LRU cache.
type Library struct {
	logger *zap.Logger
	dir    string
	cache  *lru.Cache[string, *Clip]
}

// NewLibrary creates a library rooted at dir holding at most cacheSize
// decoded clips.
func NewLibrary(logger *zap.Logger, dir string, cacheSize int) (*Library, error) {
	cache, err := lru.New[string, *Clip](max(cacheSize, 1))
	if err != nil {
		return nil, err
	}
	return &Library{logger: logger, dir: dir, cache: cache}, nil
}

// Register adds an in-memory clip, replacing any cached clip of that name.
func (l *Library) Register(name string, samples []int16) *Clip {
	clip := newClip(name, samples)
	l.cache.Add(name, clip)
	return clip
}

// Load returns the decoded clip for name.
func (l *Library) Load(name string) (*Clip, error) {
	if clip, ok := l.cache.Get(name); ok {
		return clip, nil
	}
	if l.dir == "" {
		return nil, fmt.Errorf("%w: %s", ErrSoundNotFound, name)
	}

	clean := filepath.Clean("/" + name)
	for _, e := range extensions {
		path := filepath.Join(l.dir, clean+e.ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sound %s: %w", name, err)
		}

		clip := newClip(name, audio.LEToPCMInt16(e.decode(data)))
		l.cache.Add(name, clip)
		l.logger.Debug("Sound loaded",
			zap.String("sound", name),
			zap.String("path", path),
			zap.Int("frames", len(clip.Frames)))
		return clip, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSoundNotFound, strings.TrimPrefix(clean, "/"))
}

// Open returns a player positioned at the start of the named clip.
func (l *Library) Open(name string) (*Player, error) {
	clip, err := l.Load(name)
	if err != nil {
		return nil, err
	}
	return &Player{clip: clip}, nil
}

// Cached reports how many clips are decoded in memory.
func (l *Library) Cached() int {
	return l.cache.Len()
}

func newClip(name string, samples []int16) *Clip {
	clip := &Clip{Name: name}
	for start := 0; start < len(samples); start += audio.FrameSamples {
		var buf audio.Buffer
		copy(buf[:], samples[start:min(start+audio.FrameSamples, len(samples))])
		clip.Frames = append(clip.Frames, buf.Frame())
	}
	return clip
}

// Player streams a clip one frame at a time. It is owned by one member.
type Player struct {
	clip *Clip
	pos  int
}

// Name returns the clip name.
func (p *Player) Name() string {
	return p.clip.Name
}

// Next returns a copy of the next frame, or false at the end of the clip.
func (p *Player) Next() (*audio.Frame, bool) {
	if p.pos >= len(p.clip.Frames) {
		return nil, false
	}
	f := p.clip.Frames[p.pos].Clone()
	p.pos++
	return f, true
}
