// Package codec converts frames between the conference's canonical linear
// format and the formats spoken by host channels.
package codec

import (
	"errors"
	"fmt"

	"github.com/Raikerian/go-konference/pkg/audio"
)

var (
	ErrNoPath         = errors.New("no translation path")
	ErrFormatMismatch = errors.New("frame format does not match translator input")
	ErrClosed         = errors.New("translator closed")
)

// Translator converts frames from one format to another. Implementations
// that carry codec state are not safe for concurrent use; each conference
// member owns its own translators.
type Translator interface {
	From() audio.Format
	To() audio.Format
	Translate(f *audio.Frame) (*audio.Frame, error)
	Close() error
}

// BuildPath returns a translator from one format to another. It returns nil
// and no error when the formats already match.
func BuildPath(from, to audio.Format) (Translator, error) {
	if from == to {
		return nil, nil
	}
	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from, to)
	}

	if g, ok := newG711(from, to); ok {
		return g, nil
	}
	switch {
	case from == audio.FormatSLinear:
		return encoderFor(to)
	case to == audio.FormatSLinear:
		return decoderFor(from)
	}

	// Opus to G.711 and back takes two hops through linear.
	dec, err := decoderFor(from)
	if err != nil {
		return nil, err
	}
	enc, err := encoderFor(to)
	if err != nil {
		_ = dec.Close()
		return nil, err
	}
	return &chain{steps: []Translator{dec, enc}}, nil
}

// Translate runs f through t. A nil translator passes the frame through.
func Translate(t Translator, f *audio.Frame) (*audio.Frame, error) {
	if t == nil {
		return f, nil
	}
	return t.Translate(f)
}

func encoderFor(to audio.Format) (Translator, error) {
	if g, ok := newG711(audio.FormatSLinear, to); ok {
		return g, nil
	}
	if to == audio.FormatOpus {
		return NewOpusEncoder()
	}
	return nil, fmt.Errorf("%w: slin -> %s", ErrNoPath, to)
}

func decoderFor(from audio.Format) (Translator, error) {
	if g, ok := newG711(from, audio.FormatSLinear); ok {
		return g, nil
	}
	if from == audio.FormatOpus {
		return NewOpusDecoder()
	}
	return nil, fmt.Errorf("%w: %s -> slin", ErrNoPath, from)
}

// chain applies translators in sequence.
type chain struct {
	steps []Translator
}

func (c *chain) From() audio.Format { return c.steps[0].From() }
func (c *chain) To() audio.Format   { return c.steps[len(c.steps)-1].To() }

func (c *chain) Translate(f *audio.Frame) (*audio.Frame, error) {
	var err error
	for _, s := range c.steps {
		if f, err = s.Translate(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (c *chain) Close() error {
	var errs []error
	for _, s := range c.steps {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
