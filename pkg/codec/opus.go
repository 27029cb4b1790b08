package codec

import (
	"errors"
	"fmt"
	"sync"

	"layeh.com/gopus"

	"github.com/Raikerian/go-konference/pkg/audio"
)

const (
	// opusBitrate suits narrowband speech.
	opusBitrate = 16_000
	// opusMaxPacket is the largest packet libopus produces for one frame.
	opusMaxPacket = 1275
)

// opusTranslator wraps a gopus encoder or decoder running at the
// conference's 8 kHz mono clock.
type opusTranslator struct {
	from, to audio.Format
	encoder  *gopus.Encoder
	decoder  *gopus.Decoder
	closed   bool

	// Thread safety
	mu sync.Mutex
}

// NewOpusEncoder returns a linear -> Opus translator.
func NewOpusEncoder() (Translator, error) {
	enc, err := gopus.NewEncoder(audio.SampleRate, audio.Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	enc.SetBitrate(opusBitrate)
	return &opusTranslator{from: audio.FormatSLinear, to: audio.FormatOpus, encoder: enc}, nil
}

// NewOpusDecoder returns an Opus -> linear translator.
func NewOpusDecoder() (Translator, error) {
	dec, err := gopus.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &opusTranslator{from: audio.FormatOpus, to: audio.FormatSLinear, decoder: dec}, nil
}

func (o *opusTranslator) From() audio.Format { return o.from }
func (o *opusTranslator) To() audio.Format   { return o.to }

func (o *opusTranslator) Translate(f *audio.Frame) (*audio.Frame, error) {
	if f.Format != o.from {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrFormatMismatch, f.Format, o.from)
	}
	if len(f.Data) == 0 {
		return nil, errors.New("opus payload empty")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}

	var out *audio.Frame
	if o.from == audio.FormatSLinear {
		pcm := audio.LEToPCMInt16(f.Data)
		if len(pcm) != audio.FrameSamples {
			return nil, fmt.Errorf("need %d samples, got %d", audio.FrameSamples, len(pcm))
		}
		packet, err := o.encoder.Encode(pcm, audio.FrameSamples, opusMaxPacket)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		out = audio.NewVoiceFrame(audio.FormatOpus, packet, audio.FrameSamples)
	} else {
		pcm, err := o.decoder.Decode(f.Data, audio.FrameSamples, false)
		if err != nil {
			return nil, fmt.Errorf("opus decode: %w", err)
		}
		out = audio.NewLinearFrame(pcm)
	}
	out.Delivery = f.Delivery
	return out, nil
}

func (o *opusTranslator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// gopus doesn't require explicit cleanup
	o.closed = true
	o.encoder = nil
	o.decoder = nil
	return nil
}
