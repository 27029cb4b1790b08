package codec

import (
	"fmt"

	"github.com/zaf/g711"

	"github.com/Raikerian/go-konference/pkg/audio"
)

// g711Converters holds the stateless G.711 conversions by path.
var g711Converters = map[[2]audio.Format]func([]byte) []byte{
	{audio.FormatSLinear, audio.FormatULaw}: g711.EncodeUlaw,
	{audio.FormatSLinear, audio.FormatALaw}: g711.EncodeAlaw,
	{audio.FormatULaw, audio.FormatSLinear}: g711.DecodeUlaw,
	{audio.FormatALaw, audio.FormatSLinear}: g711.DecodeAlaw,
	{audio.FormatULaw, audio.FormatALaw}:    g711.Ulaw2Alaw,
	{audio.FormatALaw, audio.FormatULaw}:    g711.Alaw2Ulaw,
}

// g711Translator is a stateless companding translator.
type g711Translator struct {
	from, to audio.Format
	convert  func([]byte) []byte
}

// newG711 returns the G.711 translator for a path, or false when either
// side is not linear or G.711.
func newG711(from, to audio.Format) (*g711Translator, bool) {
	convert, ok := g711Converters[[2]audio.Format{from, to}]
	if !ok {
		return nil, false
	}
	return &g711Translator{from: from, to: to, convert: convert}, true
}

func (g *g711Translator) From() audio.Format { return g.from }
func (g *g711Translator) To() audio.Format   { return g.to }

func (g *g711Translator) Translate(f *audio.Frame) (*audio.Frame, error) {
	if f.Format != g.from {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrFormatMismatch, f.Format, g.from)
	}
	out := audio.NewVoiceFrame(g.to, g.convert(f.Data), f.Samples)
	out.Delivery = f.Delivery
	return out, nil
}

func (g *g711Translator) Close() error { return nil }
