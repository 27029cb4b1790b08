package audio

import "time"

// Canonical conference audio: signed linear 16-bit mono, 8 kHz, 20 ms blocks.
const (
	SampleRate    = 8_000 // Hz
	Channels      = 1
	FrameDuration = 20 * time.Millisecond
	FrameSamples  = SampleRate / 1000 * 20 // 160 samples per 20 ms
	FrameBytes    = FrameSamples * 2       // 16-bit PCM
	FramesPerSec  = int(time.Second / FrameDuration)
)

// Format identifies the encoding of a frame's payload.
type Format uint8

const (
	FormatSLinear Format = iota // 16-bit signed little-endian PCM
	FormatULaw                  // G.711 mu-law
	FormatALaw                  // G.711 A-law
	FormatOpus                  // Opus, 8 kHz mono

	// FormatCount is the number of known formats; it sizes per-format caches.
	FormatCount
)

var formatNames = [FormatCount]string{
	FormatSLinear: "slin",
	FormatULaw:    "ulaw",
	FormatALaw:    "alaw",
	FormatOpus:    "opus",
}

func (f Format) String() string {
	if f < FormatCount {
		return formatNames[f]
	}
	return "unknown"
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f < FormatCount
}

// ParseFormat maps a format name ("slin", "ulaw", "alaw", "opus") to a Format.
func ParseFormat(name string) (Format, bool) {
	for i, n := range formatNames {
		if n == name {
			return Format(i), true
		}
	}
	return 0, false
}
