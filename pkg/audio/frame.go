package audio

import "time"

// Kind classifies a host frame.
type Kind uint8

const (
	KindVoice Kind = iota
	KindDTMF
	KindControl
)

// Control subclasses carried by KindControl frames.
const (
	ControlNone = iota
	ControlHangup
)

// Frame is one block of media exchanged with the host channel.
type Frame struct {
	Kind    Kind
	Format  Format
	Data    []byte
	Samples int

	// Digit is set on KindDTMF frames.
	Digit rune
	// Control is set on KindControl frames.
	Control int

	// Delivery is the scheduled playout time stamped by the mixer.
	Delivery time.Time
}

// NewVoiceFrame wraps an encoded payload of the given format.
func NewVoiceFrame(format Format, data []byte, samples int) *Frame {
	return &Frame{
		Kind:    KindVoice,
		Format:  format,
		Data:    data,
		Samples: samples,
	}
}

// NewLinearFrame builds a canonical signed-linear frame from samples.
func NewLinearFrame(samples []int16) *Frame {
	return NewVoiceFrame(FormatSLinear, PCMInt16ToLE(samples), len(samples))
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	if f.Data != nil {
		c.Data = make([]byte, len(f.Data))
		copy(c.Data, f.Data)
	}
	return &c
}

// IsHangup reports whether f signals the far end hung up.
func (f *Frame) IsHangup() bool {
	return f != nil && f.Kind == KindControl && f.Control == ControlHangup
}
