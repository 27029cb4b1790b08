package audio

// Buffer holds one 20 ms block of canonical linear samples. Mixing into a
// Buffer never wraps: every sum and difference is clamped to the int16 range.
type Buffer [FrameSamples]int16

// Clear zeroes the buffer.
func (b *Buffer) Clear() {
	*b = Buffer{}
}

// Mix adds samples into the buffer with saturation.
func (b *Buffer) Mix(samples []int16) {
	n := min(len(samples), FrameSamples)
	for i := range n {
		b[i] = saturateInt16(int32(b[i]) + int32(samples[i]))
	}
}

// Unmix subtracts samples from the buffer with saturation.
func (b *Buffer) Unmix(samples []int16) {
	n := min(len(samples), FrameSamples)
	for i := range n {
		b[i] = saturateInt16(int32(b[i]) - int32(samples[i]))
	}
}

// MixFrame adds a linear frame's payload into the buffer.
func (b *Buffer) MixFrame(f *Frame) {
	var tmp Buffer
	n := decodeLE(tmp[:], f.Data)
	b.Mix(tmp[:n])
}

// UnmixFrame subtracts a linear frame's payload from the buffer.
func (b *Buffer) UnmixFrame(f *Frame) {
	var tmp Buffer
	n := decodeLE(tmp[:], f.Data)
	b.Unmix(tmp[:n])
}

// Load replaces the buffer contents with a linear frame's payload.
func (b *Buffer) Load(f *Frame) {
	b.Clear()
	decodeLE(b[:], f.Data)
}

// Frame encodes the buffer as a new linear frame.
func (b *Buffer) Frame() *Frame {
	data := make([]byte, FrameBytes)
	encodeLE(data, b[:])
	return NewVoiceFrame(FormatSLinear, data, FrameSamples)
}

// Samples returns the buffer as a slice.
func (b *Buffer) Samples() []int16 {
	return b[:]
}

// SaturatingAdd returns a+b clamped to the int16 range.
func SaturatingAdd(a, b int16) int16 {
	return saturateInt16(int32(a) + int32(b))
}

// SaturatingSub returns a-b clamped to the int16 range.
func SaturatingSub(a, b int16) int16 {
	return saturateInt16(int32(a) - int32(b))
}

// saturateInt16 clamps v to the valid int16 range.
func saturateInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
