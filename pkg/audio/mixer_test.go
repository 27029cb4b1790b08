package audio_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-konference/pkg/audio"
)

// Signal generation utilities
func sineFrame(frequency, amplitude float64) []int16 {
	out := make([]int16, audio.FrameSamples)
	for i := range out {
		t := float64(i) / audio.SampleRate
		out[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*frequency*t))
	}
	return out
}

func constantFrame(v int16) []int16 {
	out := make([]int16, audio.FrameSamples)
	for i := range out {
		out[i] = v
	}
	return out
}

func noiseFrame(seed uint32, amplitude float64) []int16 {
	out := make([]int16, audio.FrameSamples)
	for i := range out {
		seed = seed*1103515245 + 12345
		out[i] = int16((float64(seed)/float64(1<<32) - 0.5) * 2 * amplitude * 32767)
	}
	return out
}

// dominantBin returns the FFT bin with the largest magnitude.
func dominantBin(samples []int16) int {
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	spectrum := fft.FFTReal(in)
	best, bestMag := 0, 0.0
	for i := 1; i < len(spectrum)/2; i++ {
		if mag := cmplx.Abs(spectrum[i]); mag > bestMag {
			best, bestMag = i, mag
		}
	}
	return best
}

func TestSaturatingAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b int16
		want int16
	}{
		{"positive overflow", 30000, 10000, 32767},
		{"negative overflow", -30000, -10000, -32768},
		{"boundary", 32767, 1, 32767},
		{"in range", 1000, -250, 750},
		{"extremes cancel", 32767, -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, audio.SaturatingAdd(tt.a, tt.b))
		})
	}
}

func TestSaturatingSub(t *testing.T) {
	assert.Equal(t, int16(-32768), audio.SaturatingSub(-30000, 10000))
	assert.Equal(t, int16(32767), audio.SaturatingSub(30000, -10000))
	assert.Equal(t, int16(0), audio.SaturatingSub(1234, 1234))
}

func TestBuffer_MixNeverWraps(t *testing.T) {
	for a := int32(-32768); a <= 32767; a += 257 {
		for b := int32(-32768); b <= 32767; b += 263 {
			var buf audio.Buffer
			buf.Mix(constantFrame(int16(a)))
			buf.Mix(constantFrame(int16(b)))

			want := a + b
			if want > 32767 {
				want = 32767
			}
			if want < -32768 {
				want = -32768
			}
			require.Equal(t, int16(want), buf[0], "a=%d b=%d", a, b)
		}
	}
}

func TestBuffer_UnmixRoundTrip(t *testing.T) {
	speakers := [][]int16{
		noiseFrame(1, 0.2),
		noiseFrame(2, 0.2),
		noiseFrame(3, 0.2),
		sineFrame(400, 0.2),
	}

	var room audio.Buffer
	for _, s := range speakers {
		room.Mix(s)
	}

	for i := range speakers {
		personal := room
		personal.Unmix(speakers[i])

		var others audio.Buffer
		for j, s := range speakers {
			if j != i {
				others.Mix(s)
			}
		}
		assert.Equal(t, others, personal, "speaker %d", i)
	}
}

func TestBuffer_UnmixRemovesOwnVoiceSpectrally(t *testing.T) {
	low := sineFrame(400, 0.3)
	high := sineFrame(2000, 0.3)

	var room audio.Buffer
	room.Mix(low)
	room.Mix(high)

	personal := room
	personal.Unmix(high)

	// 400 Hz over a 160-sample window at 8 kHz lands in bin 8.
	assert.Equal(t, 8, dominantBin(personal.Samples()))
}

func TestBuffer_FrameRoundTrip(t *testing.T) {
	samples := sineFrame(1000, 0.5)

	var buf audio.Buffer
	buf.Mix(samples)
	f := buf.Frame()

	require.Equal(t, audio.FormatSLinear, f.Format)
	require.Len(t, f.Data, audio.FrameBytes)
	assert.Equal(t, audio.FrameSamples, f.Samples)
	assert.Equal(t, samples, audio.LEToPCMInt16(f.Data))

	var loaded audio.Buffer
	loaded.Load(f)
	assert.Equal(t, buf, loaded)

	loaded.UnmixFrame(f)
	assert.Equal(t, audio.Buffer{}, loaded)
}

func TestAdjustVolume(t *testing.T) {
	f := audio.NewLinearFrame(constantFrame(1000))
	audio.AdjustVolume(f, 2)
	assert.Equal(t, int16(2000), audio.LEToPCMInt16(f.Data)[0])

	audio.AdjustVolume(f, -4)
	assert.Equal(t, int16(500), audio.LEToPCMInt16(f.Data)[0])

	loud := audio.NewLinearFrame(constantFrame(20000))
	audio.AdjustVolume(loud, 3)
	assert.Equal(t, int16(32767), audio.LEToPCMInt16(loud.Data)[0])

	untouched := audio.NewLinearFrame(constantFrame(-77))
	audio.AdjustVolume(untouched, 0)
	assert.Equal(t, int16(-77), audio.LEToPCMInt16(untouched.Data)[0])
}

func TestFrameClone(t *testing.T) {
	f := audio.NewLinearFrame(constantFrame(42))
	c := f.Clone()
	c.Data[0] = 0
	assert.NotEqual(t, f.Data[0], c.Data[0])
	assert.Nil(t, (*audio.Frame)(nil).Clone())
}
