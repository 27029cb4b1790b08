package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Raikerian/go-konference/pkg/audio"
)

func TestFormatNames(t *testing.T) {
	for f := audio.FormatSLinear; f < audio.FormatCount; f++ {
		parsed, ok := audio.ParseFormat(f.String())
		assert.True(t, ok)
		assert.Equal(t, f, parsed)
	}
	_, ok := audio.ParseFormat("gsm")
	assert.False(t, ok)
	assert.Equal(t, "unknown", audio.FormatCount.String())
}
