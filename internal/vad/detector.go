// Package vad classifies telephone audio as speech or silence so that silent
// frames can be kept out of the conference mix.
package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/Raikerian/go-konference/pkg/audio"
)

// Verdict is the outcome of classifying one frame.
type Verdict int

const (
	Silent Verdict = iota
	Speaking
)

func (v Verdict) String() string {
	if v == Speaking {
		return "speaking"
	}
	return "silent"
}

// Aggressiveness modes accepted by the WebRTC detector. Higher modes
// report silence more readily.
const (
	ModeQuality        = 0
	ModeLowBitrate     = 1
	ModeAggressive     = 2
	ModeVeryAggressive = 3

	// DefaultIgnore is how many frames are kept after speech before
	// silence is honoured.
	DefaultIgnore = 20
)

// Config tunes a Detector and the Session built on it.
type Config struct {
	Mode         int
	IgnoreFrames int
}

// DefaultConfig returns the detector settings used for telephone members.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeQuality,
		IgnoreFrames: DefaultIgnore,
	}
}

// Classifier decides whether one canonical frame of little-endian linear
// PCM holds speech.
type Classifier interface {
	ClassifyPCM(pcm []byte) Verdict
}

// Detector wraps a WebRTC voice activity detector running on 8 kHz, 20 ms
// frames. It is not safe for concurrent use.
type Detector struct {
	vad  *webrtcvad.VAD
	mode int
}

// NewDetector creates a WebRTC detector with the given aggressiveness mode.
func NewDetector(mode int) (*Detector, error) {
	if mode < ModeQuality || mode > ModeVeryAggressive {
		return nil, fmt.Errorf("vad mode %d out of range [%d, %d]", mode, ModeQuality, ModeVeryAggressive)
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create vad: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set vad mode %d: %w", mode, err)
	}
	if !v.ValidRateAndFrameLength(audio.SampleRate, audio.FrameSamples) {
		return nil, fmt.Errorf("vad rejects %d Hz frames of %d samples", audio.SampleRate, audio.FrameSamples)
	}
	return &Detector{vad: v, mode: mode}, nil
}

// Mode returns the aggressiveness mode.
func (d *Detector) Mode() int {
	return d.mode
}

// Classify returns the verdict for one frame of linear samples.
func (d *Detector) Classify(samples []int16) Verdict {
	return d.ClassifyPCM(audio.PCMInt16ToLE(samples))
}

// ClassifyPCM returns the verdict for one frame of little-endian linear
// PCM. Frames the detector cannot process count as speech so that they
// still reach the mix.
func (d *Detector) ClassifyPCM(pcm []byte) Verdict {
	if len(pcm) != audio.FrameBytes {
		return Speaking
	}
	active, err := d.vad.Process(audio.SampleRate, pcm)
	if err != nil || active {
		return Speaking
	}
	return Silent
}

var _ Classifier = (*Detector)(nil)
