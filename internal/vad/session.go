package vad

// Transition reports a change in a member's detected speaking state.
type Transition int

const (
	NoTransition Transition = iota
	StartedSpeaking
	StoppedSpeaking
)

// Session gates one member's incoming frames. After speech is detected the
// next IgnoreFrames silent verdicts are overridden so that word tails and
// short pauses still reach the mix.
type Session struct {
	classifier Classifier
	ignore     int
	hangover   int
}

// NewSession creates a session backed by a WebRTC detector.
func NewSession(cfg Config) (*Session, error) {
	d, err := NewDetector(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return NewSessionWith(d, cfg.IgnoreFrames), nil
}

// NewSessionWith creates a session on top of an existing classifier.
func NewSessionWith(c Classifier, ignoreFrames int) *Session {
	return &Session{
		classifier: c,
		hangover:   max(ignoreFrames, 0),
	}
}

// Process classifies a frame of little-endian linear PCM and reports
// whether it should be queued for mixing, along with any speaking-state
// transition.
func (s *Session) Process(pcm []byte) (bool, Transition) {
	if s.classifier.ClassifyPCM(pcm) == Speaking {
		tr := NoTransition
		if s.ignore == 0 {
			tr = StartedSpeaking
		}
		s.ignore = s.hangover
		return true, tr
	}

	if s.ignore > 0 {
		s.ignore--
		if s.ignore == 0 {
			return true, StoppedSpeaking
		}
		return true, NoTransition
	}
	return false, NoTransition
}
