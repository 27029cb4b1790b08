package host

import (
	"context"
	"sync"
	"time"

	"github.com/Raikerian/go-konference/pkg/audio"
)

const (
	defaultInboxSize   = 64
	defaultRecordLimit = 1024
)

// Loopback is an in-memory Channel. The far end feeds it with Send and
// inspects what the conference wrote back with Written or Output.
type Loopback struct {
	name     string
	uniqueID string
	number   string
	caller   string

	readFormat  audio.Format
	writeFormat audio.Format

	inbox  chan *audio.Frame
	output chan *audio.Frame
	gone   chan struct{}

	hangupOnce sync.Once

	mu          sync.Mutex
	answered    bool
	disconnect  bool
	moh         bool
	vars        map[string]string
	written     []*audio.Frame
	recordLimit int
}

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithFormats sets the read and write formats of the leg.
func WithFormats(read, write audio.Format) LoopbackOption {
	return func(l *Loopback) {
		l.readFormat = read
		l.writeFormat = write
	}
}

// WithCallerID sets the caller id number and name.
func WithCallerID(number, name string) LoopbackOption {
	return func(l *Loopback) {
		l.number = number
		l.caller = name
	}
}

// WithUniqueID overrides the unique id, which defaults to the channel name.
func WithUniqueID(id string) LoopbackOption {
	return func(l *Loopback) { l.uniqueID = id }
}

// WithInboxSize sets how many frames Send can buffer.
func WithInboxSize(n int) LoopbackOption {
	return func(l *Loopback) { l.inbox = make(chan *audio.Frame, n) }
}

// WithOutput mirrors every written frame onto ch without blocking.
func WithOutput(ch chan *audio.Frame) LoopbackOption {
	return func(l *Loopback) { l.output = ch }
}

// WithRecordLimit bounds how many written frames are retained.
func WithRecordLimit(n int) LoopbackOption {
	return func(l *Loopback) { l.recordLimit = n }
}

// NewLoopback creates an in-memory channel named name.
func NewLoopback(name string, opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		name:        name,
		uniqueID:    name,
		number:      "unknown",
		caller:      "unknown",
		readFormat:  audio.FormatSLinear,
		writeFormat: audio.FormatSLinear,
		inbox:       make(chan *audio.Frame, defaultInboxSize),
		gone:        make(chan struct{}),
		vars:        make(map[string]string),
		recordLimit: defaultRecordLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loopback) Name() string                    { return l.name }
func (l *Loopback) UniqueID() string                { return l.uniqueID }
func (l *Loopback) CallerID() (number, name string) { return l.number, l.caller }
func (l *Loopback) ReadFormat() audio.Format        { return l.readFormat }
func (l *Loopback) WriteFormat() audio.Format       { return l.writeFormat }

func (l *Loopback) Answer(ctx context.Context) error {
	select {
	case <-l.gone:
		return ErrHangup
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	l.mu.Lock()
	l.answered = true
	l.mu.Unlock()
	return nil
}

// Answered reports whether Answer succeeded.
func (l *Loopback) Answered() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.answered
}

func (l *Loopback) ReadFrame(ctx context.Context, timeout time.Duration) (*audio.Frame, error) {
	// Pending frames are delivered before a hangup is reported.
	select {
	case f := <-l.inbox:
		return f, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-l.inbox:
		return f, nil
	case <-l.gone:
		return nil, ErrHangup
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (l *Loopback) WriteFrame(f *audio.Frame) error {
	select {
	case <-l.gone:
		return ErrHangup
	default:
	}

	l.mu.Lock()
	l.written = append(l.written, f)
	if over := len(l.written) - l.recordLimit; over > 0 {
		l.written = append(l.written[:0], l.written[over:]...)
	}
	l.mu.Unlock()

	if l.output != nil {
		select {
		case l.output <- f:
		default:
		}
	}
	return nil
}

func (l *Loopback) RequestDisconnect() {
	l.mu.Lock()
	l.disconnect = true
	l.mu.Unlock()
	l.Hangup()
}

func (l *Loopback) DisconnectRequested() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disconnect
}

func (l *Loopback) SetVariable(name, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vars[name] = value
}

// Variable returns a channel variable set by the conference.
func (l *Loopback) Variable(name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.vars[name]
	return v, ok
}

func (l *Loopback) StartMusicOnHold() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.moh = true
	return nil
}

func (l *Loopback) StopMusicOnHold() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.moh = false
	return nil
}

func (l *Loopback) MusicOnHold() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moh
}

// Send queues a frame from the far end. It reports false when the leg is
// gone or the inbox is full.
func (l *Loopback) Send(f *audio.Frame) bool {
	select {
	case <-l.gone:
		return false
	default:
	}
	select {
	case l.inbox <- f:
		return true
	default:
		return false
	}
}

// SendDTMF queues a DTMF digit from the far end.
func (l *Loopback) SendDTMF(digit rune) bool {
	return l.Send(&audio.Frame{Kind: audio.KindDTMF, Digit: digit})
}

// Hangup ends the leg from the far end.
func (l *Loopback) Hangup() {
	l.hangupOnce.Do(func() { close(l.gone) })
}

// Done is closed once the leg has hung up.
func (l *Loopback) Done() <-chan struct{} {
	return l.gone
}

// Written returns a copy of the frames written to the leg.
func (l *Loopback) Written() []*audio.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*audio.Frame, len(l.written))
	copy(out, l.written)
	return out
}

// ResetWritten discards recorded frames.
func (l *Loopback) ResetWritten() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written = nil
}

var _ Channel = (*Loopback)(nil)
