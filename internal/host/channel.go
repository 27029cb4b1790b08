// Package host defines the boundary between the conference engine and the
// telephony host's call legs.
package host

import (
	"context"
	"time"

	"github.com/Raikerian/go-konference/pkg/audio"
)

// Channel is one call leg as seen by the conference engine. ReadFrame is
// called only from the member's own goroutine; RequestDisconnect and
// SetVariable may be called from any goroutine.
type Channel interface {
	Name() string
	UniqueID() string
	CallerID() (number, name string)

	ReadFormat() audio.Format
	WriteFormat() audio.Format

	Answer(ctx context.Context) error

	// ReadFrame waits up to timeout for the next frame. It returns
	// ErrTimeout when nothing arrived and ErrHangup once the leg is gone.
	ReadFrame(ctx context.Context, timeout time.Duration) (*audio.Frame, error)
	WriteFrame(f *audio.Frame) error

	// RequestDisconnect asks the host to tear the leg down asynchronously.
	RequestDisconnect()
	DisconnectRequested() bool

	SetVariable(name, value string)

	StartMusicOnHold() error
	StopMusicOnHold() error
	MusicOnHold() bool
}

// HostError represents errors reported by host channels.
type HostError struct {
	message string
}

func NewHostError(message string) *HostError {
	return &HostError{message: message}
}

func (e *HostError) Error() string {
	return e.message
}

var (
	ErrTimeout = NewHostError("timed out waiting for frame")
	ErrHangup  = NewHostError("channel hung up")
)
