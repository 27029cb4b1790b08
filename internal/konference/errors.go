package konference

var (
	ErrConferenceNotFound = NewKonferenceError("conference not found")
	ErrMemberNotFound     = NewKonferenceError("member not found")
	ErrMaxUsers           = NewKonferenceError("conference is full")
	ErrSoundRejected      = NewKonferenceError("member cannot play sounds now")
	ErrInvalidArguments   = NewKonferenceError("invalid conference arguments")
	ErrEngineStopped      = NewKonferenceError("engine stopped")
	ErrAlreadyJoined      = NewKonferenceError("channel is already in a conference")
)

// KonferenceError is returned for conference engine failures.
type KonferenceError struct {
	message string
}

func NewKonferenceError(message string) *KonferenceError {
	return &KonferenceError{message: message}
}

func (e *KonferenceError) Error() string {
	return e.message
}
