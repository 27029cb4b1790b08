package konference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Raikerian/go-konference/internal/config"
)

const (
	maxNameLen  = 80
	maxFlagsLen = 10
	maxTypeLen  = 20
)

// Values written to the KONFERENCE channel variable.
const (
	VariableName = "KONFERENCE"

	VariableMaxUsers  = "MAXUSERS"
	VariableSpyFailed = "SPYFAILED"
	VariableKicked    = "KICKED"
)

// JoinOptions are the parsed arguments of a join request:
//
//	<conference>[,<flags>[,max_users=N][,type=T][,spy=CHANNEL]]
type JoinOptions struct {
	Conference string
	Flags      string
	MaxUsers   int
	Type       string
	Spy        string

	Mute          bool // L
	NoRecv        bool // l
	ViaTelephone  bool // a, T
	DTMFRelay     bool // R
	Moderator     bool // M
	KickConferees bool // x
	Hold          bool // H

	// Ignored lists malformed key=value arguments.
	Ignored []string
}

// ParseJoinArgs parses a comma separated join request. Unknown keys and
// malformed pairs are collected in Ignored rather than rejected.
func ParseJoinArgs(data string, defaults config.ConferenceConfig) (JoinOptions, error) {
	opts := JoinOptions{
		MaxUsers: defaults.DefaultMaxUsers,
		Type:     defaults.DefaultType,
	}

	parts := strings.Split(data, ",")
	opts.Conference = truncate(strings.TrimSpace(parts[0]), maxNameLen)
	if opts.Conference == "" {
		return JoinOptions{}, fmt.Errorf("%w: missing conference name in %q", ErrInvalidArguments, data)
	}

	if len(parts) > 1 {
		opts.Flags = truncate(parts[1], maxFlagsLen)
		opts.applyFlags()
	}

	for _, arg := range parts[min(len(parts), 2):] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			opts.Ignored = append(opts.Ignored, arg)
			continue
		}

		switch k := strings.ToLower(key); {
		case strings.HasPrefix(k, "max_users"):
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				opts.Ignored = append(opts.Ignored, arg)
				continue
			}
			opts.MaxUsers = n
		case strings.HasPrefix(k, "type"):
			opts.Type = truncate(value, maxTypeLen)
		case strings.HasPrefix(k, "spy"):
			opts.Spy = value
		default:
			opts.Ignored = append(opts.Ignored, arg)
		}
	}

	return opts, nil
}

func (o *JoinOptions) applyFlags() {
	for _, c := range o.Flags {
		switch c {
		case 'L':
			o.Mute = true
		case 'l':
			o.NoRecv = true
		case 'a', 'T':
			o.ViaTelephone = true
		case 'R':
			o.DTMFRelay = true
		case 'M':
			o.Moderator = true
		case 'x':
			o.KickConferees = true
		case 'H':
			o.Hold = true
		}
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
