// Package events carries conference notifications to interested listeners.
package events

import (
	"slices"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Event names published by the conference engine.
const (
	ConferenceJoin          = "ConferenceJoin"
	ConferenceLeave         = "ConferenceLeave"
	ConferenceDTMF          = "ConferenceDTMF"
	ConferenceState         = "ConferenceState"
	ConferenceMemberMute    = "ConferenceMemberMute"
	ConferenceMemberUnmute  = "ConferenceMemberUnmute"
	ConferenceMute          = "ConferenceMute"
	ConferenceUnmute        = "ConferenceUnmute"
	ConferenceSoundComplete = "ConferenceSoundComplete"
)

// Fields is the key-value payload of an event.
type Fields map[string]string

// Int formats an integer field value.
func Int(v int) string {
	return strconv.Itoa(v)
}

// Bool formats a boolean field value as "0" or "1".
func Bool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Publisher accepts conference events. Publish must not block the caller
// for long: it is invoked from member goroutines and admin operations.
type Publisher interface {
	Publish(name string, fields Fields)
}

// ZapPublisher writes events to a zap logger.
type ZapPublisher struct {
	logger *zap.Logger
}

func NewZapPublisher(logger *zap.Logger) *ZapPublisher {
	return &ZapPublisher{logger: logger.Named("events")}
}

func (p *ZapPublisher) Publish(name string, fields Fields) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	zf := make([]zap.Field, 0, len(keys)+1)
	zf = append(zf, zap.String("event", name))
	for _, k := range keys {
		zf = append(zf, zap.String(k, fields[k]))
	}
	p.logger.Info("Conference event", zf...)
}

// Event is one recorded publication.
type Event struct {
	Name   string
	Fields Fields
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(name string, fields Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Fields: fields})
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Fanout publishes to several publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(name string, fields Fields) {
	for _, p := range f {
		p.Publish(name, fields)
	}
}

var (
	_ Publisher = (*ZapPublisher)(nil)
	_ Publisher = (*Recorder)(nil)
	_ Publisher = Fanout(nil)
)
