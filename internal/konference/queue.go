package konference

import (
	"time"

	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/pkg/audio"
)

// frameQueue is a fixed capacity FIFO ring of frames.
type frameQueue struct {
	buf   []*audio.Frame
	head  int
	count int
}

func newFrameQueue(capacity int) frameQueue {
	return frameQueue{buf: make([]*audio.Frame, max(capacity, 1))}
}

func (q *frameQueue) len() int   { return q.count }
func (q *frameQueue) full() bool { return q.count == len(q.buf) }

func (q *frameQueue) push(f *audio.Frame) bool {
	if q.full() {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = f
	q.count++
	return true
}

func (q *frameQueue) pop() *audio.Frame {
	if q.count == 0 {
		return nil
	}
	f := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return f
}

// clear empties the queue and returns how many frames were discarded.
func (q *frameQueue) clear() int {
	n := q.count
	for q.count > 0 {
		q.pop()
	}
	return n
}

// queueLimits is the drop policy shared by every member of an engine.
type queueLimits struct {
	maxQueue      int
	dropThreshold int
	dropTimeLimit time.Duration
	repeatBudget  int
}

func newQueueLimits(cfg config.ConferenceConfig) queueLimits {
	l := queueLimits{
		maxQueue:      cfg.MaxQueue,
		dropThreshold: cfg.DropThreshold,
		dropTimeLimit: cfg.DropTimeLimit,
		repeatBudget:  cfg.RepeatBudget,
	}
	if l.maxQueue <= 0 {
		l.maxQueue = 100
	}
	if l.dropThreshold <= 0 || l.dropThreshold >= l.maxQueue {
		l.dropThreshold = l.maxQueue * 2 / 5
	}
	return l
}

// dropInterval is the minimum time between two incoming drops at the given
// queue depth. It shrinks linearly from dropTimeLimit at the threshold to
// zero at maxQueue, so a deeper queue sheds frames more often.
func (l queueLimits) dropInterval(depth int) time.Duration {
	if depth < l.dropThreshold {
		return -1
	}
	if depth >= l.maxQueue {
		return 0
	}
	return l.dropTimeLimit * time.Duration(l.maxQueue-depth) / time.Duration(l.maxQueue-l.dropThreshold)
}

// enqueueIncomingLocked appends a voice frame or drops it per the member's
// drop policy. The caller holds m.mu.
func (m *Member) enqueueIncomingLocked(f *audio.Frame, now time.Time) bool {
	depth := m.incoming.len()
	if interval := m.limits.dropInterval(depth); interval >= 0 && now.Sub(m.lastDrop) >= interval {
		m.lastDrop = now
		m.framesInDropped++
		m.sequentialDrops++
		return false
	}

	m.incoming.push(f)
	m.framesIn++
	m.sequentialDrops = 0
	return true
}

// dequeueIncomingLocked pops the oldest incoming frame. When the queue has
// run dry it replays the last frame up to repeatBudget times in a row.
func (m *Member) dequeueIncomingLocked() *audio.Frame {
	if f := m.incoming.pop(); f != nil {
		m.repeats = 0
		if m.limits.repeatBudget > 0 {
			m.lastIncoming = f
		}
		return f
	}

	if m.lastIncoming != nil && m.repeats < m.limits.repeatBudget {
		m.repeats++
		return m.lastIncoming.Clone()
	}
	m.lastIncoming = nil
	return nil
}

// enqueueOutgoingLocked queues f for the member's writer, stamped with the
// tick delivery time. Payloads are shared and must not be modified. When the
// queue is full the oldest frame is discarded.
func (m *Member) enqueueOutgoingLocked(f *audio.Frame, delivery time.Time) bool {
	dropped := false
	if m.outgoing.full() {
		m.outgoing.pop()
		m.framesOutDropped++
		dropped = true
	}

	out := *f
	out.Delivery = delivery
	m.outgoing.push(&out)
	m.framesOut++
	return !dropped
}

func (m *Member) dequeueOutgoing() *audio.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outgoing.pop()
}
