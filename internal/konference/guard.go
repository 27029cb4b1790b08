package konference

import "sync"

// guard keeps a member alive while lookups outside its own goroutine use
// it. Its lock is a leaf: nothing else is acquired while it is held.
type guard struct {
	mu         sync.Mutex
	released   *sync.Cond
	useCount   int
	deleteFlag bool
}

func newGuard() *guard {
	g := &guard{}
	g.released = sync.NewCond(&g.mu)
	return g
}

// acquire registers a user. It fails once teardown has started.
func (g *guard) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleteFlag {
		return false
	}
	g.useCount++
	return true
}

func (g *guard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.useCount--
	if g.useCount == 0 && g.deleteFlag {
		g.released.Broadcast()
	}
}

// waitReleased marks the member for deletion and blocks until every
// acquired reference has been released.
func (g *guard) waitReleased() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteFlag = true
	for g.useCount > 0 {
		g.released.Wait()
	}
}

func (g *guard) users() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.useCount
}
