package kern

import (
	"sync"

	"github.com/minikern/minikern/sched"
)

// goSwitcher implements sched.Switcher over goroutines. Each kernel
// thread is a goroutine parked on a one-slot channel; a context switch
// hands the run token to the incoming thread's channel and blocks on
// the outgoing thread's own channel until the token comes back.
//
// A finishing thread hands the token off and never waits again: its
// Switch returns false, the dispatcher unwinds, and the goroutine
// exits. The successor reaps the carcass from its own dispatch path.
type goSwitcher struct {
	mu    sync.Mutex
	parks map[*sched.Thread]chan struct{}
}

func newGoSwitcher() *goSwitcher {
	return &goSwitcher{parks: make(map[*sched.Thread]chan struct{})}
}

// park returns the thread's run-token channel, creating it on first
// use. The buffer of one lets the token be posted before the receiver
// is waiting, which is the normal case for a freshly forked thread.
func (g *goSwitcher) park(t *sched.Thread) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := g.parks[t]
	if ch == nil {
		ch = make(chan struct{}, 1)
		g.parks[t] = ch
	}
	return ch
}

// drop forgets a thread's channel once it can never run again.
func (g *goSwitcher) drop(t *sched.Thread) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.parks, t)
}

// Switch implements sched.Switcher.
func (g *goSwitcher) Switch(old, next *sched.Thread) bool {
	g.park(next) <- struct{}{}
	if old.Status() == sched.Finished {
		g.drop(old)
		return false
	}
	<-g.park(old)
	return true
}
