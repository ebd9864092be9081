package sched

import (
	"fmt"
	"io"

	"github.com/minikern/minikern/debug"
	"github.com/minikern/minikern/stats"
)

// Clock is the monotonically increasing tick counter the scheduler
// reads for all its time accounting. The stats package implements it.
type Clock interface {
	TotalTicks() int64
}

// Interrupts lets the scheduler check its entry precondition: every
// operation here must run with interrupts disabled.
type Interrupts interface {
	Disabled() bool
}

// Switcher performs the machine level context switch. Switch transfers
// control to next and returns when old is scheduled again. It returns
// false if old was finishing and will never resume, in which case the
// caller must unwind immediately (we are still on the dying stack).
type Switcher interface {
	Switch(old, next *Thread) (resumed bool)
}

// DirectSwitcher is a Switcher that transfers nothing: the caller keeps
// running and simply plays both sides of the switch. It backs the
// scheduler unit tests, where no real thread stacks exist.
type DirectSwitcher struct{}

// Switch implements Switcher.
func (DirectSwitcher) Switch(old, next *Thread) bool {
	return old.Status() != Finished
}

// queue levels
const (
	levelL1 = 1
	levelL2 = 2
	levelL3 = 3
)

// levelFor maps a priority to its ready queue level.
func levelFor(priority int) int {
	switch {
	case priority >= 100:
		return levelL1
	case priority >= 50:
		return levelL2
	default:
		return levelL3
	}
}

// Scheduler owns the three ready queues, the running thread and the
// slot for deferred destruction of a finished thread.
type Scheduler struct {
	clock    Clock
	ints     Interrupts
	switcher Switcher
	st       *stats.Stats

	l1, l2, l3 []*Thread

	running     *Thread
	toDestroy   *Thread
	onDestroyed func(*Thread) // release of per-thread resources, may be nil
}

// New makes an empty scheduler. st may be nil.
func New(clock Clock, ints Interrupts, switcher Switcher, st *stats.Stats) *Scheduler {
	return &Scheduler{
		clock:    clock,
		ints:     ints,
		switcher: switcher,
		st:       st,
	}
}

// SetOnDestroyed installs a hook called when a finished thread is
// reaped, so the owner can release resources tied to it.
func (s *Scheduler) SetOnDestroyed(fn func(*Thread)) {
	s.onDestroyed = fn
}

// Start installs t as the running thread without a context switch. The
// kernel calls it once at boot for the bootstrap thread.
func (s *Scheduler) Start(t *Thread) {
	debug.Assert(s.running == nil, "scheduler already started")
	t.SetStatus(Running)
	t.startRun = s.clock.TotalTicks()
	s.running = t
}

// Current returns the running thread.
func (s *Scheduler) Current() *Thread {
	return s.running
}

// Admit marks a thread ready and appends it to the queue its priority
// selects. Its wait accounting restarts from now.
func (s *Scheduler) Admit(t *Thread) {
	debug.Assert(s.ints.Disabled(), "Admit called with interrupts enabled")
	debug.Logf(debug.Thread, "putting thread on ready list: %v", t)
	t.SetStatus(Ready)
	switch levelFor(t.priority) {
	case levelL1:
		s.append(&s.l1, t, levelL1)
	case levelL2:
		s.append(&s.l2, t, levelL2)
	default:
		s.append(&s.l3, t, levelL3)
	}
	t.startWait = s.clock.TotalTicks()
	t.waitTicks = 0
}

// PickNext removes and returns the next thread to run, or nil if no
// thread is ready.
//
// L1 is served first with shortest predicted remaining burst, then L2
// with highest priority, then L3 in FIFO order. Both scans resolve ties
// in favour of the earliest inserted thread.
func (s *Scheduler) PickNext() *Thread {
	debug.Assert(s.ints.Disabled(), "PickNext called with interrupts enabled")
	switch {
	case len(s.l1) > 0:
		res := s.l1[0]
		for _, t := range s.l1[1:] {
			if t.remainingBurst < res.remainingBurst {
				res = t
			}
		}
		return s.remove(&s.l1, res, levelL1)
	case len(s.l2) > 0:
		res := s.l2[0]
		for _, t := range s.l2[1:] {
			if t.priority > res.priority {
				res = t
			}
		}
		return s.remove(&s.l2, res, levelL2)
	case len(s.l3) > 0:
		return s.remove(&s.l3, s.l3[0], levelL3)
	}
	return nil
}

// ShouldPreempt reports whether the running thread must give up the CPU
// at the next scheduling check.
//
// An L1 thread is preempted by a ready L1 thread with a shorter
// predicted burst. An L2 thread runs until it blocks, yields or
// finishes, unless an L1 thread is ready. An L3 thread is preempted by
// anything in a higher queue and round-robins with its peers: a ready
// L3 head that was admitted before the running thread took the CPU
// forces a rotation.
func (s *Scheduler) ShouldPreempt() bool {
	cur := s.running
	if cur == nil {
		return len(s.l1)+len(s.l2)+len(s.l3) > 0
	}
	switch levelFor(cur.priority) {
	case levelL1:
		for _, t := range s.l1 {
			if t.remainingBurst < cur.remainingBurst {
				return true
			}
		}
		return false
	case levelL2:
		return len(s.l1) > 0
	default:
		if len(s.l1) > 0 || len(s.l2) > 0 {
			return true
		}
		return len(s.l3) > 0 && s.l3[0].startWait < cur.startRun
	}
}

// Run dispatches the CPU to next. The caller has already moved the
// outgoing thread out of Running (to Ready or Blocked), or passes
// finishing to stage it for destruction once we are off its stack.
//
// The outgoing thread's executed ticks are folded into its burst
// prediction with exponential smoothing before next takes over.
func (s *Scheduler) Run(next *Thread, finishing bool) {
	debug.Assert(s.ints.Disabled(), "Run called with interrupts enabled")
	old := s.running
	debug.Assert(old != nil, "Run with no current thread")

	if finishing {
		debug.Assert(s.toDestroy == nil, "two threads finishing at once")
		s.toDestroy = old
	}

	if old.space != nil {
		old.space.SaveState()
	}

	now := s.clock.TotalTicks()
	exec := now - old.startRun
	old.lastExec = exec
	old.remainingBurst = 0.5*float64(exec) + 0.5*old.remainingBurst

	s.running = next
	next.SetStatus(Running)
	next.startRun = now
	if s.st != nil {
		s.st.ContextSwitches.Inc()
	}

	debug.Logf(debug.Thread, "switching from %v to %v", old, next)
	debug.Logf(debug.Sched, "[E] Tick[%d]: Thread [%d] is now selected for execution, thread [%d] is replaced, and it has executed [%d] ticks",
		now, next.id, old.id, exec)

	if !s.switcher.Switch(old, next) {
		// Finishing: control never comes back to old. The successor
		// reaps it from its own Run.
		return
	}

	// Back on old's stack; it has been rescheduled.
	old.startRun = s.clock.TotalTicks()
	debug.Assert(s.ints.Disabled(), "interrupts enabled on return from switch")
	debug.Logf(debug.Thread, "now in thread %v", old)

	s.ReapDestroyed()

	if old.space != nil {
		old.space.RestoreState()
	}
}

// ReapDestroyed destroys the thread staged by a finishing Run, if any.
// It must only be called once control is established on a different
// stack: from Run after the switch back, or from a freshly started
// thread before it begins.
func (s *Scheduler) ReapDestroyed() {
	if s.toDestroy == nil {
		return
	}
	t := s.toDestroy
	s.toDestroy = nil
	debug.Logf(debug.Thread, "reaping finished thread %v", t)
	if s.onDestroyed != nil {
		s.onDestroyed(t)
	}
}

// AgingTick runs one aging pass over every ready thread. The timer
// interrupt invokes it once per aging period.
//
// Each thread's wait since the last pass is added to its accumulated
// wait; every whole 1500 ticks of accumulated wait buys a priority
// boost of 10, capped at MaxPriority. A thread whose new priority
// crosses a queue boundary migrates upward. Queue membership is
// snapshotted first so a promoted thread is not visited twice.
func (s *Scheduler) AgingTick() {
	debug.Assert(s.ints.Disabled(), "AgingTick called with interrupts enabled")
	s.agePass(&s.l1, levelL1)
	s.agePass(&s.l2, levelL2)
	s.agePass(&s.l3, levelL3)
}

func (s *Scheduler) agePass(queue *[]*Thread, level int) {
	now := s.clock.TotalTicks()
	snapshot := append([]*Thread(nil), *queue...)
	for _, t := range snapshot {
		t.waitTicks += now - t.startWait
		t.startWait = now
		old := t.priority
		for t.waitTicks >= agingInterval {
			t.waitTicks -= agingInterval
			p := t.priority + agingBoost
			if p > MaxPriority {
				p = MaxPriority
			}
			t.priority = p
		}
		if t.priority != old {
			debug.Logf(debug.Sched, "[L] Tick[%d]: Thread [%d] changes its priority from [%d] to [%d]",
				now, t.id, old, t.priority)
		}
		switch {
		case level == levelL2 && t.priority >= 100:
			s.remove(&s.l2, t, levelL2)
			s.append(&s.l1, t, levelL1)
		case level == levelL3 && t.priority >= 50:
			s.remove(&s.l3, t, levelL3)
			s.append(&s.l2, t, levelL2)
		}
	}
}

func (s *Scheduler) append(queue *[]*Thread, t *Thread, level int) {
	debug.Logf(debug.Sched, "[A] Tick[%d]: Thread [%d] is inserted into queue L[%d]",
		s.clock.TotalTicks(), t.id, level)
	*queue = append(*queue, t)
}

func (s *Scheduler) remove(queue *[]*Thread, t *Thread, level int) *Thread {
	debug.Logf(debug.Sched, "[B] Tick[%d]: Thread [%d] is removed from queue L[%d]",
		s.clock.TotalTicks(), t.id, level)
	q := *queue
	for i, qt := range q {
		if qt == t {
			*queue = append(q[:i], q[i+1:]...)
			return t
		}
	}
	debug.Assert(false, "thread %v not in queue L%d", t, level)
	return nil
}

// Queue returns a copy of the given ready queue (1, 2 or 3) in
// insertion order. Tests and Print use it; callers must not mutate the
// threads without interrupts disabled.
func (s *Scheduler) Queue(level int) []*Thread {
	switch level {
	case levelL1:
		return append([]*Thread(nil), s.l1...)
	case levelL2:
		return append([]*Thread(nil), s.l2...)
	case levelL3:
		return append([]*Thread(nil), s.l3...)
	}
	return nil
}

// Print dumps the ready queues for debugging.
func (s *Scheduler) Print(w io.Writer) {
	for level, q := range [][]*Thread{s.l1, s.l2, s.l3} {
		fmt.Fprintf(w, "L%d contents:\n", level+1)
		for _, t := range q {
			fmt.Fprintf(w, "    %v\n", t)
		}
	}
}
