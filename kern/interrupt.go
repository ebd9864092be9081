package kern

import (
	"github.com/minikern/minikern/debug"
)

// IntStatus is the hardware interrupt level.
type IntStatus int

// Interrupt levels.
const (
	IntOff IntStatus = iota
	IntOn
)

// String returns the level name.
func (s IntStatus) String() string {
	if s == IntOff {
		return "off"
	}
	return "on"
}

// Interrupt models the processor's interrupt enable flag. On a single
// processor, running with interrupts off is the kernel's only mutual
// exclusion mechanism; the scheduler checks it as a precondition on
// every operation.
type Interrupt struct {
	level IntStatus
}

// NewInterrupt starts with interrupts disabled, as at boot.
func NewInterrupt() *Interrupt {
	return &Interrupt{level: IntOff}
}

// SetLevel changes the interrupt level and returns the old one, so
// callers can bracket a critical section and restore what they found.
func (i *Interrupt) SetLevel(level IntStatus) IntStatus {
	old := i.level
	if old != level {
		debug.Logf(debug.Interrupt, "interrupts %v -> %v", old, level)
	}
	i.level = level
	return old
}

// Level returns the current interrupt level.
func (i *Interrupt) Level() IntStatus {
	return i.level
}

// Disabled reports whether interrupts are off. Implements
// sched.Interrupts.
func (i *Interrupt) Disabled() bool {
	return i.level == IntOff
}
