// Package kern wires the kernel together: simulated time, the
// interrupt level, the scheduler, the disk and the file system, all
// reachable through one explicit Kernel value instead of process
// globals. Setup and teardown are bracketed by New and Close.
package kern

import (
	"runtime"

	"github.com/minikern/minikern/debug"
	"github.com/minikern/minikern/disk"
	"github.com/minikern/minikern/filesys"
	"github.com/minikern/minikern/sched"
	"github.com/minikern/minikern/stats"
)

// DefaultAgingPeriod is how often, in ticks, the timer fires the
// scheduler's aging pass.
const DefaultAgingPeriod = 100

// Options configures a kernel.
type Options struct {
	// DiskPath names the disk image file. Empty means an in-memory
	// disk, which is always freshly formatted.
	DiskPath string
	// NumSectors is the disk geometry for a new disk. Zero means
	// disk.DefaultNumSectors. Ignored when opening an existing image.
	NumSectors int
	// Format lays down a fresh file system, destroying the image's
	// previous contents.
	Format bool
	// AgingPeriod overrides DefaultAgingPeriod when positive.
	AgingPeriod int64
}

// Kernel is the explicit kernel context threaded to every operation
// that needs it.
type Kernel struct {
	Stats *stats.Stats
	Int   *Interrupt
	Sched *sched.Scheduler
	FS    *filesys.FileSystem
	Disk  disk.Disk

	sw          *goSwitcher
	agingPeriod int64
	nextID      int
	mainThread  *sched.Thread
}

// New boots a kernel: builds the device and file system per opts,
// starts the scheduler and installs the calling goroutine as the
// bootstrap thread, running with interrupts enabled.
func New(opts Options) (*Kernel, error) {
	st := stats.New()
	k := &Kernel{
		Stats:       st,
		Int:         NewInterrupt(),
		sw:          newGoSwitcher(),
		agingPeriod: opts.AgingPeriod,
	}
	if k.agingPeriod <= 0 {
		k.agingPeriod = DefaultAgingPeriod
	}
	k.Sched = sched.New(st, k.Int, k.sw, st)
	k.Sched.SetOnDestroyed(k.sw.drop)

	numSectors := opts.NumSectors
	if numSectors <= 0 {
		numSectors = disk.DefaultNumSectors
	}
	var (
		d      disk.Disk
		format bool
		err    error
	)
	if opts.DiskPath == "" {
		d = disk.NewMemDisk(numSectors, st)
		format = true
	} else if opts.Format {
		d, err = disk.CreateFileDisk(opts.DiskPath, numSectors, st)
		format = true
	} else {
		d, err = disk.OpenFileDisk(opts.DiskPath, st)
	}
	if err != nil {
		return nil, err
	}
	k.Disk = d
	if k.FS, err = filesys.New(d, st, format); err != nil {
		return nil, err
	}

	k.mainThread = sched.NewThread(0, "main", 0)
	k.nextID = 1
	k.Sched.Start(k.mainThread)
	k.Int.SetLevel(IntOn)
	return k, nil
}

// Close tears the kernel down, releasing the disk.
func (k *Kernel) Close() error {
	return k.FS.Close()
}

// CurrentThread returns the thread on the CPU.
func (k *Kernel) CurrentThread() *sched.Thread {
	return k.Sched.Current()
}

// NewThread makes a thread with a fresh id.
func (k *Kernel) NewThread(name string, priority int) *sched.Thread {
	t := sched.NewThread(k.nextID, name, priority)
	k.nextID++
	return t
}

// Fork gives t a stack of its own and admits it to the ready queues.
// The thread runs fn when first dispatched and finishes when fn
// returns.
func (k *Kernel) Fork(t *sched.Thread, fn func()) {
	ch := k.sw.park(t)
	go func() {
		<-ch
		// First dispatch: drain any destruction staged by the thread
		// we replaced, then enter fn with interrupts on.
		k.Sched.ReapDestroyed()
		k.Int.SetLevel(IntOn)
		fn()
		k.Finish()
	}()
	old := k.Int.SetLevel(IntOff)
	k.Sched.Admit(t)
	k.Int.SetLevel(old)
}

// Yield gives up the CPU if another thread is ready, re-admitting the
// caller behind it.
func (k *Kernel) Yield() {
	old := k.Int.SetLevel(IntOff)
	k.yieldLocked()
	k.Int.SetLevel(old)
}

func (k *Kernel) yieldLocked() {
	cur := k.Sched.Current()
	debug.Logf(debug.Thread, "yielding thread %v", cur)
	next := k.Sched.PickNext()
	if next != nil {
		k.Sched.Admit(cur)
		k.Sched.Run(next, false)
	}
}

// Finish ends the calling thread. Its carcass is destroyed by the
// successor, once control is off this stack. Never returns control to
// the caller's code.
func (k *Kernel) Finish() {
	k.Int.SetLevel(IntOff)
	cur := k.Sched.Current()
	debug.Logf(debug.Thread, "finishing thread %v", cur)
	cur.SetStatus(sched.Finished)
	next := k.Sched.PickNext()
	debug.Assert(next != nil, "last runnable thread finished; machine would idle forever")
	k.Sched.Run(next, true)
	// Run unwound off the dying stack; end this goroutine so nothing
	// after the call runs alongside the successor
	runtime.Goexit()
}

// AdvanceTicks moves simulated time forward, firing the timer at every
// aging period boundary. The timer runs the aging pass and preempts
// the running thread when the scheduler calls for it.
func (k *Kernel) AdvanceTicks(n int64) {
	for n > 0 {
		until := k.agingPeriod - k.Stats.TotalTicks()%k.agingPeriod
		step := until
		if n < step {
			step = n
		}
		k.Stats.AdvanceTicks(step, false)
		n -= step
		if step == until {
			k.timerFire()
		}
	}
}

// timerFire is the timer interrupt handler: one aging pass, then a
// preemption check.
func (k *Kernel) timerFire() {
	old := k.Int.SetLevel(IntOff)
	debug.Logf(debug.Interrupt, "timer fired at tick %d", k.Stats.TotalTicks())
	k.Sched.AgingTick()
	if k.Sched.ShouldPreempt() {
		k.yieldLocked()
	}
	k.Int.SetLevel(old)
}

// RunUntilIdle repeatedly yields the calling thread until no other
// thread is ready. Bootstrap code uses it to drain forked work.
func (k *Kernel) RunUntilIdle() {
	for {
		old := k.Int.SetLevel(IntOff)
		next := k.Sched.PickNext()
		if next == nil {
			k.Int.SetLevel(old)
			return
		}
		k.Sched.Admit(k.Sched.Current())
		k.Sched.Run(next, false)
		k.Int.SetLevel(old)
	}
}
