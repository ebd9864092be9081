// Package stats tracks simulated time and operation counters for the
// kernel.
//
// Ticks are the unit of simulated time. They are advanced by the
// interrupt machinery and read by the scheduler for burst prediction
// and aging. Operation counts are exported as prometheus collectors so
// a host binary can register them if it wants them scraped; they work
// unregistered too.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Tick costs charged by the machine emulation.
const (
	UserTick   = 1  // advance of the simulated clock on a user instruction
	SystemTick = 10 // advance of the simulated clock in kernel mode
)

// Stats holds the tick counters and prometheus instrumentation. It is
// not safe for concurrent use; the kernel's interrupts-off discipline
// is the exclusion mechanism.
type Stats struct {
	totalTicks  int64
	idleTicks   int64
	systemTicks int64
	userTicks   int64

	ContextSwitches prometheus.Counter
	DiskReads       prometheus.Counter
	DiskWrites      prometheus.Counter
	FSOps           *prometheus.CounterVec
}

// New makes a zeroed Stats. The collectors are created unregistered;
// call Register to expose them.
func New() *Stats {
	return &Stats{
		ContextSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minikern",
			Name:      "context_switches_total",
			Help:      "Number of thread context switches.",
		}),
		DiskReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minikern",
			Name:      "disk_reads_total",
			Help:      "Number of sectors read from the disk.",
		}),
		DiskWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minikern",
			Name:      "disk_writes_total",
			Help:      "Number of sectors written to the disk.",
		}),
		FSOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minikern",
			Name:      "filesys_operations_total",
			Help:      "File system operations by name and outcome.",
		}, []string{"op", "outcome"}),
	}
}

// Register registers the collectors with reg.
func (s *Stats) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		s.ContextSwitches, s.DiskReads, s.DiskWrites, s.FSOps,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// TotalTicks returns the current simulated time.
func (s *Stats) TotalTicks() int64 {
	return s.totalTicks
}

// IdleTicks returns the ticks spent with no runnable thread.
func (s *Stats) IdleTicks() int64 {
	return s.idleTicks
}

// AdvanceTicks moves simulated time forward by n ticks. idle marks time
// spent without a runnable thread.
func (s *Stats) AdvanceTicks(n int64, idle bool) {
	s.totalTicks += n
	if idle {
		s.idleTicks += n
	}
}

// AdvanceSystem charges one kernel-mode timeslice.
func (s *Stats) AdvanceSystem() {
	s.totalTicks += SystemTick
	s.systemTicks += SystemTick
}

// AdvanceUser charges one user-mode timeslice.
func (s *Stats) AdvanceUser() {
	s.totalTicks += UserTick
	s.userTicks += UserTick
}

// CountFSOp records a file system operation outcome.
func (s *Stats) CountFSOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.FSOps.WithLabelValues(op, outcome).Inc()
}
