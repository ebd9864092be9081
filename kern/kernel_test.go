package kern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minikern/minikern/sched"
)

func newTestKernel(t *testing.T) *Kernel {
	k, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func TestBoot(t *testing.T) {
	k := newTestKernel(t)
	assert.Equal(t, IntOn, k.Int.Level())
	main := k.CurrentThread()
	require.NotNil(t, main)
	assert.Equal(t, "main", main.Name())
	assert.Equal(t, sched.Running, main.Status())
	assert.NotNil(t, k.FS)
}

func TestForkYieldFinish(t *testing.T) {
	k := newTestKernel(t)
	var trace []string

	a := k.NewThread("A", 60)
	k.Fork(a, func() {
		trace = append(trace, "A1")
		k.Yield()
		trace = append(trace, "A2")
	})
	b := k.NewThread("B", 70)
	k.Fork(b, func() {
		trace = append(trace, "B1")
		k.Yield()
		trace = append(trace, "B2")
	})

	k.RunUntilIdle()

	// B outranks A in L2, so it runs first at every decision point
	assert.Equal(t, []string{"B1", "A1", "B2", "A2"}, trace)
	assert.Equal(t, sched.Running, k.CurrentThread().Status())
	assert.Equal(t, "main", k.CurrentThread().Name())
}

func TestFinishedThreadsAreReaped(t *testing.T) {
	k := newTestKernel(t)
	done := 0
	for i := 0; i < 5; i++ {
		th := k.NewThread("worker", 60)
		k.Fork(th, func() { done++ })
	}
	k.RunUntilIdle()
	assert.Equal(t, 5, done)
	// every queue drained
	for level := 1; level <= 3; level++ {
		assert.Empty(t, k.Sched.Queue(level))
	}
}

func TestTimerAgingPromotesAndPreempts(t *testing.T) {
	k := newTestKernel(t)

	var ranAt int64
	var ranPriority int
	c := k.NewThread("C", 30)
	k.Fork(c, func() {
		ranAt = k.Stats.TotalTicks()
		ranPriority = c.Priority()
	})

	// main (priority 0) keeps the CPU while C ages in L3: +10 after
	// 1500 ticks, +10 more after 3000, which promotes C into L2 and
	// preempts main at the next timer fire.
	k.AdvanceTicks(1500)
	assert.Equal(t, 40, c.Priority())
	assert.Equal(t, "main", k.CurrentThread().Name())

	k.AdvanceTicks(1500)
	k.RunUntilIdle()
	assert.Equal(t, 50, ranPriority)
	assert.EqualValues(t, 3000, ranAt)
}

func TestYieldWithNothingReadyIsANoop(t *testing.T) {
	k := newTestKernel(t)
	main := k.CurrentThread()
	k.Yield()
	assert.Same(t, main, k.CurrentThread())
	assert.Equal(t, sched.Running, main.Status())
}

func TestInterruptLevels(t *testing.T) {
	i := NewInterrupt()
	assert.True(t, i.Disabled())
	old := i.SetLevel(IntOn)
	assert.Equal(t, IntOff, old)
	assert.False(t, i.Disabled())
	assert.Equal(t, "on", i.Level().String())
}
