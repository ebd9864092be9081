package debug

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestSetFlags(t *testing.T) {
	defer SetFlags("")
	SetFlags("tf")
	assert.True(t, Enabled(Thread))
	assert.True(t, Enabled(File))
	assert.False(t, Enabled(Sched))

	SetFlags("+")
	for _, f := range []Flag{Thread, Sched, Interrupt, File, Disk} {
		assert.True(t, Enabled(f))
	}

	SetFlags("")
	assert.False(t, Enabled(Thread))
}

func TestLogfRespectsFlags(t *testing.T) {
	defer SetFlags("")
	hook := test.NewLocal(Logger())
	defer hook.Reset()

	Logf(Disk, "quiet")
	assert.Empty(t, hook.AllEntries())

	SetFlags("d")
	Logf(Disk, "loud %d", 7)
	entries := hook.AllEntries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "loud 7", entries[0].Message)
}

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "fine") })
	assert.Panics(t, func() { Assert(false, "broken %s", "invariant") })
}
