package stats

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicks(t *testing.T) {
	s := New()
	assert.EqualValues(t, 0, s.TotalTicks())
	s.AdvanceTicks(100, false)
	s.AdvanceTicks(50, true)
	assert.EqualValues(t, 150, s.TotalTicks())
	assert.EqualValues(t, 50, s.IdleTicks())

	s.AdvanceSystem()
	assert.EqualValues(t, 150+SystemTick, s.TotalTicks())
	s.AdvanceUser()
	assert.EqualValues(t, 150+SystemTick+UserTick, s.TotalTicks())
}

func TestCounters(t *testing.T) {
	s := New()
	s.DiskReads.Inc()
	s.DiskReads.Inc()
	s.ContextSwitches.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(s.DiskReads))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.ContextSwitches))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.DiskWrites))

	s.CountFSOp("create", nil)
	s.CountFSOp("create", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.FSOps.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.FSOps.WithLabelValues("create", "error")))
}

func TestRegister(t *testing.T) {
	s := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, s.Register(reg))
	// registering the same collectors twice is an error
	assert.Error(t, s.Register(reg))
}
