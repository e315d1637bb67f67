package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRun("success")
	m.ObserveRun("success")
	m.ObserveStage("verify", "completed")
	m.ObserveTool("open_account", "success", 20*time.Millisecond)
	m.SetActiveSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StagesTotal.WithLabelValues("verify", "completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("failed")
		m.ObserveStage("open", "failed")
		m.ObserveTool("verify_license", "error", time.Second)
		m.SetActiveSessions(1)
	})
}
