package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	// Second registration is a no-op.
	require.NoError(t, Register(reg))

	IncStart("alpha")
	IncStart("alpha")
	IncStop("alpha")
	ObserveUsage("alpha", 12.5, 64*1024*1024)
	SetRunningProjects(1)

	require.Equal(t, 2.0, testutil.ToFloat64(projectStarts.WithLabelValues("alpha")))
	require.Equal(t, 1.0, testutil.ToFloat64(projectStops.WithLabelValues("alpha")))
	require.Equal(t, 12.5, testutil.ToFloat64(projectCPUPercent.WithLabelValues("alpha")))
	require.Equal(t, float64(64*1024*1024), testutil.ToFloat64(projectMemoryBytes.WithLabelValues("alpha")))
	require.Equal(t, 1.0, testutil.ToFloat64(runningProjects))

	ForgetProject("alpha")
	require.Equal(t, 0.0, testutil.ToFloat64(projectStarts.WithLabelValues("alpha")))
}
