package clconfig_test

import (
	"testing"

	"github.com/buzzcut-s/clocks/internal/clconfig"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsToAllOff(t *testing.T) {
	d, err := clconfig.Load()
	require.NoError(t, err)
	require.False(t, d.StressGC)
	require.False(t, d.LogGC)
	require.False(t, d.TraceExecution)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CLOCKS_STRESS_GC", "true")
	t.Setenv("CLOCKS_LOG_GC", "1")
	t.Setenv("CLOCKS_TRACE_EXECUTION", "true")

	d, err := clconfig.Load()
	require.NoError(t, err)
	require.True(t, d.StressGC)
	require.True(t, d.LogGC)
	require.True(t, d.TraceExecution)
}

func TestLoadRejectsMalformedValue(t *testing.T) {
	t.Setenv("CLOCKS_STRESS_GC", "maybe")
	_, err := clconfig.Load()
	require.Error(t, err)
}

func TestEncodingMatchesBuild(t *testing.T) {
	require.Contains(t, []string{"tagged", "nanbox"}, clconfig.Encoding())
}
