package profiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossmesh/datashare/internal/logger"
)

func TestStartPyroscopeDisabledByDefault(t *testing.T) {
	t.Setenv("ENABLE_CONTINUOUS_PROFILING", "")

	p, err := StartPyroscope("governance", logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, p, "profiling must stay off without explicit opt-in")
}

func TestStartPyroscopeExplicitlyDisabled(t *testing.T) {
	t.Setenv("ENABLE_CONTINUOUS_PROFILING", "false")

	p, err := StartPyroscope("participant", logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestStopNilProfiler(t *testing.T) {
	var p *Profiler
	assert.NoError(t, p.Stop())
}

func TestStartPprofServerDisabledIsANoOp(t *testing.T) {
	t.Setenv("ENABLE_PROFILING", "")

	// Must return without binding a port.
	StartPprofServer(logger.NewNop())
}
