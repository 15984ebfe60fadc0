package profiling

import (
	"fmt"
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/crossmesh/datashare/internal/logger"
)

// Profiler is a running continuous-profiling session.
type Profiler struct {
	session *pyroscope.Profiler
}

// StartPyroscope starts continuous profiling for a datashare service when
// ENABLE_CONTINUOUS_PROFILING=true. The Pyroscope server address comes
// from PYROSCOPE_SERVER_URL and the environment tag from
// PYROSCOPE_ENVIRONMENT. Returns a nil Profiler when profiling is
// disabled; a nil Profiler is safe to Stop.
func StartPyroscope(service string, log logger.Logger) (*Profiler, error) {
	if os.Getenv("ENABLE_CONTINUOUS_PROFILING") != "true" {
		return nil, nil
	}

	serverURL := os.Getenv("PYROSCOPE_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://pyroscope:4040"
	}
	environment := os.Getenv("PYROSCOPE_ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: fmt.Sprintf("datashare.%s", service),
		ServerAddress:   serverURL,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"environment": environment,
			"hostname":    hostname(),
			"go_version":  runtime.Version(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}

	log.Info("Continuous profiling started",
		logger.String("service", service),
		logger.String("server", serverURL),
		logger.String("environment", environment),
	)
	return &Profiler{session: session}, nil
}

// Stop flushes and stops the profiling session.
func (p *Profiler) Stop() error {
	if p == nil || p.session == nil {
		return nil
	}
	return p.session.Stop()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
