// Package profiling provides the optional, env-gated profiling surfaces
// of the datashare services: a localhost pprof server and Pyroscope
// continuous profiling. Both are off unless explicitly enabled, so the
// binaries carry no profiling overhead in the default configuration.
package profiling

import (
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/crossmesh/datashare/internal/logger"
)

// StartPprofServer serves the standard pprof endpoints when
// ENABLE_PROFILING=true. The server binds to localhost only; the port
// defaults to 6060 and can be overridden with PPROF_PORT.
func StartPprofServer(log logger.Logger) {
	if os.Getenv("ENABLE_PROFILING") != "true" {
		return
	}

	port := os.Getenv("PPROF_PORT")
	if port == "" {
		port = "6060"
	}
	addr := "localhost:" + port

	go func() {
		log.Info("Starting pprof server", logger.String("address", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Error("Pprof server stopped", logger.Error(err))
		}
	}()
}
