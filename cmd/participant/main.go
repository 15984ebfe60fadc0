// Package main is the entry point for a participant-domain service.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/crossmesh/datashare/internal/bootstrap"
	"github.com/crossmesh/datashare/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", config.GetConfigPath("config.yml"), "Path to configuration file")
	flag.Parse()

	if err := bootstrap.RunParticipant(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "participant service failed: %v\n", err)
		os.Exit(1)
	}
}
