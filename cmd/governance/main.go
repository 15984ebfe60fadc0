// Package main is the entry point for the control-plane governance service.
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

	if err := bootstrap.RunGovernance(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "governance service failed: %v\n", err)
		os.Exit(1)
	}
}
