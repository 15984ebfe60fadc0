// Package main performs a one-shot registration handshake between a
// control-plane domain and a participant domain.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/crossmesh/datashare/internal/bootstrap"
	"github.com/crossmesh/datashare/internal/config"
)

func main() {
	var (
		configPath        string
		controlID         string
		controlRegion     string
		participantID     string
		participantRegion string
	)
	flag.StringVar(&configPath, "config", config.GetConfigPath("config.yml"), "Path to configuration file")
	flag.StringVar(&controlID, "control", "", "Control-plane domain id")
	flag.StringVar(&controlRegion, "control-region", "", "Control-plane domain region")
	flag.StringVar(&participantID, "participant", "", "Participant domain id")
	flag.StringVar(&participantRegion, "participant-region", "", "Participant domain region")
	flag.Parse()

	if controlID == "" || participantID == "" {
		fmt.Fprintln(os.Stderr, "both -control and -participant are required")
		flag.Usage()
		os.Exit(2)
	}

	err := bootstrap.RunHandshake(configPath, bootstrap.HandshakeParams{
		ControlID:         controlID,
		ControlRegion:     controlRegion,
		ParticipantID:     participantID,
		ParticipantRegion: participantRegion,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "handshake failed: %v\n", err)
		os.Exit(1)
	}
}
