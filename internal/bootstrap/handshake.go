package bootstrap

import (
	"context"
	"fmt"

	"github.com/crossmesh/datashare/internal/config"
	"github.com/crossmesh/datashare/internal/handshake"
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/registry"
)

// HandshakeParams names the two sides of a registration handshake.
type HandshakeParams struct {
	ControlID         string
	ControlRegion     string
	ParticipantID     string
	ParticipantRegion string
}

// RunHandshake performs a one-shot registration handshake for a domain
// pair against the registry named by the config, then exits.
func RunHandshake(configPath string, params HandshakeParams) error {
	cfg, err := config.Load[config.Config](configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.SetDefaults()

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := registry.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("registry schema: %w", err)
	}

	registrar := handshake.NewRegistrar(store, log)
	return registrar.EnsurePair(ctx,
		handshake.DomainInfo{ID: params.ControlID, Region: params.ControlRegion},
		handshake.DomainInfo{ID: params.ParticipantID, Region: params.ParticipantRegion},
	)
}
