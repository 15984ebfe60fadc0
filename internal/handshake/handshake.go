// Package handshake implements the registration handshake: the declarative
// setup step that must exist for a (control domain, participant domain)
// pair before any workflow events can flow between them.
package handshake

import (
	"context"
	"fmt"

	"github.com/crossmesh/datashare/internal/events"
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/registry"
)

// DomainInfo identifies one side of a handshake.
type DomainInfo struct {
	ID     string
	Region string
}

// Registrar performs handshakes against a registry store.
type Registrar struct {
	store registry.Store
	log   logger.Logger
}

// NewRegistrar creates a registrar.
func NewRegistrar(store registry.Store, log logger.Logger) *Registrar {
	return &Registrar{store: store, log: log}
}

// EnsurePair establishes the trust artifacts for a domain pair:
// both domains' channel registrations, a channel permission in each
// direction, and the routing rule forwarding the participant's
// createResourceLinks discriminator to its channel.
//
// Idempotent: re-invoking for the same pair updates entries in place and
// never duplicates a permission.
func (r *Registrar) EnsurePair(ctx context.Context, control, participant DomainInfo) error {
	if control.ID == "" || participant.ID == "" {
		return fmt.Errorf("both domain ids are required")
	}

	for _, d := range []DomainInfo{control, participant} {
		reg := registry.DomainRegistration{
			DomainID:      d.ID,
			Region:        d.Region,
			ChannelStream: events.StreamForDomain(d.ID),
		}
		if err := r.store.UpsertDomain(ctx, reg); err != nil {
			return fmt.Errorf("register domain %s: %w", d.ID, err)
		}
	}

	perms := []registry.ChannelPermission{
		// Control plane publishes completion events to the participant.
		{OwnerDomainID: participant.ID, SenderDomainID: control.ID},
		// Participant publishes responses back to the control plane.
		{OwnerDomainID: control.ID, SenderDomainID: participant.ID},
	}
	for _, perm := range perms {
		if err := r.store.UpsertChannelPermission(ctx, perm); err != nil {
			return fmt.Errorf("grant channel permission %s->%s: %w",
				perm.SenderDomainID, perm.OwnerDomainID, err)
		}
	}

	rules := []registry.RoutingRule{
		{
			Discriminator:  events.CreateLinksDetailType(participant.ID),
			TargetDomainID: participant.ID,
		},
		{
			Discriminator:  events.DetailTypeCreateDataProduct,
			TargetDomainID: control.ID,
		},
	}
	for _, rule := range rules {
		if err := r.store.UpsertRoutingRule(ctx, rule); err != nil {
			return fmt.Errorf("register route %s: %w", rule.Discriminator, err)
		}
	}

	r.log.Info("Registration handshake complete",
		logger.String("control_domain", control.ID),
		logger.String("participant_domain", participant.ID),
	)
	return nil
}
