package handshake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossmesh/datashare/internal/events"
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/registry"
)

func TestEnsurePairEstablishesTrust(t *testing.T) {
	store := registry.NewMemoryStore()
	registrar := NewRegistrar(store, logger.NewNop())
	ctx := context.Background()

	err := registrar.EnsurePair(ctx,
		DomainInfo{ID: "central", Region: "eu-west-1"},
		DomainInfo{ID: "analytics", Region: "eu-west-1"},
	)
	require.NoError(t, err)

	// Both domains registered with their channel streams.
	control, err := store.GetDomain(ctx, "central")
	require.NoError(t, err)
	assert.Equal(t, events.StreamForDomain("central"), control.ChannelStream)

	participant, err := store.GetDomain(ctx, "analytics")
	require.NoError(t, err)
	assert.Equal(t, events.StreamForDomain("analytics"), participant.ChannelStream)

	// Channel permissions in both directions.
	ok, err := store.HasChannelPermission(ctx, "analytics", "central")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.HasChannelPermission(ctx, "central", "analytics")
	require.NoError(t, err)
	assert.True(t, ok)

	// Routing: the participant's intake discriminator and the governance
	// trigger both resolve.
	rule, err := store.ResolveRoute(ctx, "analytics_createResourceLinks")
	require.NoError(t, err)
	assert.Equal(t, "analytics", rule.TargetDomainID)

	rule, err = store.ResolveRoute(ctx, events.DetailTypeCreateDataProduct)
	require.NoError(t, err)
	assert.Equal(t, "central", rule.TargetDomainID)
}

func TestEnsurePairIsIdempotent(t *testing.T) {
	store := registry.NewMemoryStore()
	registrar := NewRegistrar(store, logger.NewNop())
	ctx := context.Background()

	control := DomainInfo{ID: "central", Region: "eu-west-1"}
	participant := DomainInfo{ID: "analytics", Region: "eu-west-1"}

	require.NoError(t, registrar.EnsurePair(ctx, control, participant))
	require.NoError(t, registrar.EnsurePair(ctx, control, participant))

	perms, err := store.ListChannelPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, 2, "re-running the handshake must not duplicate permissions")
}

func TestEnsurePairRequiresBothIDs(t *testing.T) {
	registrar := NewRegistrar(registry.NewMemoryStore(), logger.NewNop())
	err := registrar.EnsurePair(context.Background(),
		DomainInfo{ID: "central"}, DomainInfo{})
	require.Error(t, err)
}
