package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/registry"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func trustedStore(t *testing.T) registry.Store {
	t.Helper()
	store := registry.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertDomain(ctx, registry.DomainRegistration{
		DomainID:      "analytics",
		ChannelStream: StreamForDomain("analytics"),
	}))
	require.NoError(t, store.UpsertChannelPermission(ctx, registry.ChannelPermission{
		OwnerDomainID:  "analytics",
		SenderDomainID: "central",
	}))
	require.NoError(t, store.UpsertRoutingRule(ctx, registry.RoutingRule{
		Discriminator:  "analytics_createResourceLinks",
		TargetDomainID: "analytics",
	}))
	return store
}

func mustEnvelope(t *testing.T, source, detailType string) Envelope {
	t.Helper()
	env, err := NewEnvelope(source, detailType, CreateLinksDetail{
		DatabaseName: "analytics_products",
		TableNames:   []string{"t1"},
	})
	require.NoError(t, err)
	return env
}

func streamLen(t *testing.T, mr *miniredis.Miniredis, stream string) int {
	t.Helper()
	if !mr.Exists(stream) {
		return 0
	}
	msgs, err := mr.Stream(stream)
	require.NoError(t, err)
	return len(msgs)
}

func TestPublishRoutesByDiscriminator(t *testing.T) {
	mr, client := newTestRedis(t)
	store := trustedStore(t)
	pub := NewPublisher(client, store, logger.NewNop(), nil)

	env := mustEnvelope(t, "central", "analytics_createResourceLinks")
	require.NoError(t, pub.Publish(context.Background(), env))

	require.Equal(t, 1, streamLen(t, mr, StreamForDomain("analytics")))

	msgs, err := mr.Stream(StreamForDomain("analytics"))
	require.NoError(t, err)
	require.Len(t, msgs[0].Values, 2) // "event", payload

	var got Envelope
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values[1]), &got))
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, "central", got.Source)
}

func TestPublishUnroutedDiscriminatorIsDroppedSilently(t *testing.T) {
	mr, client := newTestRedis(t)
	store := trustedStore(t)
	pub := NewPublisher(client, store, logger.NewNop(), nil)

	env := mustEnvelope(t, "central", "unknownDetailType")
	require.NoError(t, pub.Publish(context.Background(), env), "drops are silent, not errors")
	assert.Equal(t, 0, streamLen(t, mr, StreamForDomain("analytics")))
}

func TestPublishToUnregisteredDomainIsDroppedSilently(t *testing.T) {
	mr, client := newTestRedis(t)
	store := trustedStore(t)
	pub := NewPublisher(client, store, logger.NewNop(), nil)

	env := mustEnvelope(t, "central", "ghost_createResourceLinks")
	require.NoError(t, pub.PublishTo(context.Background(), "ghost", env))
	assert.Equal(t, 0, streamLen(t, mr, StreamForDomain("ghost")))
}

func TestPublishToWithoutPermissionIsDroppedSilently(t *testing.T) {
	mr, client := newTestRedis(t)
	store := trustedStore(t)
	pub := NewPublisher(client, store, logger.NewNop(), nil)

	// "rogue" is not in analytics' sender allow-list.
	env := mustEnvelope(t, "rogue", "analytics_createResourceLinks")
	require.NoError(t, pub.PublishTo(context.Background(), "analytics", env))
	assert.Equal(t, 0, streamLen(t, mr, StreamForDomain("analytics")))
}

func TestPublishToSelfNeedsNoPermission(t *testing.T) {
	mr, client := newTestRedis(t)
	store := registry.NewMemoryStore()
	require.NoError(t, store.UpsertDomain(context.Background(), registry.DomainRegistration{
		DomainID:      "analytics",
		ChannelStream: StreamForDomain("analytics"),
	}))
	pub := NewPublisher(client, store, logger.NewNop(), nil)

	env := mustEnvelope(t, "analytics", DetailTypeExecutionSucceeded)
	require.NoError(t, pub.PublishTo(context.Background(), "analytics", env))
	assert.Equal(t, 1, streamLen(t, mr, StreamForDomain("analytics")))
}

func TestNewPublisherNilClient(t *testing.T) {
	assert.Nil(t, NewPublisher(nil, registry.NewMemoryStore(), logger.NewNop(), nil))
}
