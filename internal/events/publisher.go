package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/metrics"
	"github.com/crossmesh/datashare/internal/registry"
)

// Publisher sends envelopes to domain channels over Redis Streams.
//
// Every publish is checked against the registry: the target domain must
// be registered and the sender must hold a channel permission for it.
// Failing either check drops the event silently (the transport contract),
// observable only through the drop counter and debug logs.
type Publisher struct {
	client  *redis.Client
	store   registry.Store
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewPublisher creates a publisher. Returns nil if client is nil.
func NewPublisher(client *redis.Client, store registry.Store, log logger.Logger, m *metrics.Metrics) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, store: store, log: log, metrics: m}
}

// Publish routes an envelope by its detail-type discriminator and
// delivers it to the resolved domain's channel.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	rule, err := p.store.ResolveRoute(ctx, env.DetailType)
	if err != nil {
		if err == registry.ErrRouteNotFound {
			p.drop("no_route", env)
			return nil
		}
		return fmt.Errorf("resolve route: %w", err)
	}
	return p.PublishTo(ctx, rule.TargetDomainID, env)
}

// PublishTo delivers an envelope to a specific domain's channel. A domain
// always trusts itself; cross-domain delivery requires a channel
// permission established by the registration handshake.
func (p *Publisher) PublishTo(ctx context.Context, targetDomainID string, env Envelope) error {
	reg, err := p.store.GetDomain(ctx, targetDomainID)
	if err != nil {
		if err == registry.ErrDomainNotFound {
			p.drop("unregistered_domain", env)
			return nil
		}
		return fmt.Errorf("resolve domain: %w", err)
	}

	if env.Source != targetDomainID {
		allowed, permErr := p.store.HasChannelPermission(ctx, targetDomainID, env.Source)
		if permErr != nil {
			return fmt.Errorf("check channel permission: %w", permErr)
		}
		if !allowed {
			p.drop("no_channel_permission", env)
			return nil
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: reg.ChannelStream,
		Values: map[string]any{"event": string(payload)},
	})
	if addErr := result.Err(); addErr != nil {
		p.log.Error("Failed to publish event",
			logger.String("detail_type", env.DetailType),
			logger.String("target_domain", targetDomainID),
			logger.Error(addErr),
		)
		return fmt.Errorf("publish to stream: %w", addErr)
	}

	p.metrics.EventPublished(env.DetailType)
	p.log.Info("Published event",
		logger.String("detail_type", env.DetailType),
		logger.String("target_domain", targetDomainID),
		logger.String("stream_id", result.Val()),
	)
	return nil
}

func (p *Publisher) drop(reason string, env Envelope) {
	p.metrics.EventDropped(reason)
	p.log.Debug("Dropped event",
		logger.String("reason", reason),
		logger.String("detail_type", env.DetailType),
		logger.String("source", env.Source),
	)
}
