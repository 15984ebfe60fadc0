// Package registry holds the cross-domain trust state: which domains are
// registered, which senders may publish into a domain's inbound channel,
// and how detail-type discriminators route to destination channels.
//
// Trust is explicit data in external storage, never baked into workflow
// code: the event transport consults this registry on every publish.
package registry

import (
	"context"
	"errors"
)

// ErrDomainNotFound is returned when a domain id is not registered.
var ErrDomainNotFound = errors.New("domain not registered")

// ErrRouteNotFound is returned when no routing rule matches a
// discriminator.
var ErrRouteNotFound = errors.New("no routing rule for discriminator")

// DomainRegistration identifies a participating domain and its inbound
// event channel. Events addressed to an unregistered domain are silently
// dropped by the transport.
type DomainRegistration struct {
	DomainID      string `db:"domain_id"      json:"domain_id"`
	Region        string `db:"region"         json:"region"`
	ChannelStream string `db:"channel_stream" json:"channel_stream"`
}

// ChannelPermission allows SenderDomainID to publish into
// OwnerDomainID's inbound channel.
type ChannelPermission struct {
	OwnerDomainID  string `db:"owner_domain_id"  json:"owner_domain_id"`
	SenderDomainID string `db:"sender_domain_id" json:"sender_domain_id"`
}

// RoutingRule forwards events whose detail type carries Discriminator to
// the target domain's channel.
type RoutingRule struct {
	Discriminator  string `db:"discriminator"    json:"discriminator"`
	TargetDomainID string `db:"target_domain_id" json:"target_domain_id"`
}

// Store persists the trust and routing state. Upserts are idempotent:
// re-registering an existing entry updates it rather than duplicating it.
type Store interface {
	UpsertDomain(ctx context.Context, reg DomainRegistration) error
	GetDomain(ctx context.Context, domainID string) (*DomainRegistration, error)
	ListDomains(ctx context.Context) ([]DomainRegistration, error)

	UpsertChannelPermission(ctx context.Context, perm ChannelPermission) error
	HasChannelPermission(ctx context.Context, ownerDomainID, senderDomainID string) (bool, error)
	ListChannelPermissions(ctx context.Context) ([]ChannelPermission, error)

	UpsertRoutingRule(ctx context.Context, rule RoutingRule) error
	ResolveRoute(ctx context.Context, discriminator string) (*RoutingRule, error)
}
