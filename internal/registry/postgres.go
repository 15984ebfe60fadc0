package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore is the Postgres-backed Store used in production.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if pingErr := db.PingContext(ctx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the registry tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS domain_registrations (
			domain_id      TEXT PRIMARY KEY,
			region         TEXT NOT NULL,
			channel_stream TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS channel_permissions (
			owner_domain_id  TEXT NOT NULL,
			sender_domain_id TEXT NOT NULL,
			PRIMARY KEY (owner_domain_id, sender_domain_id)
		);
		CREATE TABLE IF NOT EXISTS routing_rules (
			discriminator    TEXT PRIMARY KEY,
			target_domain_id TEXT NOT NULL
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertDomain registers or updates a domain.
func (s *PostgresStore) UpsertDomain(ctx context.Context, reg DomainRegistration) error {
	const query = `
		INSERT INTO domain_registrations (domain_id, region, channel_stream)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain_id)
		DO UPDATE SET region = EXCLUDED.region, channel_stream = EXCLUDED.channel_stream
	`
	if _, err := s.db.ExecContext(ctx, query, reg.DomainID, reg.Region, reg.ChannelStream); err != nil {
		return fmt.Errorf("upsert domain: %w", err)
	}
	return nil
}

// GetDomain returns the registration for a domain id.
func (s *PostgresStore) GetDomain(ctx context.Context, domainID string) (*DomainRegistration, error) {
	const query = `
		SELECT domain_id, region, channel_stream
		FROM domain_registrations
		WHERE domain_id = $1
	`
	var reg DomainRegistration
	err := s.db.GetContext(ctx, &reg, query, domainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query domain: %w", err)
	}
	return &reg, nil
}

// ListDomains returns all registered domains.
func (s *PostgresStore) ListDomains(ctx context.Context) ([]DomainRegistration, error) {
	const query = `
		SELECT domain_id, region, channel_stream
		FROM domain_registrations
		ORDER BY domain_id
	`
	var regs []DomainRegistration
	if err := s.db.SelectContext(ctx, &regs, query); err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	return regs, nil
}

// UpsertChannelPermission allows a sender into an owner's channel.
// Re-invocation for the same pair never creates a duplicate entry.
func (s *PostgresStore) UpsertChannelPermission(ctx context.Context, perm ChannelPermission) error {
	const query = `
		INSERT INTO channel_permissions (owner_domain_id, sender_domain_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_domain_id, sender_domain_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, perm.OwnerDomainID, perm.SenderDomainID); err != nil {
		return fmt.Errorf("upsert channel permission: %w", err)
	}
	return nil
}

// HasChannelPermission reports whether sender may publish to owner.
func (s *PostgresStore) HasChannelPermission(ctx context.Context, ownerDomainID, senderDomainID string) (bool, error) {
	const query = `
		SELECT COUNT(*) FROM channel_permissions
		WHERE owner_domain_id = $1 AND sender_domain_id = $2
	`
	var count int
	if err := s.db.GetContext(ctx, &count, query, ownerDomainID, senderDomainID); err != nil {
		return false, fmt.Errorf("query channel permission: %w", err)
	}
	return count > 0, nil
}

// ListChannelPermissions returns all permission entries.
func (s *PostgresStore) ListChannelPermissions(ctx context.Context) ([]ChannelPermission, error) {
	const query = `
		SELECT owner_domain_id, sender_domain_id
		FROM channel_permissions
		ORDER BY owner_domain_id, sender_domain_id
	`
	var perms []ChannelPermission
	if err := s.db.SelectContext(ctx, &perms, query); err != nil {
		return nil, fmt.Errorf("list channel permissions: %w", err)
	}
	return perms, nil
}

// UpsertRoutingRule creates or updates a discriminator route.
func (s *PostgresStore) UpsertRoutingRule(ctx context.Context, rule RoutingRule) error {
	const query = `
		INSERT INTO routing_rules (discriminator, target_domain_id)
		VALUES ($1, $2)
		ON CONFLICT (discriminator)
		DO UPDATE SET target_domain_id = EXCLUDED.target_domain_id
	`
	if _, err := s.db.ExecContext(ctx, query, rule.Discriminator, rule.TargetDomainID); err != nil {
		return fmt.Errorf("upsert routing rule: %w", err)
	}
	return nil
}

// ResolveRoute returns the routing rule for a discriminator.
func (s *PostgresStore) ResolveRoute(ctx context.Context, discriminator string) (*RoutingRule, error) {
	const query = `
		SELECT discriminator, target_domain_id
		FROM routing_rules
		WHERE discriminator = $1
	`
	var rule RoutingRule
	err := s.db.GetContext(ctx, &rule, query, discriminator)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query routing rule: %w", err)
	}
	return &rule, nil
}
