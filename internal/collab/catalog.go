package collab

import "context"

// TableSpec describes one table of a data product.
type TableSpec struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Database describes a catalog database to create.
type Database struct {
	Name        string `json:"name"`
	LocationURI string `json:"location_uri,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"`
	ContainsPII bool   `json:"contains_pii,omitempty"`
}

// ResourceLink is a local catalog alias referencing a table owned by
// another domain.
type ResourceLink struct {
	Name           string `json:"name"`
	SourceDomainID string `json:"source_domain_id"`
	SourceDatabase string `json:"source_database"`
	SourceTable    string `json:"source_table"`
}

// Catalog is the data catalog collaborator.
//
// Creation calls are not idempotent; callers rely on deterministic naming
// plus ErrAlreadyExists handling for duplicate-delivery safety.
type Catalog interface {
	// CreateDatabase creates a catalog database.
	CreateDatabase(ctx context.Context, db Database) error
	// UpdateDatabaseOwner sets the owner display name on a database.
	UpdateDatabaseOwner(ctx context.Context, name, ownerName string) error
	// CreateTable creates a table entry in a database.
	CreateTable(ctx context.Context, database string, table TableSpec) error
	// CreateResourceLink creates a local alias to a remote table.
	CreateResourceLink(ctx context.Context, link ResourceLink) error
}
