package collab

import (
	"context"
	"fmt"
	"sync"
)

// FakeCatalog is an in-memory Catalog for tests and single-process demos.
// Creation calls return ErrAlreadyExists when the name is already present,
// matching the non-idempotent behavior of the real catalog.
type FakeCatalog struct {
	mu        sync.Mutex
	Databases map[string]Database
	Owners    map[string]string
	Tables    map[string]map[string]TableSpec
	Links     map[string]ResourceLink

	// CreateTableErrs injects an error for a specific table name.
	CreateTableErrs map[string]error
	// CreateLinkErrs injects an error for a specific link name.
	CreateLinkErrs map[string]error
}

// NewFakeCatalog creates an empty fake catalog.
func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{
		Databases: make(map[string]Database),
		Owners:    make(map[string]string),
		Tables:    make(map[string]map[string]TableSpec),
		Links:     make(map[string]ResourceLink),
	}
}

// CreateDatabase creates a catalog database.
func (f *FakeCatalog) CreateDatabase(ctx context.Context, db Database) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Databases[db.Name]; ok {
		return ErrAlreadyExists
	}
	f.Databases[db.Name] = db
	return nil
}

// UpdateDatabaseOwner sets the owner display name on a database.
func (f *FakeCatalog) UpdateDatabaseOwner(ctx context.Context, name, ownerName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Databases[name]; !ok {
		return ErrNotFound
	}
	f.Owners[name] = ownerName
	return nil
}

// CreateTable creates a table entry in a database.
func (f *FakeCatalog) CreateTable(ctx context.Context, database string, table TableSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.CreateTableErrs[table.Name]; ok {
		return err
	}
	tables, ok := f.Tables[database]
	if !ok {
		tables = make(map[string]TableSpec)
		f.Tables[database] = tables
	}
	if _, dup := tables[table.Name]; dup {
		return ErrAlreadyExists
	}
	tables[table.Name] = table
	return nil
}

// CreateResourceLink creates a local alias to a remote table.
func (f *FakeCatalog) CreateResourceLink(ctx context.Context, link ResourceLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.CreateLinkErrs[link.Name]; ok {
		return err
	}
	if _, dup := f.Links[link.Name]; dup {
		return ErrAlreadyExists
	}
	f.Links[link.Name] = link
	return nil
}

// Grant records one permission grant issued to the fake store.
type Grant struct {
	Principal string
	Location  string
	Database  string
	Table     string
	All       bool
}

// FakePermissions is an in-memory Permissions for tests and demos.
type FakePermissions struct {
	mu          sync.Mutex
	Invitations []Invitation
	Locations   map[string]bool
	Grants      []Grant
	AcceptedIDs []string

	// ListErr fails ListInvitations when set.
	ListErr error
	// AcceptErr fails AcceptInvitation when set.
	AcceptErr error
	// AcceptStatus overrides the status returned by AcceptInvitation.
	// Empty means ACCEPTED.
	AcceptStatus InvitationStatus
}

// NewFakePermissions creates an empty fake permission store.
func NewFakePermissions() *FakePermissions {
	return &FakePermissions{Locations: make(map[string]bool)}
}

// RegisterLocation registers a storage location for governance.
func (f *FakePermissions) RegisterLocation(ctx context.Context, locationURI string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Locations[locationURI] {
		return ErrAlreadyExists
	}
	f.Locations[locationURI] = true
	return nil
}

// GrantLocationAccess grants a principal access to a location.
func (f *FakePermissions) GrantLocationAccess(ctx context.Context, principal, locationURI string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Grants = append(f.Grants, Grant{Principal: principal, Location: locationURI})
	return nil
}

// GrantTableAccess grants a principal standard access to a table.
func (f *FakePermissions) GrantTableAccess(ctx context.Context, principal, database, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Grants = append(f.Grants, Grant{Principal: principal, Database: database, Table: table})
	return nil
}

// GrantAllTableAccess grants a principal full access to a table.
func (f *FakePermissions) GrantAllTableAccess(ctx context.Context, principal, database, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Grants = append(f.Grants, Grant{Principal: principal, Database: database, Table: table, All: true})
	return nil
}

// ListInvitations returns the configured invitations.
func (f *FakePermissions) ListInvitations(ctx context.Context) ([]Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]Invitation, len(f.Invitations))
	copy(out, f.Invitations)
	return out, nil
}

// AcceptInvitation accepts an invitation and returns the resulting status.
func (f *FakePermissions) AcceptInvitation(ctx context.Context, id string) (InvitationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AcceptErr != nil {
		return "", f.AcceptErr
	}
	for i := range f.Invitations {
		if f.Invitations[i].ID != id {
			continue
		}
		status := f.AcceptStatus
		if status == "" {
			status = InvitationAccepted
		}
		f.Invitations[i].Status = status
		f.AcceptedIDs = append(f.AcceptedIDs, id)
		return status, nil
	}
	return "", ErrNotFound
}

// FakeCrawlJobs is an in-memory CrawlJobs for tests and demos. Job states
// are scripted per job name: each Get consumes the next state in the
// sequence, and the last state repeats once the sequence is exhausted.
type FakeCrawlJobs struct {
	mu     sync.Mutex
	States map[string][]JobState

	Created     []string
	Started     []string
	GetCalls    map[string]int
	DeleteCalls map[string]int
}

// NewFakeCrawlJobs creates an empty fake crawl-job runner.
func NewFakeCrawlJobs() *FakeCrawlJobs {
	return &FakeCrawlJobs{
		States:      make(map[string][]JobState),
		GetCalls:    make(map[string]int),
		DeleteCalls: make(map[string]int),
	}
}

// Script sets the sequence of states Get reports for a job.
func (f *FakeCrawlJobs) Script(name string, states ...JobState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States[name] = states
}

// Create registers a crawl job for a table.
func (f *FakeCrawlJobs) Create(ctx context.Context, name, database, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.Created {
		if existing == name {
			return ErrAlreadyExists
		}
	}
	f.Created = append(f.Created, name)
	if _, scripted := f.States[name]; !scripted {
		f.States[name] = []JobState{JobReady}
	}
	return nil
}

// Start begins a created job.
func (f *FakeCrawlJobs) Start(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Started = append(f.Started, name)
	return nil
}

// Get returns the next scripted state for a job.
func (f *FakeCrawlJobs) Get(ctx context.Context, name string) (JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	states, ok := f.States[name]
	if !ok {
		return "", fmt.Errorf("job %s: %w", name, ErrNotFound)
	}
	f.GetCalls[name]++
	if len(states) > 1 {
		f.States[name] = states[1:]
	}
	return states[0], nil
}

// Delete removes a job.
func (f *FakeCrawlJobs) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.States[name]; !ok {
		return fmt.Errorf("job %s: %w", name, ErrNotFound)
	}
	f.DeleteCalls[name]++
	delete(f.States, name)
	return nil
}
