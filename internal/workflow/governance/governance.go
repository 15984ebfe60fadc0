// Package governance implements the control-plane workflow that registers
// a data product, grants cross-domain access, creates catalog entries
// idempotently, and emits a completion event to the recipient domain.
package governance

import (
	"context"
	"fmt"

	"github.com/crossmesh/datashare/internal/collab"
	"github.com/crossmesh/datashare/internal/events"
	"github.com/crossmesh/datashare/internal/machine"
)

// WorkflowName identifies governance executions.
const WorkflowName = "governance"

// DataProductRegistration is the workflow input: a data product to share
// with a recipient domain.
type DataProductRegistration struct {
	ProducerDomainID  string             `json:"producer_domain_id"`
	RecipientDomainID string             `json:"recipient_domain_id"`
	StorageLocation   string             `json:"storage_location"`
	DatabaseName      string             `json:"database_name"`
	Tables            []collab.TableSpec `json:"tables"`
	OwnerName         string             `json:"owner_name"`
	ContainsPII       bool               `json:"contains_pii"`
}

// TargetDatabase returns the catalog database the workflow creates.
// Namespacing is by recipient, not by producer.
func (r DataProductRegistration) TargetDatabase() string {
	return r.RecipientDomainID + "_" + r.DatabaseName
}

// TableNames returns the table names in input order.
func (r DataProductRegistration) TableNames() []string {
	names := make([]string, len(r.Tables))
	for i, t := range r.Tables {
		names[i] = t.Name
	}
	return names
}

// Publisher is the outbound half of the event channel.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Workflow holds the governance machine and its collaborators.
type Workflow struct {
	catalog        collab.Catalog
	permissions    collab.Permissions
	publisher      Publisher
	domainID       string
	adminPrincipal string
	def            *machine.Machine
}

// New wires a governance workflow for the control-plane domain.
// domainID is the control-plane domain id used as the event source;
// adminPrincipal is the governance administrator granted location access.
func New(catalog collab.Catalog, permissions collab.Permissions, publisher Publisher, domainID, adminPrincipal string) *Workflow {
	w := &Workflow{
		catalog:        catalog,
		permissions:    permissions,
		publisher:      publisher,
		domainID:       domainID,
		adminPrincipal: adminPrincipal,
	}
	w.def = w.build()
	return w
}

// Machine returns the workflow definition.
func (w *Workflow) Machine() *machine.Machine {
	return w.def
}

func (w *Workflow) build() *machine.Machine {
	alreadyExists := machine.Catch{Matches: collab.IsAlreadyExists, Next: "GrantAdminAccess"}

	tableBranch := machine.MustNew(WorkflowName+"/table", "CreateTable",
		machine.Call{
			StepName: "CreateTable",
			Fn:       w.createTable,
			Next:     "GrantTablePermissions",
			Catch: []machine.Catch{
				{Matches: collab.IsAlreadyExists, Next: "GrantTablePermissions"},
			},
		},
		machine.Call{
			StepName: "GrantTablePermissions",
			Fn:       w.grantTablePermissions,
			Next:     "Done",
		},
		machine.Terminal{StepName: "Done"},
	)

	return machine.MustNew(WorkflowName, "RegisterLocation",
		machine.Call{
			StepName: "RegisterLocation",
			Fn:       w.registerLocation,
			Next:     "GrantAdminAccess",
			Catch:    []machine.Catch{alreadyExists},
		},
		machine.Call{
			StepName: "GrantAdminAccess",
			Fn:       w.grantAdminAccess,
			Next:     "GrantRecipientAccess",
		},
		machine.Call{
			StepName: "GrantRecipientAccess",
			Fn:       w.grantRecipientAccess,
			Next:     "CreateDatabase",
		},
		machine.Call{
			StepName: "CreateDatabase",
			Fn:       w.createDatabase,
			Next:     "UpdateOwnerMetadata",
			// A pre-existing database skips the owner-metadata update.
			// Kept for compatibility with prior deployments; see
			// DESIGN.md for the discussion.
			Catch: []machine.Catch{
				{Matches: collab.IsAlreadyExists, Next: "ForEachTable"},
			},
		},
		machine.Call{
			StepName: "UpdateOwnerMetadata",
			Fn:       w.updateOwnerMetadata,
			Next:     "ForEachTable",
		},
		machine.FanOut{
			StepName:   "ForEachTable",
			Items:      tableItems,
			Branch:     tableBranch,
			ResultsKey: "tableResults",
			Next:       "EmitCompletionEvent",
		},
		machine.Call{
			StepName: "EmitCompletionEvent",
			Fn:       w.emitCompletionEvent,
			Next:     "Done",
		},
		machine.Terminal{StepName: "Done"},
	)
}

func input(ec *machine.Context) (DataProductRegistration, error) {
	reg, ok := ec.Input.(DataProductRegistration)
	if !ok {
		return DataProductRegistration{}, fmt.Errorf("unexpected input type %T", ec.Input)
	}
	return reg, nil
}

func tableItems(ec *machine.Context) ([]any, error) {
	reg, err := input(ec)
	if err != nil {
		return nil, err
	}
	items := make([]any, len(reg.Tables))
	for i, t := range reg.Tables {
		items[i] = t
	}
	return items, nil
}

func (w *Workflow) registerLocation(ctx context.Context, ec *machine.Context) error {
	reg, err := input(ec)
	if err != nil {
		return err
	}
	return w.permissions.RegisterLocation(ctx, reg.StorageLocation)
}

func (w *Workflow) grantAdminAccess(ctx context.Context, ec *machine.Context) error {
	reg, err := input(ec)
	if err != nil {
		return err
	}
	return w.permissions.GrantLocationAccess(ctx, w.adminPrincipal, reg.StorageLocation)
}

func (w *Workflow) grantRecipientAccess(ctx context.Context, ec *machine.Context) error {
	reg, err := input(ec)
	if err != nil {
		return err
	}
	return w.permissions.GrantLocationAccess(ctx, reg.RecipientDomainID, reg.StorageLocation)
}

func (w *Workflow) createDatabase(ctx context.Context, ec *machine.Context) error {
	reg, err := input(ec)
	if err != nil {
		return err
	}
	return w.catalog.CreateDatabase(ctx, collab.Database{
		Name:        reg.TargetDatabase(),
		LocationURI: reg.StorageLocation,
		ContainsPII: reg.ContainsPII,
	})
}

func (w *Workflow) updateOwnerMetadata(ctx context.Context, ec *machine.Context) error {
	reg, err := input(ec)
	if err != nil {
		return err
	}
	return w.catalog.UpdateDatabaseOwner(ctx, reg.TargetDatabase(), reg.OwnerName)
}

func (w *Workflow) createTable(ctx context.Context, ec *machine.Context) error {
	reg, err := input(ec)
	if err != nil {
		return err
	}
	table, ok := ec.Item.(collab.TableSpec)
	if !ok {
		return fmt.Errorf("unexpected item type %T", ec.Item)
	}
	return w.catalog.CreateTable(ctx, reg.TargetDatabase(), table)
}

func (w *Workflow) grantTablePermissions(ctx context.Context, ec *machine.Context) error {
	reg, err := input(ec)
	if err != nil {
		return err
	}
	table, ok := ec.Item.(collab.TableSpec)
	if !ok {
		return fmt.Errorf("unexpected item type %T", ec.Item)
	}
	return w.permissions.GrantTableAccess(ctx, reg.RecipientDomainID, reg.TargetDatabase(), table.Name)
}

func (w *Workflow) emitCompletionEvent(ctx context.Context, ec *machine.Context) error {
	reg, err := input(ec)
	if err != nil {
		return err
	}
	env, err := events.NewEnvelope(w.domainID,
		events.CreateLinksDetailType(reg.RecipientDomainID),
		events.CreateLinksDetail{
			DatabaseName: reg.TargetDatabase(),
			TableNames:   reg.TableNames(),
		})
	if err != nil {
		return fmt.Errorf("build completion event: %w", err)
	}
	return w.publisher.Publish(ctx, env)
}
