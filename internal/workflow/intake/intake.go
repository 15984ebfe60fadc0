// Package intake implements the participant-domain workflow that accepts
// a pending share invitation from the event's origin domain and creates
// local catalog resource-links for every shared table.
package intake

import (
	"context"
	"fmt"

	"github.com/crossmesh/datashare/internal/collab"
	"github.com/crossmesh/datashare/internal/machine"
)

// WorkflowName identifies intake executions.
const WorkflowName = "intake"

// LinkPrefix prefixes every resource-link name. Deterministic naming
// makes re-creation idempotent at the naming level.
const LinkPrefix = "rl_"

// LinkName returns the resource-link name for a shared table.
func LinkName(table string) string {
	return LinkPrefix + table
}

// Input is the intake trigger payload: the origin domain that shared the
// product and the tables it carries.
type Input struct {
	OriginDomainID string   `json:"origin_domain_id"`
	DatabaseName   string   `json:"database_name"`
	TableNames     []string `json:"table_names"`
}

// Branch context keys.
const (
	keyAccepted = "accepted"
	keyStatus   = "status"
)

// Workflow holds the intake machine and its collaborators.
type Workflow struct {
	catalog     collab.Catalog
	permissions collab.Permissions
	def         *machine.Machine
}

// New wires an intake workflow for a participant domain.
func New(catalog collab.Catalog, permissions collab.Permissions) *Workflow {
	w := &Workflow{catalog: catalog, permissions: permissions}
	w.def = w.build()
	return w
}

// Machine returns the workflow definition.
func (w *Workflow) Machine() *machine.Machine {
	return w.def
}

func (w *Workflow) build() *machine.Machine {
	invitationBranch := machine.MustNew(WorkflowName+"/invitation", "MatchInvitation",
		machine.Choice{
			StepName: "MatchInvitation",
			Decide:   w.matchInvitation,
		},
		machine.Call{
			StepName: "AcceptInvitation",
			Fn:       w.acceptInvitation,
			Next:     "Done",
		},
		machine.Pass{StepName: "Skip", Next: "Done"},
		machine.Terminal{StepName: "Done"},
	)

	linkBranch := machine.MustNew(WorkflowName+"/link", "CreateResourceLink",
		// No already-exists catch: a pre-existing link fails the
		// execution.
		machine.Call{
			StepName: "CreateResourceLink",
			Fn:       w.createResourceLink,
			Next:     "Done",
		},
		machine.Terminal{StepName: "Done"},
	)

	return machine.MustNew(WorkflowName, "ListInvitations",
		machine.Call{
			StepName: "ListInvitations",
			Fn:       w.listInvitations,
			Next:     "AnyInvitations",
		},
		machine.Choice{
			StepName: "AnyInvitations",
			Decide:   anyInvitations,
		},
		machine.FanOut{
			StepName:   "ForEachInvitation",
			Items:      invitationItems,
			Branch:     invitationBranch,
			ResultsKey: "invitationResults",
			Next:       "FirstAccepted",
		},
		machine.Choice{
			StepName: "FirstAccepted",
			Decide:   firstAccepted,
		},
		machine.FanOut{
			StepName: "ForEachTableCreateLink",
			Items:    tableItems,
			Branch:   linkBranch,
			Next:     "Finish",
		},
		machine.Terminal{StepName: "Finish"},
	)
}

func input(ec *machine.Context) (Input, error) {
	in, ok := ec.Input.(Input)
	if !ok {
		return Input{}, fmt.Errorf("unexpected input type %T", ec.Input)
	}
	return in, nil
}

func (w *Workflow) listInvitations(ctx context.Context, ec *machine.Context) error {
	invitations, err := w.permissions.ListInvitations(ctx)
	if err != nil {
		return fmt.Errorf("list invitations: %w", err)
	}
	ec.Set("invitations", invitations)
	return nil
}

func anyInvitations(ec *machine.Context) (string, error) {
	invitations, _ := ec.Get("invitations").([]collab.Invitation)
	if len(invitations) == 0 {
		return "Finish", nil
	}
	return "ForEachInvitation", nil
}

func invitationItems(ec *machine.Context) ([]any, error) {
	invitations, _ := ec.Get("invitations").([]collab.Invitation)
	items := make([]any, len(invitations))
	for i, inv := range invitations {
		items[i] = inv
	}
	return items, nil
}

// matchInvitation accepts only an invitation whose sender is the event's
// origin domain and whose status is still pending; everything else passes
// through unchanged.
func (w *Workflow) matchInvitation(ec *machine.Context) (string, error) {
	in, err := input(ec)
	if err != nil {
		return "", err
	}
	inv, ok := ec.Item.(collab.Invitation)
	if !ok {
		return "", fmt.Errorf("unexpected item type %T", ec.Item)
	}
	if inv.SenderDomainID == in.OriginDomainID && inv.Status == collab.InvitationPending {
		return "AcceptInvitation", nil
	}
	return "Skip", nil
}

func (w *Workflow) acceptInvitation(ctx context.Context, ec *machine.Context) error {
	inv, ok := ec.Item.(collab.Invitation)
	if !ok {
		return fmt.Errorf("unexpected item type %T", ec.Item)
	}
	status, err := w.permissions.AcceptInvitation(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("accept invitation %s: %w", inv.ID, err)
	}
	ec.Set(keyAccepted, true)
	ec.Set(keyStatus, string(status))
	return nil
}

// firstAccepted gates progress on the first fan-out branch's outcome
// only. This assumes at most one relevant invitation is outstanding;
// callers are responsible for that precondition.
func firstAccepted(ec *machine.Context) (string, error) {
	branches := ec.Branches("invitationResults")
	if len(branches) == 0 {
		return "Finish", nil
	}
	first := branches[0]
	if first.GetBool(keyAccepted) && first.GetString(keyStatus) == string(collab.InvitationAccepted) {
		return "ForEachTableCreateLink", nil
	}
	return "Finish", nil
}

func tableItems(ec *machine.Context) ([]any, error) {
	in, err := input(ec)
	if err != nil {
		return nil, err
	}
	items := make([]any, len(in.TableNames))
	for i, name := range in.TableNames {
		items[i] = name
	}
	return items, nil
}

func (w *Workflow) createResourceLink(ctx context.Context, ec *machine.Context) error {
	in, err := input(ec)
	if err != nil {
		return err
	}
	table, ok := ec.Item.(string)
	if !ok {
		return fmt.Errorf("unexpected item type %T", ec.Item)
	}
	return w.catalog.CreateResourceLink(ctx, collab.ResourceLink{
		Name:           LinkName(table),
		SourceDomainID: in.OriginDomainID,
		SourceDatabase: in.DatabaseName,
		SourceTable:    table,
	})
}
