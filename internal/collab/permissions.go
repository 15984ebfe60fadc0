package collab

import "context"

// InvitationStatus is the lifecycle state of a share invitation.
type InvitationStatus string

const (
	// InvitationPending means the invitation awaits acceptance.
	InvitationPending InvitationStatus = "PENDING"
	// InvitationAccepted means the recipient accepted the invitation.
	InvitationAccepted InvitationStatus = "ACCEPTED"
	// InvitationRejected means the recipient rejected the invitation.
	InvitationRejected InvitationStatus = "REJECTED"
)

// Invitation is a pending cross-domain grant owned by the permission
// store. This core only reads invitations and transitions PENDING to
// ACCEPTED for the ones it recognizes.
type Invitation struct {
	ID             string           `json:"id"`
	SenderDomainID string           `json:"sender_domain_id"`
	Status         InvitationStatus `json:"status"`
}

// Permissions is the permission store collaborator.
type Permissions interface {
	// RegisterLocation registers a storage location for governance.
	RegisterLocation(ctx context.Context, locationURI string) error
	// GrantLocationAccess grants a principal access to a location.
	GrantLocationAccess(ctx context.Context, principal, locationURI string) error
	// GrantTableAccess grants a principal standard access to a table.
	GrantTableAccess(ctx context.Context, principal, database, table string) error
	// GrantAllTableAccess grants a principal full access to a table.
	GrantAllTableAccess(ctx context.Context, principal, database, table string) error
	// ListInvitations returns all share invitations visible to this
	// domain, unfiltered.
	ListInvitations(ctx context.Context) ([]Invitation, error)
	// AcceptInvitation accepts an invitation and returns the resulting
	// status reported by the permission store.
	AcceptInvitation(ctx context.Context, id string) (InvitationStatus, error)
}
