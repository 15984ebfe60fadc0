package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossmesh/datashare/internal/collab"
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/machine"
)

func testInput() Input {
	return Input{
		OriginDomainID: "central",
		DatabaseName:   "analytics_products",
		TableNames:     []string{"t1", "t2"},
	}
}

func runIntake(t *testing.T, catalog collab.Catalog, perms collab.Permissions, in Input) error {
	t.Helper()
	w := New(catalog, perms)
	exec := machine.NewExecutor(logger.NewNop())
	return exec.Run(context.Background(), w.Machine(), machine.NewContext("exec-1", in))
}

func TestIntakeAcceptsPendingInvitationAndCreatesLinks(t *testing.T) {
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()
	perms.Invitations = []collab.Invitation{
		{ID: "inv-1", SenderDomainID: "central", Status: collab.InvitationPending},
	}

	require.NoError(t, runIntake(t, catalog, perms, testInput()))

	assert.Equal(t, []string{"inv-1"}, perms.AcceptedIDs)

	// One link per shared table, prefixed and pointing at the source.
	require.Len(t, catalog.Links, 2)
	for _, table := range []string{"t1", "t2"} {
		link, ok := catalog.Links["rl_"+table]
		require.True(t, ok, "missing link for %s", table)
		assert.Equal(t, "central", link.SourceDomainID)
		assert.Equal(t, "analytics_products", link.SourceDatabase)
		assert.Equal(t, table, link.SourceTable)
	}
}

func TestIntakeNoInvitationsFinishesWithoutLinks(t *testing.T) {
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()

	require.NoError(t, runIntake(t, catalog, perms, testInput()))

	assert.Empty(t, perms.AcceptedIDs)
	assert.Empty(t, catalog.Links)
}

func TestIntakeNoMatchingInvitationFinishesWithoutLinks(t *testing.T) {
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()
	perms.Invitations = []collab.Invitation{
		// Wrong sender.
		{ID: "inv-1", SenderDomainID: "someone-else", Status: collab.InvitationPending},
		// Right sender, already accepted.
		{ID: "inv-2", SenderDomainID: "central", Status: collab.InvitationAccepted},
	}

	require.NoError(t, runIntake(t, catalog, perms, testInput()))

	assert.Empty(t, perms.AcceptedIDs)
	assert.Empty(t, catalog.Links)
}

func TestIntakeAcceptReturningNonAcceptedCreatesNoLinks(t *testing.T) {
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()
	perms.Invitations = []collab.Invitation{
		{ID: "inv-1", SenderDomainID: "central", Status: collab.InvitationPending},
	}
	perms.AcceptStatus = collab.InvitationRejected

	require.NoError(t, runIntake(t, catalog, perms, testInput()))

	// The accept call happened but did not yield ACCEPTED; the link
	// fan-out is skipped.
	assert.Equal(t, []string{"inv-1"}, perms.AcceptedIDs)
	assert.Empty(t, catalog.Links)
}

func TestIntakePreexistingLinkFailsExecution(t *testing.T) {
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()
	perms.Invitations = []collab.Invitation{
		{ID: "inv-1", SenderDomainID: "central", Status: collab.InvitationPending},
	}
	catalog.CreateLinkErrs = map[string]error{"rl_t2": collab.ErrAlreadyExists}

	err := runIntake(t, catalog, perms, testInput())
	require.Error(t, err)
	assert.True(t, collab.IsAlreadyExists(err))
}

func TestIntakeListFailurePropagates(t *testing.T) {
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()
	perms.ListErr = errors.New("permission store down")

	err := runIntake(t, catalog, perms, testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list invitations")
}

func TestLinkName(t *testing.T) {
	assert.Equal(t, "rl_orders", LinkName("orders"))
}
