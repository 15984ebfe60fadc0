package runner

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossmesh/datashare/internal/collab"
	"github.com/crossmesh/datashare/internal/events"
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/machine"
	"github.com/crossmesh/datashare/internal/registry"
	"github.com/crossmesh/datashare/internal/workflow/governance"
	"github.com/crossmesh/datashare/internal/workflow/intake"
	"github.com/crossmesh/datashare/internal/workflow/refresh"
)

// instantClock makes waits return immediately.
type instantClock struct{ mu sync.Mutex }

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ctx.Err()
}

func newTestRunner(t *testing.T) (*Runner, *machine.ExecutionStore) {
	t.Helper()
	store := machine.NewExecutionStore()
	exec := machine.NewExecutor(logger.NewNop()).WithClock(&instantClock{})
	return New(exec, store, nil, logger.NewNop()), store
}

func waitForExecution(t *testing.T, store *machine.ExecutionStore, workflow string, status machine.Status) machine.Execution {
	t.Helper()
	var found machine.Execution
	require.Eventually(t, func() bool {
		for _, exec := range store.List() {
			if exec.Workflow == workflow && exec.Status == status {
				found = exec
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "no %s execution reached %s", workflow, status)
	return found
}

func newSelfTrustingPublisher(t *testing.T, domainID string) (*miniredis.Miniredis, *events.Publisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := registry.NewMemoryStore()
	require.NoError(t, store.UpsertDomain(context.Background(), registry.DomainRegistration{
		DomainID:      domainID,
		ChannelStream: events.StreamForDomain(domainID),
	}))
	return mr, events.NewPublisher(client, store, logger.NewNop(), nil)
}

func TestGovernanceHandlerRunsWorkflow(t *testing.T) {
	r, store := newTestRunner(t)
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()
	_, pub := newSelfTrustingPublisher(t, "central")

	workflow := governance.New(catalog, perms, pub, "central", "governance-admin")
	handler := NewGovernanceHandler(r, workflow, logger.NewNop())

	detail, err := json.Marshal(governance.DataProductRegistration{
		ProducerDomainID:  "retail",
		RecipientDomainID: "analytics",
		StorageLocation:   "s3://retail-products/clean",
		DatabaseName:      "products",
		Tables:            []collab.TableSpec{{Name: "t1"}},
	})
	require.NoError(t, err)

	env, err := events.NewEnvelope("retail", events.DetailTypeCreateDataProduct, nil)
	require.NoError(t, err)
	env.Detail = detail

	require.NoError(t, handler.HandleEvent(context.Background(), env))

	waitForExecution(t, store, governance.WorkflowName, machine.StatusSucceeded)
	assert.Contains(t, catalog.Databases, "analytics_products")
}

func TestGovernanceHandlerIgnoresOtherDetailTypes(t *testing.T) {
	r, store := newTestRunner(t)
	workflow := governance.New(collab.NewFakeCatalog(), collab.NewFakePermissions(), nil, "central", "admin")
	handler := NewGovernanceHandler(r, workflow, logger.NewNop())

	env, err := events.NewEnvelope("x", "somethingElse", nil)
	require.NoError(t, err)
	require.NoError(t, handler.HandleEvent(context.Background(), env))
	assert.Empty(t, store.List())
}

func TestGovernanceHandlerRejectsMalformedDetail(t *testing.T) {
	r, _ := newTestRunner(t)
	workflow := governance.New(collab.NewFakeCatalog(), collab.NewFakePermissions(), nil, "central", "admin")
	handler := NewGovernanceHandler(r, workflow, logger.NewNop())

	env, err := events.NewEnvelope("x", events.DetailTypeCreateDataProduct, nil)
	require.NoError(t, err)
	env.Detail = []byte("{not json")

	assert.Error(t, handler.HandleEvent(context.Background(), env),
		"malformed triggers must stay unacked for retry")
}

func newParticipantHandler(t *testing.T) (*ParticipantHandler, *machine.ExecutionStore, *collab.FakeCatalog, *miniredis.Miniredis) {
	t.Helper()
	r, store := newTestRunner(t)
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()
	perms.Invitations = []collab.Invitation{
		{ID: "inv-1", SenderDomainID: "central", Status: collab.InvitationPending},
	}
	jobs := collab.NewFakeCrawlJobs()
	mr, pub := newSelfTrustingPublisher(t, "analytics")

	intakeWorkflow := intake.New(catalog, perms)
	refreshWorkflow := refresh.New(perms, jobs, nil, refresh.Options{AdminPrincipal: "admin"})

	handler := NewParticipantHandler(r, "analytics", intakeWorkflow, refreshWorkflow, pub, logger.NewNop())
	return handler, store, catalog, mr
}

func TestParticipantHandlerRunsIntakeAndSignalsCompletion(t *testing.T) {
	handler, store, catalog, mr := newParticipantHandler(t)

	detail, err := json.Marshal(events.CreateLinksDetail{
		DatabaseName: "analytics_products",
		TableNames:   []string{"t1"},
	})
	require.NoError(t, err)

	env, err := events.NewEnvelope("central", events.CreateLinksDetailType("analytics"), nil)
	require.NoError(t, err)
	env.Detail = detail

	require.NoError(t, handler.HandleEvent(context.Background(), env))
	waitForExecution(t, store, intake.WorkflowName, machine.StatusSucceeded)
	assert.Contains(t, catalog.Links, "rl_t1")

	// The completion signal lands on the domain's own channel.
	stream := events.StreamForDomain("analytics")
	require.Eventually(t, func() bool {
		if !mr.Exists(stream) {
			return false
		}
		msgs, streamErr := mr.Stream(stream)
		return streamErr == nil && len(msgs) == 1
	}, 5*time.Second, 10*time.Millisecond)

	msgs, err := mr.Stream(stream)
	require.NoError(t, err)
	var signal events.Envelope
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values[1]), &signal))
	assert.Equal(t, events.DetailTypeExecutionSucceeded, signal.DetailType)

	var succeeded events.ExecutionSucceededDetail
	require.NoError(t, json.Unmarshal(signal.Detail, &succeeded))
	assert.Equal(t, intake.WorkflowName, succeeded.Workflow)
	assert.Contains(t, succeeded.Input, "analytics_products")
}

func TestParticipantHandlerIgnoresEventsForOtherDomains(t *testing.T) {
	handler, store, _, _ := newParticipantHandler(t)

	env, err := events.NewEnvelope("central", events.CreateLinksDetailType("someone-else"), nil)
	require.NoError(t, err)
	env.Detail = []byte("{}")

	require.NoError(t, handler.HandleEvent(context.Background(), env))
	assert.Empty(t, store.List())
}

func TestParticipantHandlerRunsRefreshOnIntakeCompletion(t *testing.T) {
	handler, store, _, _ := newParticipantHandler(t)

	input, err := json.Marshal(intake.Input{
		OriginDomainID: "central",
		DatabaseName:   "analytics_products",
		TableNames:     []string{"t1"},
	})
	require.NoError(t, err)

	env, err := events.NewEnvelope("analytics", events.DetailTypeExecutionSucceeded,
		events.ExecutionSucceededDetail{
			Workflow:    intake.WorkflowName,
			ExecutionID: "e1",
			Input:       string(input),
		})
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), env))
	waitForExecution(t, store, refresh.WorkflowName, machine.StatusSucceeded)
}

func TestParticipantHandlerIgnoresOtherWorkflowCompletions(t *testing.T) {
	handler, store, _, _ := newParticipantHandler(t)

	env, err := events.NewEnvelope("analytics", events.DetailTypeExecutionSucceeded,
		events.ExecutionSucceededDetail{Workflow: "something-else"})
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), env))
	assert.Empty(t, store.List())
}

func TestRunnerRecordsFailedExecutions(t *testing.T) {
	r, store := newTestRunner(t)
	catalog := collab.NewFakeCatalog()
	perms := collab.NewFakePermissions()
	perms.Invitations = []collab.Invitation{
		{ID: "inv-1", SenderDomainID: "central", Status: collab.InvitationPending},
	}
	catalog.CreateLinkErrs = map[string]error{"rl_t1": collab.ErrAlreadyExists}
	_, pub := newSelfTrustingPublisher(t, "analytics")

	handler := NewParticipantHandler(r, "analytics",
		intake.New(catalog, perms),
		refresh.New(perms, collab.NewFakeCrawlJobs(), nil, refresh.Options{}),
		pub, logger.NewNop())

	detail, err := json.Marshal(events.CreateLinksDetail{
		DatabaseName: "analytics_products",
		TableNames:   []string{"t1"},
	})
	require.NoError(t, err)
	env, err := events.NewEnvelope("central", events.CreateLinksDetailType("analytics"), nil)
	require.NoError(t, err)
	env.Detail = detail

	require.NoError(t, handler.HandleEvent(context.Background(), env))

	exec := waitForExecution(t, store, intake.WorkflowName, machine.StatusFailed)
	assert.Contains(t, exec.Error, "CreateResourceLink")
}
