// Package runner binds inbound channel events to workflow executions.
// Each domain role gets a runner that implements events.Handler: the
// control plane runs governance, a participant runs intake and refresh.
package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crossmesh/datashare/internal/events"
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/machine"
	"github.com/crossmesh/datashare/internal/metrics"
	"github.com/crossmesh/datashare/internal/workflow/governance"
	"github.com/crossmesh/datashare/internal/workflow/intake"
	"github.com/crossmesh/datashare/internal/workflow/refresh"
)

// Runner executes workflow machines and records their outcomes. Failures
// have no synchronous caller; the execution store is the only place they
// become observable.
type Runner struct {
	executor *machine.Executor
	store    *machine.ExecutionStore
	metrics  *metrics.Metrics
	log      logger.Logger
}

// New creates a runner.
func New(executor *machine.Executor, store *machine.ExecutionStore, m *metrics.Metrics, log logger.Logger) *Runner {
	return &Runner{executor: executor, store: store, metrics: m, log: log}
}

// start launches one execution in its own goroutine. The event handler
// must not block on long-running workflows: crawl polling can hold a
// branch for minutes and the consumer has other messages to process.
func (r *Runner) start(ctx context.Context, m *machine.Machine, input any, onSuccess func(context.Context, *machine.Context)) {
	exec := r.store.Begin(m.MachineName)
	r.metrics.ExecutionStarted(m.MachineName)
	r.log.Info("Starting execution",
		logger.String("workflow", m.MachineName),
		logger.String("execution_id", exec.ID),
	)

	go func() {
		ec := machine.NewContext(exec.ID, input)
		err := r.executor.Run(ctx, m, ec)
		r.store.Finish(exec.ID, err)
		if err != nil {
			r.metrics.ExecutionFinished(m.MachineName, string(machine.StatusFailed))
			r.log.Error("Execution failed",
				logger.String("workflow", m.MachineName),
				logger.String("execution_id", exec.ID),
				logger.Error(err),
			)
			return
		}
		r.metrics.ExecutionFinished(m.MachineName, string(machine.StatusSucceeded))
		r.log.Info("Execution succeeded",
			logger.String("workflow", m.MachineName),
			logger.String("execution_id", exec.ID),
		)
		if onSuccess != nil {
			onSuccess(ctx, ec)
		}
	}()
}

// GovernanceHandler triggers the governance workflow from
// createDataProduct events on the control-plane domain's channel.
type GovernanceHandler struct {
	runner   *Runner
	workflow *governance.Workflow
	log      logger.Logger
}

// NewGovernanceHandler creates the control-plane event handler.
func NewGovernanceHandler(r *Runner, w *governance.Workflow, log logger.Logger) *GovernanceHandler {
	return &GovernanceHandler{runner: r, workflow: w, log: log}
}

// HandleEvent starts a governance execution for each trigger event.
// Unrecognized detail types are acknowledged and ignored.
func (h *GovernanceHandler) HandleEvent(ctx context.Context, env events.Envelope) error {
	if env.DetailType != events.DetailTypeCreateDataProduct {
		h.log.Debug("Ignoring event", logger.String("detail_type", env.DetailType))
		return nil
	}

	var reg governance.DataProductRegistration
	if err := json.Unmarshal(env.Detail, &reg); err != nil {
		return fmt.Errorf("parse registration: %w", err)
	}

	h.runner.start(ctx, h.workflow.Machine(), reg, nil)
	return nil
}

// ParticipantHandler triggers the intake and refresh workflows on a
// participant domain's channel. A successful intake publishes an
// execution-succeeded signal back to the domain's own channel, which in
// turn triggers the refresh workflow.
type ParticipantHandler struct {
	runner    *Runner
	domainID  string
	intake    *intake.Workflow
	refresh   *refresh.Workflow
	publisher *events.Publisher
	log       logger.Logger
}

// NewParticipantHandler creates the participant event handler.
func NewParticipantHandler(r *Runner, domainID string, in *intake.Workflow, re *refresh.Workflow, pub *events.Publisher, log logger.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		runner:    r,
		domainID:  domainID,
		intake:    in,
		refresh:   re,
		publisher: pub,
		log:       log,
	}
}

// HandleEvent dispatches by detail type. Unrecognized detail types are
// acknowledged and ignored.
func (h *ParticipantHandler) HandleEvent(ctx context.Context, env events.Envelope) error {
	if recipient, ok := events.ParseCreateLinksDetailType(env.DetailType); ok {
		if recipient != h.domainID {
			h.log.Debug("Ignoring event for other domain",
				logger.String("detail_type", env.DetailType))
			return nil
		}
		return h.handleCreateLinks(ctx, env)
	}

	if env.DetailType == events.DetailTypeExecutionSucceeded {
		return h.handleExecutionSucceeded(ctx, env)
	}

	h.log.Debug("Ignoring event", logger.String("detail_type", env.DetailType))
	return nil
}

func (h *ParticipantHandler) handleCreateLinks(ctx context.Context, env events.Envelope) error {
	var detail events.CreateLinksDetail
	if err := json.Unmarshal(env.Detail, &detail); err != nil {
		return fmt.Errorf("parse create-links detail: %w", err)
	}

	input := intake.Input{
		OriginDomainID: env.Source,
		DatabaseName:   detail.DatabaseName,
		TableNames:     detail.TableNames,
	}

	h.runner.start(ctx, h.intake.Machine(), input, h.signalIntakeSucceeded)
	return nil
}

// signalIntakeSucceeded publishes the completion signal to the domain's
// own channel. The original input rides along serialized so the refresh
// workflow can re-parse it.
func (h *ParticipantHandler) signalIntakeSucceeded(ctx context.Context, ec *machine.Context) {
	payload, err := json.Marshal(ec.Input)
	if err != nil {
		h.log.Error("Failed to serialize intake input", logger.Error(err))
		return
	}

	env, err := events.NewEnvelope(h.domainID, events.DetailTypeExecutionSucceeded,
		events.ExecutionSucceededDetail{
			Workflow:    intake.WorkflowName,
			ExecutionID: ec.ExecutionID,
			Input:       string(payload),
		})
	if err != nil {
		h.log.Error("Failed to build completion signal", logger.Error(err))
		return
	}

	if err := h.publisher.PublishTo(ctx, h.domainID, env); err != nil {
		h.log.Error("Failed to publish completion signal",
			logger.String("execution_id", ec.ExecutionID),
			logger.Error(err),
		)
	}
}

func (h *ParticipantHandler) handleExecutionSucceeded(ctx context.Context, env events.Envelope) error {
	var detail events.ExecutionSucceededDetail
	if err := json.Unmarshal(env.Detail, &detail); err != nil {
		return fmt.Errorf("parse execution-succeeded detail: %w", err)
	}

	// Only intake completions feed the refresh workflow.
	if detail.Workflow != intake.WorkflowName {
		h.log.Debug("Ignoring completion signal",
			logger.String("workflow", detail.Workflow))
		return nil
	}

	h.runner.start(ctx, h.refresh.Machine(), refresh.Input{RawPayload: detail.Input}, nil)
	return nil
}
