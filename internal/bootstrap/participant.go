package bootstrap

import (
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/runner"
	"github.com/crossmesh/datashare/internal/workflow/intake"
	"github.com/crossmesh/datashare/internal/workflow/refresh"
)

// RunParticipant initializes and runs a participant-domain service: it
// consumes createResourceLinks events to run the intake workflow, and
// the resulting executionSucceeded signals to run the metadata refresh
// workflow.
func RunParticipant(configPath string) error {
	a, err := setup("participant", configPath)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info("Starting participant service",
		logger.String("domain", a.cfg.Domain.ID),
		logger.String("region", a.cfg.Domain.Region),
	)

	intakeWorkflow := intake.New(a.catalog, a.permissions)
	refreshWorkflow := refresh.New(a.permissions, a.crawlJobs, a.metrics, refresh.Options{
		InitialDelay:     a.cfg.Workflow.InitialDelay,
		PollInterval:     a.cfg.Workflow.PollInterval,
		CrawlConcurrency: a.cfg.Workflow.CrawlConcurrency,
		AdminPrincipal:   a.cfg.Workflow.AdminPrincipal,
	})

	r := runner.New(a.executor, a.executions, a.metrics, a.log)
	handler := runner.NewParticipantHandler(
		r,
		a.cfg.Domain.ID,
		intakeWorkflow,
		refreshWorkflow,
		a.publisher,
		a.log,
	)

	return a.serve(handler)
}
