package bootstrap

import (
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/runner"
	"github.com/crossmesh/datashare/internal/workflow/governance"
)

// RunGovernance initializes and runs the control-plane service: it
// consumes createDataProduct events from the domain's channel and runs
// the governance workflow for each one.
func RunGovernance(configPath string) error {
	a, err := setup("governance", configPath)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info("Starting governance service",
		logger.String("domain", a.cfg.Domain.ID),
		logger.String("region", a.cfg.Domain.Region),
	)

	workflow := governance.New(
		a.catalog,
		a.permissions,
		a.publisher,
		a.cfg.Domain.ID,
		a.cfg.Workflow.AdminPrincipal,
	)
	r := runner.New(a.executor, a.executions, a.metrics, a.log)
	handler := runner.NewGovernanceHandler(r, workflow, a.log)

	return a.serve(handler)
}
