// Package refresh implements the participant-domain workflow that runs
// after a successful intake: for each newly linked table it grants local
// permission, runs a metadata crawl job to completion, and tears the job
// down.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crossmesh/datashare/internal/collab"
	"github.com/crossmesh/datashare/internal/machine"
	"github.com/crossmesh/datashare/internal/metrics"
	"github.com/crossmesh/datashare/internal/workflow/intake"
)

// WorkflowName identifies refresh executions.
const WorkflowName = "refresh"

// Input is the refresh trigger payload: the intake input serialized as a
// string, exactly as carried by the execution-succeeded signal.
type Input struct {
	RawPayload string `json:"raw_payload"`
}

// Options tunes the workflow's waits and throttles.
type Options struct {
	// InitialDelay lets catalog state propagate before the first grant.
	InitialDelay time.Duration
	// PollInterval is the fixed wait between crawl status polls.
	PollInterval time.Duration
	// CrawlConcurrency caps concurrent crawl branches. The throttle
	// protects the external crawl-job runner.
	CrawlConcurrency int
	// AdminPrincipal is granted full access to each resource-link table.
	AdminPrincipal string
}

// setDefaults fills zero values with the production defaults.
func (o *Options) setDefaults() {
	if o.InitialDelay == 0 {
		o.InitialDelay = 15 * time.Second
	}
	if o.PollInterval == 0 {
		o.PollInterval = 15 * time.Second
	}
	if o.CrawlConcurrency == 0 {
		o.CrawlConcurrency = 2
	}
}

// JobName returns the deterministic crawl job name for one table.
func JobName(executionID, database, table string) string {
	return fmt.Sprintf("%s_%s_%s", executionID, database, table)
}

// crawlItem is one fan-out branch's work: a table and the database its
// resource-link lives in.
type crawlItem struct {
	Database string
	Table    string
}

// Workflow holds the refresh machine and its collaborators.
type Workflow struct {
	permissions collab.Permissions
	jobs        collab.CrawlJobs
	metrics     *metrics.Metrics
	opts        Options
	def         *machine.Machine
}

// New wires a refresh workflow for a participant domain.
func New(permissions collab.Permissions, jobs collab.CrawlJobs, m *metrics.Metrics, opts Options) *Workflow {
	opts.setDefaults()
	w := &Workflow{permissions: permissions, jobs: jobs, metrics: m, opts: opts}
	w.def = w.build()
	return w
}

// Machine returns the workflow definition.
func (w *Workflow) Machine() *machine.Machine {
	return w.def
}

func (w *Workflow) build() *machine.Machine {
	crawlBranch := machine.MustNew(WorkflowName+"/table", "GrantAllPermissions",
		machine.Call{
			StepName: "GrantAllPermissions",
			Fn:       w.grantAllPermissions,
			Next:     "CreateCrawlJob",
		},
		machine.Call{
			StepName: "CreateCrawlJob",
			Fn:       w.createCrawlJob,
			Next:     "StartCrawlJob",
		},
		machine.Call{
			StepName: "StartCrawlJob",
			Fn:       w.startCrawlJob,
			Next:     "WaitForCrawl",
		},
		machine.Wait{
			StepName: "WaitForCrawl",
			Duration: w.opts.PollInterval,
			Next:     "GetCrawlJob",
		},
		machine.Call{
			StepName: "GetCrawlJob",
			Fn:       w.getCrawlJob,
			Next:     "CrawlReady",
		},
		// No upper bound on poll iterations: a job that never leaves
		// RUNNING blocks this branch, and the fan-out, indefinitely.
		machine.Choice{
			StepName: "CrawlReady",
			Decide:   crawlReady,
		},
		machine.Call{
			StepName: "DeleteCrawlJob",
			Fn:       w.deleteCrawlJob,
			Next:     "Done",
		},
		machine.Terminal{StepName: "Done"},
	)

	return machine.MustNew(WorkflowName, "InitialWait",
		machine.Wait{
			StepName: "InitialWait",
			Duration: w.opts.InitialDelay,
			Next:     "ParsePayload",
		},
		machine.Pass{
			StepName: "ParsePayload",
			Apply:    parsePayload,
			Next:     "ForEachTable",
		},
		machine.FanOut{
			StepName:      "ForEachTable",
			Items:         crawlItems,
			Branch:        crawlBranch,
			MaxConcurrent: w.opts.CrawlConcurrency,
			Next:          "Done",
		},
		machine.Terminal{StepName: "Done"},
	)
}

// parsePayload re-parses the intake input from its serialized form.
func parsePayload(ec *machine.Context) error {
	in, ok := ec.Input.(Input)
	if !ok {
		return fmt.Errorf("unexpected input type %T", ec.Input)
	}
	var payload intake.Input
	if err := json.Unmarshal([]byte(in.RawPayload), &payload); err != nil {
		return fmt.Errorf("parse nested payload: %w", err)
	}
	ec.Set("payload", payload)
	return nil
}

func crawlItems(ec *machine.Context) ([]any, error) {
	payload, ok := ec.Get("payload").(intake.Input)
	if !ok {
		return nil, fmt.Errorf("payload not parsed")
	}
	items := make([]any, len(payload.TableNames))
	for i, table := range payload.TableNames {
		items[i] = crawlItem{Database: payload.DatabaseName, Table: table}
	}
	return items, nil
}

func item(ec *machine.Context) (crawlItem, error) {
	it, ok := ec.Item.(crawlItem)
	if !ok {
		return crawlItem{}, fmt.Errorf("unexpected item type %T", ec.Item)
	}
	return it, nil
}

func (w *Workflow) grantAllPermissions(ctx context.Context, ec *machine.Context) error {
	it, err := item(ec)
	if err != nil {
		return err
	}
	return w.permissions.GrantAllTableAccess(ctx, w.opts.AdminPrincipal, it.Database, intake.LinkName(it.Table))
}

func (w *Workflow) createCrawlJob(ctx context.Context, ec *machine.Context) error {
	it, err := item(ec)
	if err != nil {
		return err
	}
	return w.jobs.Create(ctx, JobName(ec.ExecutionID, it.Database, it.Table), it.Database, it.Table)
}

func (w *Workflow) startCrawlJob(ctx context.Context, ec *machine.Context) error {
	it, err := item(ec)
	if err != nil {
		return err
	}
	return w.jobs.Start(ctx, JobName(ec.ExecutionID, it.Database, it.Table))
}

func (w *Workflow) getCrawlJob(ctx context.Context, ec *machine.Context) error {
	it, err := item(ec)
	if err != nil {
		return err
	}
	state, err := w.jobs.Get(ctx, JobName(ec.ExecutionID, it.Database, it.Table))
	if err != nil {
		return fmt.Errorf("get crawl job: %w", err)
	}
	w.metrics.CrawlPoll()
	ec.Set("state", state)
	return nil
}

// crawlReady treats any state other than RUNNING as terminal. The crawl
// runner reports READY on success; anything else that is not RUNNING
// means there is nothing left to wait for.
func crawlReady(ec *machine.Context) (string, error) {
	state, _ := ec.Get("state").(collab.JobState)
	if state != collab.JobRunning {
		return "DeleteCrawlJob", nil
	}
	return "WaitForCrawl", nil
}

func (w *Workflow) deleteCrawlJob(ctx context.Context, ec *machine.Context) error {
	it, err := item(ec)
	if err != nil {
		return err
	}
	return w.jobs.Delete(ctx, JobName(ec.ExecutionID, it.Database, it.Table))
}
