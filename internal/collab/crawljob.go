package collab

import "context"

// JobState is the lifecycle state of a metadata crawl job.
type JobState string

const (
	// JobCreated means the job exists but has not started.
	JobCreated JobState = "CREATED"
	// JobRunning means the job is crawling.
	JobRunning JobState = "RUNNING"
	// JobReady means the job finished and its results are available.
	JobReady JobState = "READY"
)

// CrawlJobs is the crawl-job runner collaborator. Jobs are ephemeral:
// the workflows delete every job they create once it is ready.
type CrawlJobs interface {
	// Create registers a crawl job for a table.
	Create(ctx context.Context, name, database, table string) error
	// Start begins a created job.
	Start(ctx context.Context, name string) error
	// Get returns the current state of a job.
	Get(ctx context.Context, name string) (JobState, error)
	// Delete removes a job.
	Delete(ctx context.Context, name string) error
}
