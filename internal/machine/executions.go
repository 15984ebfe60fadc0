package machine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the observable state of a workflow execution.
type Status string

const (
	// StatusRunning means the execution has started and not yet reached
	// a terminal state.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded means the execution reached a successful terminal
	// state.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means the execution aborted on an unrecovered error.
	StatusFailed Status = "FAILED"
)

// Execution is one workflow run. Failures are observable only through
// this record; event-triggered workflows have no synchronous caller.
type Execution struct {
	ID         string    `json:"id"`
	Workflow   string    `json:"workflow"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// ExecutionStore tracks in-flight and finished executions in memory.
// It is the monitoring surface for the admin API, not durable state.
type ExecutionStore struct {
	mu         sync.RWMutex
	executions map[string]*Execution
}

// NewExecutionStore creates an empty store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{executions: make(map[string]*Execution)}
}

// Begin records a new running execution and returns it.
func (s *ExecutionStore) Begin(workflow string) *Execution {
	exec := &Execution{
		ID:        uuid.New().String(),
		Workflow:  workflow,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.executions[exec.ID] = exec
	s.mu.Unlock()
	return exec
}

// Finish marks an execution terminal. A nil error means success.
func (s *ExecutionStore) Finish(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return
	}
	exec.FinishedAt = time.Now().UTC()
	if err != nil {
		exec.Status = StatusFailed
		exec.Error = err.Error()
		return
	}
	exec.Status = StatusSucceeded
}

// Get returns a copy of the execution with the given id.
func (s *ExecutionStore) Get(id string) (Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.executions[id]
	if !ok {
		return Execution{}, false
	}
	return *exec, true
}

// List returns copies of all executions, newest first.
func (s *ExecutionStore) List() []Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Execution, 0, len(s.executions))
	for _, exec := range s.executions {
		out = append(out, *exec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}
