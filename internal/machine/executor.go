package machine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crossmesh/datashare/internal/logger"
)

// Clock abstracts the fixed-duration waits so tests never sleep for real.
type Clock interface {
	// Sleep blocks for the given duration or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock sleeps on the wall clock.
type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Executor interprets machine definitions. It holds no durable state;
// every execution's state lives in its Context.
type Executor struct {
	log   logger.Logger
	clock Clock
}

// NewExecutor creates an executor.
func NewExecutor(log logger.Logger) *Executor {
	return &Executor{log: log, clock: realClock{}}
}

// WithClock replaces the executor's clock. Intended for tests.
func (e *Executor) WithClock(c Clock) *Executor {
	e.clock = c
	return e
}

// Run interprets m from its start state until a terminal state or an
// unrecovered error. The returned error is nil only for a successful
// terminal state.
func (e *Executor) Run(ctx context.Context, m *Machine, ec *Context) error {
	state := m.Start
	for {
		step, ok := m.Steps[state]
		if !ok {
			return fmt.Errorf("%s: transition to undeclared state %q", m.MachineName, state)
		}

		e.log.Debug("Entering state",
			logger.String("workflow", m.MachineName),
			logger.String("execution_id", ec.ExecutionID),
			logger.String("state", state),
		)

		switch s := step.(type) {
		case Call:
			next, err := e.runCall(ctx, m, ec, s)
			if err != nil {
				return err
			}
			state = next

		case Choice:
			next, err := s.Decide(ec)
			if err != nil {
				return fmt.Errorf("%s: state %s: %w", m.MachineName, state, err)
			}
			state = next

		case FanOut:
			if err := e.runFanOut(ctx, m, ec, s); err != nil {
				return err
			}
			state = s.Next

		case Wait:
			if err := e.clock.Sleep(ctx, s.Duration); err != nil {
				return fmt.Errorf("%s: state %s: %w", m.MachineName, state, err)
			}
			state = s.Next

		case Pass:
			if s.Apply != nil {
				if err := s.Apply(ec); err != nil {
					return fmt.Errorf("%s: state %s: %w", m.MachineName, state, err)
				}
			}
			state = s.Next

		case Terminal:
			if s.Failure {
				return fmt.Errorf("%s: terminated in failure state %s", m.MachineName, state)
			}
			return nil
		}
	}
}

// runCall invokes the step function and resolves the next state, matching
// errors against the declared catch edges.
func (e *Executor) runCall(ctx context.Context, m *Machine, ec *Context, s Call) (string, error) {
	err := s.Fn(ctx, ec)
	if err == nil {
		return s.Next, nil
	}
	for _, c := range s.Catch {
		if c.Matches(err) {
			e.log.Debug("Recovered error, taking alternate edge",
				logger.String("workflow", m.MachineName),
				logger.String("execution_id", ec.ExecutionID),
				logger.String("state", s.StepName),
				logger.String("next", c.Next),
				logger.Error(err),
			)
			return c.Next, nil
		}
	}
	return "", fmt.Errorf("%s: state %s: %w", m.MachineName, s.StepName, err)
}

// runFanOut runs one branch per item with bounded concurrency. Branch
// contexts are collected in item order; the first branch error (by item
// order) fails the fan-out.
func (e *Executor) runFanOut(ctx context.Context, m *Machine, ec *Context, s FanOut) error {
	items, err := s.Items(ec)
	if err != nil {
		return fmt.Errorf("%s: state %s: %w", m.MachineName, s.StepName, err)
	}

	limit := s.MaxConcurrent
	if limit <= 0 {
		limit = len(items)
	}
	if limit == 0 {
		limit = 1
	}

	branches := make([]*Context, len(items))
	errs := make([]error, len(items))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, item any) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			bc := ec.branch(item)
			branches[i] = bc
			errs[i] = e.Run(ctx, s.Branch, bc)
		}(i, item)
	}
	wg.Wait()

	for i, branchErr := range errs {
		if branchErr != nil {
			return fmt.Errorf("%s: state %s: branch %d: %w", m.MachineName, s.StepName, i, branchErr)
		}
	}

	if s.ResultsKey != "" {
		ec.Set(s.ResultsKey, branches)
	}
	return nil
}
