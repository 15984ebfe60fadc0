// Package machine implements the workflow engine used by the datashare
// services: an explicit finite-state-machine definition interpreted by a
// small execution loop.
//
// A Machine is a table of named steps. Each step is one of a closed set of
// kinds (Call, Choice, FanOut, Wait, Pass, Terminal) wired to a successor
// state by name. Recoverable errors are modeled as declared error-to-
// transition mappings on Call steps instead of exception-style control flow.
package machine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Step is one state in a machine definition.
type Step interface {
	// Name returns the state name this step is registered under.
	Name() string
}

// Catch maps a class of errors from a Call step to an alternate next state.
type Catch struct {
	// Matches reports whether the error belongs to this class.
	Matches func(error) bool
	// Next is the state to transition to when Matches returns true.
	Next string
}

// Call invokes a collaborator and transitions to Next on success.
// Errors are matched against Catch entries in order; the first match wins
// and the execution continues along that edge. An unmatched error fails
// the execution.
type Call struct {
	StepName string
	Fn       func(ctx context.Context, ec *Context) error
	Next     string
	Catch    []Catch
}

// Name returns the state name.
func (s Call) Name() string { return s.StepName }

// Choice routes to the state returned by Decide. It performs no external
// calls and cannot fail the execution except by returning an error.
type Choice struct {
	StepName string
	Decide   func(ec *Context) (string, error)
}

// Name returns the state name.
func (s Choice) Name() string { return s.StepName }

// FanOut runs Branch once per item returned by Items, concurrently.
// MaxConcurrent caps concurrent branches; zero or negative means unbounded.
// A failure in any branch fails the whole fan-out. Branch contexts are
// recorded under ResultsKey in item order regardless of completion order.
type FanOut struct {
	StepName      string
	Items         func(ec *Context) ([]any, error)
	Branch        *Machine
	MaxConcurrent int
	ResultsKey    string
	Next          string
}

// Name returns the state name.
func (s FanOut) Name() string { return s.StepName }

// Wait suspends the execution for a fixed duration, then transitions to
// Next. Waits are the only blocking steps in a machine.
type Wait struct {
	StepName string
	Duration time.Duration
	Next     string
}

// Name returns the state name.
func (s Wait) Name() string { return s.StepName }

// Pass applies an in-context transform and transitions to Next.
type Pass struct {
	StepName string
	Apply    func(ec *Context) error
	Next     string
}

// Name returns the state name.
func (s Pass) Name() string { return s.StepName }

// Terminal ends the execution. Failure marks the terminal state as a
// failed outcome.
type Terminal struct {
	StepName string
	Failure  bool
}

// Name returns the state name.
func (s Terminal) Name() string { return s.StepName }

// Machine is a named workflow definition.
type Machine struct {
	// MachineName identifies the workflow in logs and the execution store.
	MachineName string
	// Start is the name of the initial state.
	Start string
	// Steps is the state table keyed by state name.
	Steps map[string]Step
}

// New builds a machine from the given steps and validates it.
func New(name, start string, steps ...Step) (*Machine, error) {
	m := &Machine{
		MachineName: name,
		Start:       start,
		Steps:       make(map[string]Step, len(steps)),
	}
	for _, s := range steps {
		if s.Name() == "" {
			return nil, errors.New("step with empty name")
		}
		if _, dup := m.Steps[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate state %q", s.Name())
		}
		m.Steps[s.Name()] = s
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is like New but panics on an invalid definition.
// Use for machine definitions built at startup.
func MustNew(name, start string, steps ...Step) *Machine {
	m, err := New(name, start, steps...)
	if err != nil {
		panic(fmt.Sprintf("invalid machine %s: %v", name, err))
	}
	return m
}

// validate rejects transitions to undeclared states. Choice targets are
// dynamic and checked at run time.
func (m *Machine) validate() error {
	if _, ok := m.Steps[m.Start]; !ok {
		return fmt.Errorf("start state %q not declared", m.Start)
	}
	for name, step := range m.Steps {
		switch s := step.(type) {
		case Call:
			if s.Fn == nil {
				return fmt.Errorf("state %q: nil call fn", name)
			}
			if err := m.checkTarget(name, s.Next); err != nil {
				return err
			}
			for _, c := range s.Catch {
				if c.Matches == nil {
					return fmt.Errorf("state %q: catch with nil matcher", name)
				}
				if err := m.checkTarget(name, c.Next); err != nil {
					return err
				}
			}
		case Choice:
			if s.Decide == nil {
				return fmt.Errorf("state %q: nil decide fn", name)
			}
		case FanOut:
			if s.Items == nil {
				return fmt.Errorf("state %q: nil items fn", name)
			}
			if s.Branch == nil {
				return fmt.Errorf("state %q: nil branch machine", name)
			}
			if err := s.Branch.validate(); err != nil {
				return fmt.Errorf("state %q: branch: %w", name, err)
			}
			if err := m.checkTarget(name, s.Next); err != nil {
				return err
			}
		case Wait:
			if err := m.checkTarget(name, s.Next); err != nil {
				return err
			}
		case Pass:
			if err := m.checkTarget(name, s.Next); err != nil {
				return err
			}
		case Terminal:
			// No outgoing edges.
		default:
			return fmt.Errorf("state %q: unknown step kind %T", name, step)
		}
	}
	return nil
}

func (m *Machine) checkTarget(from, to string) error {
	if to == "" {
		return fmt.Errorf("state %q: empty next state", from)
	}
	if _, ok := m.Steps[to]; !ok {
		return fmt.Errorf("state %q: transition to undeclared state %q", from, to)
	}
	return nil
}
