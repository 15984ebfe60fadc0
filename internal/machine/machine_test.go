package machine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, ec *Context) error { return nil }

func TestNewRejectsUndeclaredTarget(t *testing.T) {
	_, err := New("m", "A",
		Call{StepName: "A", Fn: noop, Next: "Missing"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared state "Missing"`)
}

func TestNewRejectsUndeclaredCatchTarget(t *testing.T) {
	_, err := New("m", "A",
		Call{StepName: "A", Fn: noop, Next: "Done",
			Catch: []Catch{{Matches: func(error) bool { return true }, Next: "Missing"}}},
		Terminal{StepName: "Done"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared state "Missing"`)
}

func TestNewRejectsMissingStart(t *testing.T) {
	_, err := New("m", "Nope", Terminal{StepName: "Done"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `start state "Nope"`)
}

func TestNewRejectsDuplicateState(t *testing.T) {
	_, err := New("m", "Done",
		Terminal{StepName: "Done"},
		Terminal{StepName: "Done"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate state")
}

func TestNewValidatesBranchMachines(t *testing.T) {
	branch := &Machine{
		MachineName: "m/branch",
		Start:       "B",
		Steps: map[string]Step{
			"B": Call{StepName: "B", Fn: noop, Next: "Missing"},
		},
	}
	_, err := New("m", "Fan",
		FanOut{
			StepName: "Fan",
			Items:    func(ec *Context) ([]any, error) { return nil, nil },
			Branch:   branch,
			Next:     "Done",
		},
		Terminal{StepName: "Done"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch")
}

func TestMustNewPanicsOnInvalidDefinition(t *testing.T) {
	assert.Panics(t, func() {
		MustNew("m", "Missing")
	})
}
