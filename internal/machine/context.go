package machine

// Context threads mutable execution state through a machine run.
//
// An execution owns its Context exclusively: steps run one at a time, and
// fan-out branches each receive their own child Context, so no locking is
// needed. Branch contexts share the parent's ExecutionID and Input but
// never the parent's Values map.
type Context struct {
	// ExecutionID identifies the enclosing execution.
	ExecutionID string
	// Input is the workflow input payload. Read-only by convention.
	Input any
	// Item is the fan-out item for a branch context, nil otherwise.
	Item any
	// Values holds per-execution scratch state written by steps.
	Values map[string]any
}

// NewContext creates a root context for an execution.
func NewContext(executionID string, input any) *Context {
	return &Context{
		ExecutionID: executionID,
		Input:       input,
		Values:      make(map[string]any),
	}
}

// branch creates a child context for one fan-out item.
func (ec *Context) branch(item any) *Context {
	return &Context{
		ExecutionID: ec.ExecutionID,
		Input:       ec.Input,
		Item:        item,
		Values:      make(map[string]any),
	}
}

// Set stores a scratch value.
func (ec *Context) Set(key string, val any) {
	ec.Values[key] = val
}

// Get returns a scratch value, or nil if absent.
func (ec *Context) Get(key string) any {
	return ec.Values[key]
}

// GetString returns a scratch value as a string, or "" if absent or not
// a string.
func (ec *Context) GetString(key string) string {
	s, _ := ec.Values[key].(string)
	return s
}

// GetBool returns a scratch value as a bool, or false if absent or not
// a bool.
func (ec *Context) GetBool(key string) bool {
	b, _ := ec.Values[key].(bool)
	return b
}

// Branches returns the branch contexts recorded under a fan-out's
// ResultsKey, or nil if absent.
func (ec *Context) Branches(key string) []*Context {
	bcs, _ := ec.Values[key].([]*Context)
	return bcs
}
