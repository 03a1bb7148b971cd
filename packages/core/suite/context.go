package suite

import "time"

// State is the execution state of a Context.
type State int

const (
	StatePending State = iota
	StateRunningSetup
	StateRunningTests
	StateRunningTeardown
	StateDone
	StateFatal
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunningSetup:
		return "running-setup"
	case StateRunningTests:
		return "running-tests"
	case StateRunningTeardown:
		return "running-teardown"
	case StateDone:
		return "done"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ContextTiming records how long each phase of a context took.
type ContextTiming struct {
	Setup    time.Duration
	Tasks    time.Duration
	Teardown time.Duration
	Total    time.Duration
}

// Context is a named grouping node of the registration tree.
//
// Label and Skip are fixed at registration. Err, Timing and State are
// written by the runner while the context executes; reporters receive
// contexts by reference and must treat them as read-only.
type Context struct {
	Label string
	Skip  bool

	// Err is set only when a setup or teardown hook fails.
	Err    error
	Timing ContextTiming
	State  State

	parent   *Context
	parents  []*Context
	children []*Context

	setup    []*Task
	teardown []*Task
	before   []*Task
	after    []*Task
	tests    []*Task
	only     []*Task
}

func newContext(label string) *Context {
	return &Context{Label: label}
}

// Parent returns the owning context, nil for the root.
func (c *Context) Parent() *Context {
	return c.parent
}

// Parents returns the ancestor chain from the root to the direct parent.
func (c *Context) Parents() []*Context {
	out := make([]*Context, len(c.parents))
	copy(out, c.parents)
	return out
}

// Depth is the number of ancestors; the root has depth 0.
func (c *Context) Depth() int {
	return len(c.parents)
}

// Children returns the child contexts in registration order.
func (c *Context) Children() []*Context {
	out := make([]*Context, len(c.children))
	copy(out, c.children)
	return out
}

// Tasks returns the sequence registered for the given kind.
func (c *Context) Tasks(kind Kind) []*Task {
	var seq []*Task
	switch kind {
	case KindSetup:
		seq = c.setup
	case KindTeardown:
		seq = c.teardown
	case KindBefore:
		seq = c.before
	case KindAfter:
		seq = c.after
	case KindTest:
		seq = c.tests
	}
	out := make([]*Task, len(seq))
	copy(out, seq)
	return out
}

// Only returns the tests registered as exclusive.
func (c *Context) Only() []*Task {
	out := make([]*Task, len(c.only))
	copy(out, c.only)
	return out
}

// Selected returns the tests that run for this context: the exclusive
// sequence when it is non-empty, the plain tests otherwise.
func (c *Context) Selected() []*Task {
	if len(c.only) > 0 {
		return c.Only()
	}
	return c.Tasks(KindTest)
}

// Path returns the non-empty labels from the root down to this context.
func (c *Context) Path() []string {
	var path []string
	for _, p := range c.parents {
		if p.Label != "" {
			path = append(path, p.Label)
		}
	}
	if c.Label != "" {
		path = append(path, c.Label)
	}
	return path
}

// Walk visits c and its descendants depth-first in registration order.
// Returning false from fn prunes the subtree below that context.
func (c *Context) Walk(fn func(*Context) bool) {
	if !fn(c) {
		return
	}
	for _, child := range c.children {
		child.Walk(fn)
	}
}
