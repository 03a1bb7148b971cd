package suite

import "time"

// Kind identifies which sequence of its context a task belongs to.
type Kind int

const (
	KindTest Kind = iota
	KindSetup
	KindTeardown
	KindBefore
	KindAfter
)

func (k Kind) String() string {
	switch k {
	case KindTest:
		return "test"
	case KindSetup:
		return "setup"
	case KindTeardown:
		return "teardown"
	case KindBefore:
		return "before"
	case KindAfter:
		return "after"
	default:
		return "unknown"
	}
}

// IsHook reports whether the kind is a lifecycle hook.
func (k Kind) IsHook() bool {
	return k != KindTest
}

// TaskTiming records the time spent around and inside a task body.
// Lifecycle hooks only fill Task and Total.
type TaskTiming struct {
	Before time.Duration
	Task   time.Duration
	After  time.Duration
	Total  time.Duration
}

// Task is a single test or lifecycle hook.
type Task struct {
	Label string
	// Skip is the task's own flag; see Skipped for the effective value.
	Skip bool

	Err    error
	Timing TaskTiming

	kind    Kind
	body    Runnable
	context *Context
}

func newTask(ctx *Context, kind Kind, label string, body Runnable) *Task {
	if label == "" {
		label = bodyLabel(body)
	}
	return &Task{
		Label:   label,
		kind:    kind,
		body:    body,
		context: ctx,
	}
}

// Context returns the owning context.
func (t *Task) Context() *Context {
	return t.context
}

// Kind returns the sequence the task was registered in.
func (t *Task) Kind() Kind {
	return t.kind
}

// Body returns the runnable body, which may be nil for skipped tests.
func (t *Task) Body() Runnable {
	return t.body
}

// Skipped reports the effective skip flag: the task's own flag or the
// cascaded flag of its context.
func (t *Task) Skipped() bool {
	return t.Skip || (t.context != nil && t.context.Skip)
}

// Failed reports whether an error was recorded.
func (t *Task) Failed() bool {
	return t.Err != nil
}

// Path returns the labels of the owning contexts followed by the task label.
func (t *Task) Path() []string {
	var path []string
	if t.context != nil {
		path = t.context.Path()
	}
	if t.Label != "" {
		path = append(path, t.Label)
	}
	return path
}
