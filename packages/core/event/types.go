package event

import (
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/suite"
)

// Name identifies an event variant on the bus.
type Name string

const (
	NameStart      Name = "start"
	NameContext    Name = "context"
	NameSetup      Name = "setup"
	NameTeardown   Name = "teardown"
	NameBefore     Name = "before"
	NameAfter      Name = "after"
	NameTest       Name = "test"
	NameContextEnd Name = "context:end"
	NameEnd        Name = "end"
)

// Names lists every event name in emission order.
var Names = []Name{
	NameStart, NameContext, NameSetup, NameBefore, NameAfter,
	NameTest, NameTeardown, NameContextEnd, NameEnd,
}

// Event is implemented only by the variants in this package.
type Event interface {
	Name() Name
	isEvent()
}

// Start is emitted once before the root context runs.
type Start struct {
	Time time.Time
}

func (Start) Name() Name { return NameStart }
func (Start) isEvent()   {}

// ContextStart is emitted when a context begins.
type ContextStart struct {
	Context *suite.Context
}

func (ContextStart) Name() Name { return NameContext }
func (ContextStart) isEvent()   {}

// Hook is emitted when a lifecycle hook fails. Its name follows the kind of
// the hook task.
type Hook struct {
	Task *suite.Task
}

func (e Hook) Name() Name {
	switch e.Task.Kind() {
	case suite.KindSetup:
		return NameSetup
	case suite.KindTeardown:
		return NameTeardown
	case suite.KindBefore:
		return NameBefore
	default:
		return NameAfter
	}
}
func (Hook) isEvent() {}

// Test is emitted once per selected test with its outcome filled in.
type Test struct {
	Task *suite.Task
}

func (Test) Name() Name { return NameTest }
func (Test) isEvent()   {}

// ContextEnd is emitted after a context's own hooks and tests were attempted,
// before any of its children run.
type ContextEnd struct {
	Context *suite.Context
}

func (ContextEnd) Name() Name { return NameContextEnd }
func (ContextEnd) isEvent()   {}

// End is emitted once after the whole tree completed.
type End struct {
	Time time.Time
}

func (End) Name() Name { return NameEnd }
func (End) isEvent()   {}
