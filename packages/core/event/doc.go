// Package event is the synchronous publish/subscribe bus between the runner
// and reporters.
//
// The runner emits a closed set of event variants:
//
//   - [Start]: before the root context runs
//   - [ContextStart]: when a context begins, before any of its hooks
//   - [Hook]: when a setup, teardown, before or after hook fails
//   - [Test]: once per selected test, skipped or executed
//   - [ContextEnd]: after a context's setup, tests and teardown were attempted
//   - [End]: after the whole tree completed
//
// Handlers are invoked synchronously in registration order. A panicking
// handler is not recovered; the panic reaches whoever called Emit.
//
//	bus := event.NewBus()
//	bus.On(event.NameTest, event.HandlerFunc(func(e event.Event) {
//	    t := e.(event.Test)
//	    fmt.Println(t.Task.Label, t.Task.Err)
//	}))
package event
