package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
)

// runLifecycle runs hooks in registration order and stops at the first
// failure, which is recorded on the hook, published and returned.
//
// before/after hooks run once per test, so their timing reflects the most
// recent invocation.
func (r *Runner) runLifecycle(ctx context.Context, hooks []*suite.Task) error {
	for _, hook := range hooks {
		start := time.Now()
		err := r.execute(ctx, hook)
		hook.Timing.Task = time.Since(start)
		hook.Timing.Total = hook.Timing.Task

		if err != nil {
			hook.Err = err
			r.bus.Emit(event.Hook{Task: hook})
			return err
		}
	}
	return nil
}

// runTests runs the selected tests of c. A failing test, before hook or after
// hook never stops the tests that follow it.
func (r *Runner) runTests(ctx context.Context, c *suite.Context, log *slog.Logger) {
	before := c.Tasks(suite.KindBefore)
	after := c.Tasks(suite.KindAfter)

	for _, task := range c.Selected() {
		if task.Skipped() {
			log.Debug("test skipped", "test", task.Label)
			r.bus.Emit(event.Test{Task: task})
			continue
		}

		beforeStart := time.Now()
		if err := r.runLifecycle(ctx, before); err != nil {
			log.Debug("before hook failed", "test", task.Label, "err", err)
		}
		task.Timing.Before = time.Since(beforeStart)

		taskStart := time.Now()
		task.Err = r.execute(ctx, task)
		task.Timing.Task = time.Since(taskStart)

		afterStart := time.Now()
		if err := r.runLifecycle(ctx, after); err != nil {
			log.Debug("after hook failed", "test", task.Label, "err", err)
		}
		task.Timing.After = time.Since(afterStart)

		task.Timing.Total = task.Timing.Before + task.Timing.Task + task.Timing.After
		log.Debug("test finished", "test", task.Label, "duration", task.Timing.Total, "err", task.Err)
		r.bus.Emit(event.Test{Task: task})
	}
}
