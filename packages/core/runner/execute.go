package runner

import (
	"context"
	"sync"

	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/sourcegraph/conc/panics"
)

// execute invokes the body of task and waits for its first settlement.
// A panic raised while the body is invoked settles it as a *suite.PanicError.
// Panics on goroutines the body starts itself cannot be recovered here.
func (r *Runner) execute(ctx context.Context, task *suite.Task) error {
	body := task.Body()
	if body == nil {
		return suite.ErrNoBody
	}

	result := make(chan error, 1)
	var once sync.Once
	done := func(err error) {
		once.Do(func() { result <- err })
	}

	var pc panics.Catcher
	pc.Try(func() { body.Run(ctx, done) })
	if rec := pc.Recovered(); rec != nil {
		done(&suite.PanicError{Value: rec.Value, Stack: rec.Stack})
	}

	return <-result
}
