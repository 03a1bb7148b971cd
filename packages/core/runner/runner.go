package runner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/abdul-hamid-achik/control/packages/logging"
)

var (
	// ErrNilRoot is returned when Run is given no tree.
	ErrNilRoot = errors.New("runner: nil root context")

	// ErrAlreadyRun is returned when a tree that was already executed is run
	// again. Trees are traversed once; load a fresh one instead.
	ErrAlreadyRun = errors.New("runner: context tree already executed")
)

type Runner struct {
	bus    *event.Bus
	config *Config
	order  *collator
	log    *slog.Logger
}

type Config struct {
	// Logger receives debug progress. Nil discards it.
	Logger *slog.Logger
	// Language selects the collation used to order sibling contexts.
	// Defaults to English.
	Language string
}

// NewRunner creates a runner publishing on bus. A nil bus gets a private one.
func NewRunner(bus *event.Bus, cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if bus == nil {
		bus = event.NewBus()
	}
	return &Runner{
		bus:    bus,
		config: cfg,
		order:  newCollator(cfg.Language),
		log:    logging.OrDiscard(cfg.Logger),
	}
}

// Bus returns the bus events are published on.
func (r *Runner) Bus() *event.Bus {
	return r.bus
}

// Run executes the tree below root and blocks until every context finished.
// Test and hook failures are recorded on the tree and reported through
// events; the returned error only signals misuse of the runner.
//
// ctx is handed to every task body. The runner itself never cancels a body:
// one that never completes stalls the run.
func (r *Runner) Run(ctx context.Context, root *suite.Context) error {
	if root == nil {
		return ErrNilRoot
	}
	if root.State != suite.StatePending {
		return ErrAlreadyRun
	}

	start := time.Now()
	r.log.Debug("run started")
	r.bus.Emit(event.Start{Time: start})

	r.runContext(ctx, root)

	r.bus.Emit(event.End{Time: time.Now()})
	r.log.Debug("run finished", "duration", time.Since(start))
	return nil
}

func (r *Runner) runContext(ctx context.Context, c *suite.Context) {
	log := r.log.With("context", strings.Join(c.Path(), " / "))
	log.Debug("context started", "skip", c.Skip)

	r.bus.Emit(event.ContextStart{Context: c})
	started := time.Now()

	if setup := c.Tasks(suite.KindSetup); !c.Skip && len(setup) > 0 {
		c.State = suite.StateRunningSetup
		setupStart := time.Now()
		err := r.runLifecycle(ctx, setup)
		c.Timing.Setup = time.Since(setupStart)

		if err != nil {
			log.Debug("setup failed, skipping subtree", "err", err)
			c.Err = err
			c.State = suite.StateFatal
			c.Timing.Total = time.Since(started)
			r.bus.Emit(event.ContextEnd{Context: c})
			return
		}
	}

	c.State = suite.StateRunningTests
	testsStart := time.Now()
	r.runTests(ctx, c, log)
	c.Timing.Tasks = time.Since(testsStart)

	if teardown := c.Tasks(suite.KindTeardown); !c.Skip && len(teardown) > 0 {
		c.State = suite.StateRunningTeardown
		teardownStart := time.Now()
		if err := r.runLifecycle(ctx, teardown); err != nil {
			log.Debug("teardown failed, skipping children", "err", err)
			c.Err = err
			c.State = suite.StateFatal
		}
		c.Timing.Teardown = time.Since(teardownStart)
	}

	if c.State != suite.StateFatal {
		c.State = suite.StateDone
	}
	c.Timing.Total = time.Since(started)
	r.bus.Emit(event.ContextEnd{Context: c})

	if c.Err != nil {
		return
	}

	for _, child := range r.order.sort(c.Children()) {
		r.runContext(ctx, child)
	}
}
